// Package persist writes the two on-disk artifacts of the copy trader: the
// append-only NDJSON audit log and the periodic full-ledger snapshot. All
// writes go through a single background goroutine fed by a buffered channel,
// so the submission hot path never waits on disk I/O. Write failures are
// logged and swallowed; the pipeline keeps running without them.
package persist

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// queueDepth bounds the writer's backlog. When the queue is full, records
// are dropped rather than blocking the pipeline.
const queueDepth = 1024

// mirrorTimeout bounds each optional audit-mirror insert.
const mirrorTimeout = 5 * time.Second

// Store implements domain.AuditSink and domain.SnapshotStore over local
// files, with an optional secondary audit mirror.
type Store struct {
	auditPath    string
	snapshotPath string
	mirror       domain.AuditMirror // may be nil
	logger       *slog.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// job is one unit of background work: exactly one of rec or snap is set.
type job struct {
	rec  *domain.AuditRecord
	snap domain.LedgerSnapshot
}

// Open creates the parent directories for both artifacts and starts the
// background writer. mirror may be nil.
func Open(auditPath, snapshotPath string, mirror domain.AuditMirror, logger *slog.Logger) (*Store, error) {
	for _, p := range []string{auditPath, snapshotPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
	}

	s := &Store{
		auditPath:    auditPath,
		snapshotPath: snapshotPath,
		mirror:       mirror,
		logger:       logger.With(slog.String("component", "persist")),
		jobs:         make(chan job, queueDepth),
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

// Append queues one audit record. It never blocks: when the writer is
// saturated or the store is closed, the record is dropped.
func (s *Store) Append(rec domain.AuditRecord) {
	s.enqueue(job{rec: &rec})
}

// Save queues a full ledger snapshot, overwriting the previous one on disk.
func (s *Store) Save(snap domain.LedgerSnapshot) {
	s.enqueue(job{snap: snap})
}

func (s *Store) enqueue(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.jobs <- j:
	default:
		s.logger.Warn("persist queue full, dropping write")
	}
}

// Load reads and parses the snapshot file. It returns domain.ErrNoSnapshot
// when the file is missing or does not parse as a valid mapping; the caller
// then starts from an empty ledger.
func (s *Store) Load() (domain.LedgerSnapshot, error) {
	raw, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return nil, domain.ErrNoSnapshot
	}

	var snap domain.LedgerSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil || snap == nil {
		return nil, domain.ErrNoSnapshot
	}
	return snap, nil
}

// Close stops accepting writes, flushes everything already queued, and waits
// for the writer to finish.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.wg.Wait()
}

// run is the background writer loop. It exits when the job channel closes.
func (s *Store) run() {
	defer s.wg.Done()

	for j := range s.jobs {
		switch {
		case j.rec != nil:
			s.writeRecord(*j.rec)
		case j.snap != nil:
			s.writeSnapshot(j.snap)
		}
	}
}

func (s *Store) writeRecord(rec domain.AuditRecord) {
	line, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("marshal audit record failed", slog.String("error", err.Error()))
		return
	}

	f, err := os.OpenFile(s.auditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("open audit log failed", slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(line)
	w.WriteByte('\n')
	if err := w.Flush(); err != nil {
		s.logger.Warn("append audit record failed", slog.String("error", err.Error()))
	}

	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := s.mirror.Insert(ctx, rec); err != nil {
			s.logger.Warn("audit mirror insert failed", slog.String("error", err.Error()))
		}
	}
}

// writeSnapshot replaces the snapshot atomically: a torn write must never
// leave a half-written file for the next startup to parse.
func (s *Store) writeSnapshot(snap domain.LedgerSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("marshal snapshot failed", slog.String("error", err.Error()))
		return
	}

	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("write snapshot failed", slog.String("error", err.Error()))
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		s.logger.Warn("rename snapshot failed", slog.String("error", err.Error()))
	}
}
