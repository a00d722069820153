package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Archiver periodically rotates the local NDJSON audit log and uploads the
// rotated file to object storage. The local file stays authoritative: a
// failed upload leaves the rotated file on disk for the next attempt.
type Archiver struct {
	writer    *Writer
	auditPath string
	minBytes  int64
	logger    *slog.Logger
}

// NewArchiver creates an archiver for the audit log at auditPath. Logs
// smaller than minBytes are left in place until they grow.
func NewArchiver(writer *Writer, auditPath string, minBytes int64, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		auditPath: auditPath,
		minBytes:  minBytes,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run rotates and uploads on the given interval until the context ends.
// Rotated files left over from failed uploads are retried each cycle.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.uploadPending(ctx)
			if err := a.rotate(); err != nil {
				a.logger.Warn("audit log rotation failed", slog.String("error", err.Error()))
				continue
			}
			a.uploadPending(ctx)
		}
	}
}

// rotate renames the live audit log to a timestamped sibling when it has
// grown past the size threshold.
func (a *Archiver) rotate() error {
	info, err := os.Stat(a.auditPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < a.minBytes {
		return nil
	}

	rotated := fmt.Sprintf("%s.%s", a.auditPath, time.Now().UTC().Format("20060102T150405Z"))
	return os.Rename(a.auditPath, rotated)
}

// uploadPending uploads every rotated file next to the audit log, removing
// each local copy after a successful upload.
func (a *Archiver) uploadPending(ctx context.Context) {
	matches, err := filepath.Glob(a.auditPath + ".*")
	if err != nil {
		return
	}

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			a.logger.Warn("read rotated audit log failed",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}

		key := archiveKey(filepath.Base(path))
		if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/x-ndjson"); err != nil {
			a.logger.Warn("audit log upload failed",
				slog.String("key", key), slog.String("error", err.Error()))
			continue
		}

		if err := os.Remove(path); err != nil {
			a.logger.Warn("remove uploaded audit log failed",
				slog.String("path", path), slog.String("error", err.Error()))
			continue
		}

		a.logger.Info("archived audit log",
			slog.String("key", key), slog.Int("bytes", len(data)))
	}
}

// archiveKey builds the object key for a rotated file, partitioned by
// year-month:
//
//	archive/copy-trades/2025-01/copy-trades.ndjson.20250112T080000Z
func archiveKey(filename string) string {
	return fmt.Sprintf("archive/copy-trades/%s/%s", time.Now().UTC().Format("2006-01"), filename)
}
