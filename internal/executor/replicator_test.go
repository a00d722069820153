package executor

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/polycopy/internal/admission"
	"github.com/alanyoungcy/polycopy/internal/domain"
	"github.com/alanyoungcy/polycopy/internal/ledger"
	"github.com/alanyoungcy/polycopy/internal/sizing"
)

const testWatched = "0x1111111111111111111111111111111111111111"

type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	resp  []byte
	err   error
}

func (s *fakeSubmitter) Submit(ctx context.Context, req domain.OrderRequest) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.resp, s.err
}

func (s *fakeSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type captureSink struct {
	mu   sync.Mutex
	recs []domain.AuditRecord
}

func (c *captureSink) Append(rec domain.AuditRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *captureSink) records() []domain.AuditRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.AuditRecord(nil), c.recs...)
}

type memSnapshots struct {
	mu    sync.Mutex
	saves []domain.LedgerSnapshot
}

func (m *memSnapshots) Save(snap domain.LedgerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, snap)
}

func (m *memSnapshots) Load() (domain.LedgerSnapshot, error) {
	return nil, domain.ErrNoSnapshot
}

func (m *memSnapshots) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

type staticBalance struct{ val float64 }

func (b staticBalance) USDCBalance(ctx context.Context, address string) (float64, error) {
	return b.val, nil
}

type harness struct {
	fills     chan domain.RawFill
	rep       *Replicator
	book      *ledger.Ledger
	submitter *fakeSubmitter
	audit     *captureSink
	snaps     *memSnapshots
	done      chan error
}

func newHarness(t *testing.T, cfg Config, maxPerMin, maxInflight int, sub *fakeSubmitter) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if cfg.WatchedAddress == "" {
		cfg.WatchedAddress = testWatched
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = time.Minute
	}

	h := &harness{
		fills:     make(chan domain.RawFill, 16),
		book:      ledger.New(),
		submitter: sub,
		audit:     &captureSink{},
		snaps:     &memSnapshots{},
		done:      make(chan error, 1),
	}

	balance := NewBalanceCache(staticBalance{val: 500}, "0xfund", logger)
	balance.Refresh(context.Background())

	sizer := sizing.New(sizing.Config{SizeMultiplier: 1.0, MinShares: 1, MaxNotionalUSD: 10_000})

	h.rep = New(cfg, h.fills, sizer,
		admission.NewLimiter(maxPerMin), admission.NewGate(maxInflight),
		h.book, sub, NewClassifier(), balance, h.audit, h.snaps, nil, logger)

	go func() { h.done <- h.rep.Run(context.Background()) }()
	return h
}

// finish closes the fill channel and waits for the replicator to settle all
// in-flight submissions and write its final snapshot.
func (h *harness) finish(t *testing.T) {
	t.Helper()
	close(h.fills)
	select {
	case err := <-h.done:
		if err != domain.ErrStreamClosed {
			t.Fatalf("Run returned %v, want ErrStreamClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("replicator did not stop")
	}
}

func buyFill(tx string, logIndex uint) domain.RawFill {
	return domain.RawFill{
		TxHash:            tx,
		LogIndex:          logIndex,
		Maker:             testWatched,
		MakerAssetID:      "0",
		TakerAssetID:      "555",
		MakerAmountFilled: "40000000",  // 40 USDC
		TakerAmountFilled: "100000000", // 100 shares -> price 0.40
	}
}

func TestReplicator_SuccessUpdatesLedgerAndAudit(t *testing.T) {
	sub := &fakeSubmitter{resp: []byte(`{"orderID":"ord-1"}`)}
	h := newHarness(t, Config{}, 100, 8, sub)

	h.fills <- buyFill("0xaa", 0)
	h.finish(t)

	m := h.book.Metrics("555")
	if m.Shares != 100 {
		t.Errorf("shares = %v, want 100", m.Shares)
	}
	if m.CostUSDC != 40 {
		t.Errorf("cost = %v, want 40", m.CostUSDC)
	}

	recs := h.audit.records()
	if len(recs) != 1 {
		t.Fatalf("audit records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Status != domain.AuditSucceeded {
		t.Errorf("status = %s, want SUCCEED", rec.Status)
	}
	if rec.OrderID != "ord-1" {
		t.Errorf("orderID = %q, want ord-1", rec.OrderID)
	}
	if rec.TokenSharesNow == nil || *rec.TokenSharesNow != 100 {
		t.Errorf("tokenSharesNow = %v, want 100", rec.TokenSharesNow)
	}
	if rec.USDCBalanceCached == nil || *rec.USDCBalanceCached != 500 {
		t.Errorf("usdcBalanceCached = %v, want 500", rec.USDCBalanceCached)
	}
}

func TestReplicator_DuplicateEventHasSingleEffect(t *testing.T) {
	sub := &fakeSubmitter{resp: []byte(`{"orderID":"ord-1"}`)}
	h := newHarness(t, Config{}, 100, 8, sub)

	h.fills <- buyFill("0xaa", 3)
	h.fills <- buyFill("0xaa", 3) // redelivery after reconnect
	h.finish(t)

	if n := sub.callCount(); n != 1 {
		t.Errorf("submissions = %d, want 1", n)
	}
	if m := h.book.Metrics("555"); m.Shares != 100 {
		t.Errorf("shares = %v, want exactly one ledger effect (100)", m.Shares)
	}
}

func TestReplicator_FailureLeavesLedgerButMarksPrice(t *testing.T) {
	sub := &fakeSubmitter{resp: []byte(`{"error":"not enough balance"}`)}
	h := newHarness(t, Config{}, 100, 8, sub)

	h.fills <- buyFill("0xbb", 0)
	h.finish(t)

	m := h.book.Metrics("555")
	if m.Shares != 0 || m.CostUSDC != 0 {
		t.Errorf("ledger touched on failure: shares=%v cost=%v", m.Shares, m.CostUSDC)
	}
	if m.LastPrice != 0.40 {
		t.Errorf("lastPrice = %v, want mark update to 0.40 even on failure", m.LastPrice)
	}

	recs := h.audit.records()
	if len(recs) != 1 {
		t.Fatalf("audit records = %d, want 1", len(recs))
	}
	if recs[0].Status != domain.AuditFailed {
		t.Errorf("status = %s, want FAILED", recs[0].Status)
	}
	if recs[0].Reason != "not enough balance / allowance" {
		t.Errorf("reason = %q", recs[0].Reason)
	}
	if recs[0].TokenSharesNow != nil {
		t.Error("failed record must not carry post-update ledger metrics")
	}
}

func TestReplicator_IgnoresOtherMakers(t *testing.T) {
	sub := &fakeSubmitter{resp: []byte(`{"orderID":"x"}`)}
	h := newHarness(t, Config{}, 100, 8, sub)

	raw := buyFill("0xcc", 0)
	raw.Maker = "0x2222222222222222222222222222222222222222"
	h.fills <- raw
	h.finish(t)

	if n := sub.callCount(); n != 0 {
		t.Errorf("submissions = %d, want 0", n)
	}
	if len(h.audit.records()) != 0 {
		t.Error("input rejects must not produce audit records")
	}
}

func TestReplicator_RateLimitSheds(t *testing.T) {
	sub := &fakeSubmitter{resp: []byte(`{"orderID":"x"}`)}
	h := newHarness(t, Config{}, 1, 8, sub)

	h.fills <- buyFill("0xdd", 0)
	h.fills <- buyFill("0xdd", 1)
	h.finish(t)

	if n := sub.callCount(); n != 1 {
		t.Errorf("submissions = %d, want 1 (second sheds silently)", n)
	}
	if len(h.audit.records()) != 1 {
		t.Errorf("audit records = %d, want 1 (admission rejects leave no record)", len(h.audit.records()))
	}
}

func TestReplicator_SnapshotCadenceAndFinalFlush(t *testing.T) {
	sub := &fakeSubmitter{resp: []byte(`{"orderID":"x"}`)}
	h := newHarness(t, Config{SnapshotEveryN: 2}, 100, 8, sub)

	for i := 0; i < 3; i++ {
		f := buyFill("0x"+strconv.Itoa(i), uint(i))
		h.fills <- f
	}
	h.finish(t)

	// One cadence snapshot after the second success plus the shutdown flush.
	if n := h.snaps.count(); n != 2 {
		t.Errorf("snapshot saves = %d, want 2", n)
	}
}
