// Package executor drives the event-to-order pipeline: it consumes raw fills
// from the chain stream, filters and sizes them, applies admission control,
// submits replica orders, and settles the results into the ledger and the
// audit trail.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polycopy/internal/admission"
	"github.com/alanyoungcy/polycopy/internal/decode"
	"github.com/alanyoungcy/polycopy/internal/domain"
	"github.com/alanyoungcy/polycopy/internal/ledger"
	"github.com/alanyoungcy/polycopy/internal/sizing"
)

// Config holds the replicator's tunable parameters.
type Config struct {
	// WatchedAddress is the account whose fills are mirrored.
	WatchedAddress string

	// SnapshotEveryN writes a ledger snapshot after every N successful
	// submissions.
	SnapshotEveryN int

	// DedupTTL bounds how long seen event keys are retained.
	DedupTTL time.Duration

	// CleanupInterval is how often the dedup map is garbage-collected.
	CleanupInterval time.Duration
}

// Replicator is the pipeline orchestrator. Admission state (dedup set,
// rate window, inflight count) is mutated synchronously in the intake loop
// before any I/O, so concurrent completions can neither double-admit an
// event nor exceed the concurrency cap.
type Replicator struct {
	cfg        Config
	fills      <-chan domain.RawFill
	sizer      *sizing.Policy
	limiter    *admission.Limiter
	gate       *admission.Gate
	dedup      *Dedup
	book       *ledger.Ledger
	submitter  domain.OrderSubmitter
	classifier domain.ResultClassifier
	balance    *BalanceCache
	audit      domain.AuditSink
	snapshots  domain.SnapshotStore
	prices     domain.PriceCache // optional
	logger     *slog.Logger

	wg sync.WaitGroup

	mu            sync.Mutex
	copiedCount   int
	totalBuyUSDC  float64
	totalSellUSDC float64
}

// New creates a Replicator reading raw fills from fills. The prices cache may
// be nil.
func New(
	cfg Config,
	fills <-chan domain.RawFill,
	sizer *sizing.Policy,
	limiter *admission.Limiter,
	gate *admission.Gate,
	book *ledger.Ledger,
	submitter domain.OrderSubmitter,
	classifier domain.ResultClassifier,
	balance *BalanceCache,
	audit domain.AuditSink,
	snapshots domain.SnapshotStore,
	prices domain.PriceCache,
	logger *slog.Logger,
) *Replicator {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 10 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	return &Replicator{
		cfg:        cfg,
		fills:      fills,
		sizer:      sizer,
		limiter:    limiter,
		gate:       gate,
		dedup:      NewDedup(cfg.DedupTTL),
		book:       book,
		submitter:  submitter,
		classifier: classifier,
		balance:    balance,
		audit:      audit,
		snapshots:  snapshots,
		prices:     prices,
		logger:     logger.With(slog.String("component", "replicator")),
	}
}

// Run consumes fills until the context is cancelled. On shutdown it waits for
// in-flight submissions to settle and writes a final ledger snapshot.
func (r *Replicator) Run(ctx context.Context) error {
	r.logger.Info("replicator started",
		slog.String("watched", r.cfg.WatchedAddress),
		slog.Int("snapshot_every_n", r.cfg.SnapshotEveryN),
	)
	defer r.logger.Info("replicator stopped")

	cleanupTicker := time.NewTicker(r.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			r.snapshots.Save(r.book.Snapshot())
			return ctx.Err()

		case raw, ok := <-r.fills:
			if !ok {
				r.wg.Wait()
				r.snapshots.Save(r.book.Snapshot())
				return domain.ErrStreamClosed
			}
			r.intake(ctx, raw)

		case <-cleanupTicker.C:
			r.dedup.Cleanup()
		}
	}
}

// intake runs the synchronous half of the pipeline: dedup, decode, sizing,
// and both admission gates. Everything past the gates runs in its own
// goroutine so slow submissions never stall intake.
func (r *Replicator) intake(ctx context.Context, raw domain.RawFill) {
	key := raw.DedupKey()
	if r.dedup.IsDuplicate(key) {
		r.logger.Debug("duplicate event, skipping", slog.String("key", key))
		return
	}

	fill, ok := decode.Fill(raw, r.cfg.WatchedAddress)
	if !ok {
		// Not the watched maker, no collateral leg, or zero shares. Expected
		// filtering, not an anomaly.
		return
	}

	order, ok := r.sizer.Size(fill)
	if !ok {
		r.logger.Debug("sizing rejected fill",
			slog.String("token", fill.TokenID),
			slog.Float64("shares", fill.Shares),
			slog.Float64("price", fill.Price),
		)
		return
	}

	if !r.limiter.Allow() {
		r.logger.Debug("rate limit reached, shedding fill", slog.String("key", key))
		return
	}
	if !r.gate.TryEnter() {
		r.logger.Debug("inflight cap reached, shedding fill", slog.String("key", key))
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.gate.Exit()
		r.submit(ctx, raw, fill, order)
	}()
}

// submit performs the I/O half of the pipeline for one admitted fill.
func (r *Replicator) submit(ctx context.Context, raw domain.RawFill, fill domain.DecodedFill, order domain.SizedOrder) {
	start := time.Now()
	respBody, err := r.submitter.Submit(ctx, domain.OrderRequest{
		TokenID: fill.TokenID,
		Side:    fill.Side,
		Price:   order.Price,
		Shares:  order.Shares,
		NegRisk: fill.NegRisk,
	})
	submitMs := time.Since(start).Milliseconds()

	verdict := r.classifier.Classify(respBody, err)

	// The sized price is the latest observation for this token whether or
	// not the submission went through; mark-to-market must stay current.
	r.book.MarkPrice(fill.TokenID, order.Price)
	r.mirrorPrice(ctx, fill.TokenID, order.Price)

	rec := domain.AuditRecord{
		ID:          uuid.New().String(),
		T:           time.Now().UnixMilli(),
		Side:        fill.Side,
		TokenID:     fill.TokenID,
		Shares:      order.Shares,
		Price:       order.Price,
		NotionalUSD: order.Notional,
		SubmitMs:    submitMs,
		Tx:          raw.TxHash,
		LogIndex:    raw.LogIndex,
	}
	if bal, known := r.balance.Get(); known {
		rec.USDCBalanceCached = &bal
	}

	if !verdict.OK {
		rec.Status = domain.AuditFailed
		rec.Reason = verdict.Reason
		r.audit.Append(rec)
		r.logger.Warn("replica order failed",
			slog.String("side", string(fill.Side)),
			slog.String("token", fill.TokenID),
			slog.Float64("shares", order.Shares),
			slog.Float64("price", order.Price),
			slog.Int64("submit_ms", submitMs),
			slog.String("reason", verdict.Reason),
		)
		return
	}

	// Success: the ledger is touched only here, after the result is known.
	switch fill.Side {
	case domain.FillSideBuy:
		r.book.OnBuy(fill.TokenID, order.Shares, order.Price)
	case domain.FillSideSell:
		r.book.OnSell(fill.TokenID, order.Shares, order.Price)
	}

	m := r.book.Metrics(fill.TokenID)

	rec.Status = domain.AuditSucceeded
	rec.OrderID = verdict.OrderID
	rec.TokenSharesNow = f64(m.Shares)
	rec.TokenAvgPrice = f64(m.AvgPrice)
	rec.TokenCostUSDC = f64(m.CostUSDC)
	rec.TokenLastPrice = f64(m.LastPrice)
	rec.TokenMTMValueUSDC = f64(m.MTMValueUSDC)
	rec.TokenUnrealizedUSDC = f64(m.UnrealizedUSDC)
	rec.TokenRealizedUSDC = f64(m.RealizedUSDC)
	r.audit.Append(rec)

	copied := r.recordSuccess(fill.Side, order.Notional)
	if r.cfg.SnapshotEveryN > 0 && copied%r.cfg.SnapshotEveryN == 0 {
		r.snapshots.Save(r.book.Snapshot())
	}

	r.logger.Info("replica order placed",
		slog.String("side", string(fill.Side)),
		slog.String("token", fill.TokenID),
		slog.String("order_id", verdict.OrderID),
		slog.Float64("shares", order.Shares),
		slog.Float64("price", order.Price),
		slog.Float64("notional", order.Notional),
		slog.Int64("submit_ms", submitMs),
		slog.Float64("token_shares", m.Shares),
		slog.Float64("token_avg_price", m.AvgPrice),
		slog.Float64("unrealized", m.UnrealizedUSDC),
		slog.Float64("realized", m.RealizedUSDC),
	)
}

// recordSuccess updates the running totals and returns the new copied count.
func (r *Replicator) recordSuccess(side domain.FillSide, notional float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if side == domain.FillSideBuy {
		r.totalBuyUSDC += notional
	} else {
		r.totalSellUSDC += notional
	}
	r.copiedCount++
	return r.copiedCount
}

// Totals returns cumulative copied buy and sell notional.
func (r *Replicator) Totals() (buyUSDC, sellUSDC float64, copied int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalBuyUSDC, r.totalSellUSDC, r.copiedCount
}

func (r *Replicator) mirrorPrice(ctx context.Context, tokenID string, price float64) {
	if r.prices == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.prices.SetPrice(cctx, tokenID, price); err != nil {
		r.logger.Warn("price cache write failed",
			slog.String("token", tokenID),
			slog.String("error", err.Error()),
		)
	}
}

func f64(v float64) *float64 { return &v }
