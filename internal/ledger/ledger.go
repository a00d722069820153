// Package ledger maintains the replica account's per-token position and PnL
// state using average-cost accounting: each partial sale realizes PnL against
// the volume-weighted average entry price of all held shares.
package ledger

import (
	"math"
	"sync"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// Ledger tracks one TokenPosition per traded token id. Positions are created
// lazily on first touch and never deleted; a token sold down to zero keeps
// its realized PnL and last price. All mutations happen under a single mutex,
// so concurrently completing submissions touching the same token cannot
// interleave a read-modify-write.
type Ledger struct {
	mu        sync.Mutex
	positions map[string]*domain.TokenPosition
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{positions: make(map[string]*domain.TokenPosition)}
}

func (l *Ledger) getOrInit(tokenID string) *domain.TokenPosition {
	pos, ok := l.positions[tokenID]
	if !ok {
		pos = &domain.TokenPosition{}
		l.positions[tokenID] = pos
	}
	return pos
}

// MarkPrice records the latest observed price for a token without touching
// shares or cost basis. Called for every sized fill, including rejected and
// failed submissions, so mark-to-market stays current.
func (l *Ledger) MarkPrice(tokenID string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getOrInit(tokenID).LastPrice = price
}

// OnBuy adds shares at the given price, growing the cost basis. Never touches
// realized PnL.
func (l *Ledger) OnBuy(tokenID string, shares, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.getOrInit(tokenID)
	pos.LastPrice = price
	pos.Shares += shares
	pos.CostUSDC += shares * price
}

// OnSell removes up to the held share count at the given price, realizing
// PnL against the current average entry price. Selling more than held clamps
// to the position; this ledger never goes short.
func (l *Ledger) OnSell(tokenID string, shares, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.getOrInit(tokenID)
	pos.LastPrice = price

	sellShares := math.Min(shares, pos.Shares)
	if sellShares <= 0 {
		return
	}

	avgPrice := 0.0
	if pos.Shares > 0 {
		avgPrice = pos.CostUSDC / pos.Shares
	}

	proceeds := price * sellShares
	costRemoved := avgPrice * sellShares

	pos.RealizedUSDC += proceeds - costRemoved
	pos.Shares -= sellShares
	pos.CostUSDC -= costRemoved

	// Clamp residual floating-point drift.
	if pos.Shares < 0 {
		pos.Shares = 0
	}
	if pos.CostUSDC < 0 {
		pos.CostUSDC = 0
	}
}

// Metrics returns the derived view of one token's position: average entry
// price, mark-to-market value, and unrealized/realized PnL.
func (l *Ledger) Metrics(tokenID string) domain.PositionMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.getOrInit(tokenID)

	avgPrice := 0.0
	if pos.Shares > 0 {
		avgPrice = pos.CostUSDC / pos.Shares
	}
	mtm := pos.Shares * pos.LastPrice

	return domain.PositionMetrics{
		Shares:         pos.Shares,
		LastPrice:      pos.LastPrice,
		AvgPrice:       avgPrice,
		CostUSDC:       pos.CostUSDC,
		MTMValueUSDC:   mtm,
		UnrealizedUSDC: mtm - pos.CostUSDC,
		RealizedUSDC:   pos.RealizedUSDC,
	}
}

// Tokens returns the ids of every token the ledger has ever touched.
func (l *Ledger) Tokens() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, 0, len(l.positions))
	for id := range l.positions {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns a deep copy of the full ledger state for persistence.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := make(domain.LedgerSnapshot, len(l.positions))
	for id, pos := range l.positions {
		snap[id] = *pos
	}
	return snap
}

// Restore replaces the ledger state with a snapshot, discarding entries that
// fail sanity checks rather than importing corrupt state: shares and cost
// must be finite and non-negative, and a flat position carries no cost basis.
func (l *Ledger) Restore(snap domain.LedgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]*domain.TokenPosition, len(snap))
	for id, pos := range snap {
		clean := domain.TokenPosition{
			Shares:       sanitize(pos.Shares),
			CostUSDC:     sanitize(pos.CostUSDC),
			LastPrice:    sanitize(pos.LastPrice),
			RealizedUSDC: pos.RealizedUSDC,
		}
		if math.IsNaN(clean.RealizedUSDC) || math.IsInf(clean.RealizedUSDC, 0) {
			clean.RealizedUSDC = 0
		}
		if clean.Shares == 0 {
			clean.CostUSDC = 0
		}
		l.positions[id] = &clean
	}
}

// sanitize maps non-finite or negative values to zero.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
