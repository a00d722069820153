// Package sizing implements the replica order sizing policy: scale the
// watched account's fill, enforce floors, and cap new exposure.
package sizing

import (
	"math"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// Config holds the tunable parameters of the sizing policy.
type Config struct {
	// SizeMultiplier scales the watched account's share quantity.
	SizeMultiplier float64

	// MinShares is the smallest replica order the policy will emit.
	MinShares float64

	// MaxNotionalUSD caps the notional of buy orders. Sells are never capped:
	// risk limits bound new exposure, not exits.
	MaxNotionalUSD float64
}

// Policy sizes replica orders from decoded fills. Its methods are pure; the
// struct only carries configuration.
type Policy struct {
	cfg Config
}

// New creates a sizing policy with the given configuration.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Size computes the replica order for a decoded fill, or rejects it.
//
// The observed price is clamped into [0,1] before use; malformed upstream
// data must not produce an out-of-range limit price. Buy orders whose
// notional exceeds MaxNotionalUSD are shrunk to the cap by recomputing the
// share quantity at the same price, then re-checked against MinShares.
func (p *Policy) Size(fill domain.DecodedFill) (domain.SizedOrder, bool) {
	price := clamp(fill.Price, 0, 1)
	shares := fill.Shares * p.cfg.SizeMultiplier

	if math.IsNaN(price) || math.IsInf(price, 0) || math.IsNaN(shares) || math.IsInf(shares, 0) {
		return domain.SizedOrder{}, false
	}
	if price <= 0 || shares <= 0 {
		return domain.SizedOrder{}, false
	}
	if shares < p.cfg.MinShares {
		return domain.SizedOrder{}, false
	}

	if fill.Side == domain.FillSideBuy {
		if notional := price * shares; notional > p.cfg.MaxNotionalUSD {
			shares = p.cfg.MaxNotionalUSD / price
			if shares < p.cfg.MinShares {
				return domain.SizedOrder{}, false
			}
		}
	}

	return domain.SizedOrder{
		Price:    price,
		Shares:   shares,
		Notional: price * shares,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
