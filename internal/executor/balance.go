package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polycopy/internal/domain"
)

// BalanceCache periodically refreshes the funding wallet's USDC balance and
// serves the last successfully fetched value to concurrent readers. A refresh
// already in progress suppresses overlapping refreshes via singleflight, and
// a failed fetch keeps the previous value rather than propagating the error.
type BalanceCache struct {
	source  domain.BalanceSource
	address string
	logger  *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	value float64
	known bool
}

// NewBalanceCache creates a cache for the given funding address. The value is
// unknown until the first successful refresh.
func NewBalanceCache(source domain.BalanceSource, address string, logger *slog.Logger) *BalanceCache {
	return &BalanceCache{
		source:  source,
		address: address,
		logger:  logger.With(slog.String("component", "balance_cache")),
	}
}

// Get returns the last fetched balance and whether any fetch has succeeded.
func (b *BalanceCache) Get() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value, b.known
}

// Refresh fetches the balance once, deduplicating concurrent calls.
func (b *BalanceCache) Refresh(ctx context.Context) {
	_, _, _ = b.group.Do("refresh", func() (any, error) {
		bal, err := b.source.USDCBalance(ctx, b.address)
		if err != nil {
			b.logger.Warn("balance refresh failed, keeping cached value",
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
		b.mu.Lock()
		b.value = bal
		b.known = true
		b.mu.Unlock()
		return nil, nil
	})
}

// Run refreshes immediately and then on every tick until the context is
// cancelled.
func (b *BalanceCache) Run(ctx context.Context, interval time.Duration) error {
	b.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Refresh(ctx)
		}
	}
}
