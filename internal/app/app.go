// Package app provides the top-level application lifecycle: it wires the
// chain stream, sizing pipeline, CLOB client, persistence, and the optional
// mirrors together, and runs them until the context is cancelled or the
// fill stream fails.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polycopy/internal/config"
	"github.com/alanyoungcy/polycopy/internal/domain"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and drives the copy-trading pipeline until the
// context is cancelled. A lost chain subscription is fatal: the error
// propagates out so a supervisor can restart the process with a clean
// resubscribe.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("watched", a.cfg.Watch.TargetAddress),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := deps.Clob.DeriveAPIKey(ctx); err != nil {
		deps.Persist.Close()
		return fmt.Errorf("app: derive api key: %w", err)
	}

	// Restore positions from the last snapshot so realized PnL and average
	// cost survive restarts.
	snap, err := deps.Persist.Load()
	switch {
	case err == nil:
		deps.Book.Restore(snap)
		a.logger.Info("ledger restored from snapshot",
			slog.Int("tokens", len(snap)),
		)
	case errors.Is(err, domain.ErrNoSnapshot):
		a.logger.Info("no ledger snapshot found, starting flat")
	default:
		deps.Persist.Close()
		return fmt.Errorf("app: load snapshot: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Stream.Run(gctx, deps.Fills)
	})
	g.Go(func() error {
		return deps.Replicator.Run(gctx)
	})
	g.Go(func() error {
		return deps.Balance.Run(gctx, a.cfg.Balance.RefreshInterval.Duration)
	})
	g.Go(func() error {
		return deps.Feed.Run(gctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(gctx, a.cfg.S3.ArchiveInterval.Duration)
		})
	}

	err = g.Wait()

	// The replicator has written its final snapshot by now; draining the
	// persist queue before returning guarantees it reaches disk.
	deps.Persist.Close()

	return err
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
