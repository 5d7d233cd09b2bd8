// Package maintenance runs periodic background reconciliation as clock-driven
// tickers. The change feed covers most external writes; these tickers catch
// what it misses and retry collections whose last fetch failed.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

// Target is the part of the synchronizer maintenance drives.
type Target interface {
	State() syncer.State
	Snapshot() *syncer.Snapshot
	Resync(ctx context.Context, kinds ...model.Kind) error
}

// Config controls task intervals. Zero duration disables a task.
type Config struct {
	ResyncInterval        time.Duration // Full resync of every collection
	DegradedRetryInterval time.Duration // Refetch collections marked degraded
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		ResyncInterval:        5 * time.Minute,
		DegradedRetryInterval: 30 * time.Second,
	}
}

// Start launches all configured tickers. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, target Target, clock clockwork.Clock, cfg Config, logger *slog.Logger) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger.Info("Maintenance tickers started",
		"resync", cfg.ResyncInterval,
		"degraded_retry", cfg.DegradedRetryInterval)

	tickers := make([]clockwork.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.ResyncInterval > 0 {
		t := clock.NewTicker(cfg.ResyncInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.Chan(), "resync", func() {
			if target.State() != syncer.StateReady {
				return
			}
			_ = Reconcile(ctx, target, logger)
		})
	}

	if cfg.DegradedRetryInterval > 0 {
		t := clock.NewTicker(cfg.DegradedRetryInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.Chan(), "degraded-retry", func() { retryDegraded(ctx, target, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// retryDegraded refetches only the collections whose last fetch failed.
func retryDegraded(ctx context.Context, target Target, logger *slog.Logger) {
	if target.State() != syncer.StateReady {
		return
	}
	degraded := target.Snapshot().Degraded
	if len(degraded) == 0 {
		return
	}
	kinds := append([]model.Kind(nil), degraded...)
	if err := target.Resync(ctx, kinds...); err != nil {
		logger.Warn("Degraded retry: still failing", "kinds", kinds, "error", err)
		return
	}
	logger.Info("Degraded retry: recovered", "kinds", kinds)
}
