// Package backend opens the gateway selected by GATEWAY, so the API server
// and the CLI share one store setup path.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/db"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway/pg"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway/rest"
	"github.com/Dilbarpun07/GBFC-website/internal/gateway/sqlite"
)

// Backend is an opened gateway plus what must be released with it.
type Backend struct {
	Kind    string
	Gateway gateway.Gateway
	// Pool is set for the pg gateway only.
	Pool    *db.Pool
	closers []func()
}

// Pinger returns the gateway's health probe, or nil if it has none.
func (b *Backend) Pinger() gateway.Pinger {
	if b.Pool != nil {
		return b.Pool
	}
	p, _ := b.Gateway.(gateway.Pinger)
	return p
}

// Close releases the backend in reverse open order.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open connects the configured gateway. With MIGRATE_ON_START the pg schema
// is brought up to date before the pool opens.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{Kind: cfg.Gateway}

	switch cfg.Gateway {
	case config.GatewayMemory:
		b.Gateway = gateway.NewMemoryStore()
		logger.Warn("Using in-memory store; data is lost on exit")

	case config.GatewayREST:
		b.Gateway = rest.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey,
			cfg.RESTRequestsPerMinute, cfg.RESTTimeout, logger)
		logger.Info("Using REST store", "url", cfg.SupabaseURL)

	case config.GatewayPG:
		if cfg.MigrateOnStart {
			logger.Info("Applying migrations...")
			if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		logger.Info("Connecting to database...")
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.Pool = pool
		b.Gateway = pg.New(pool.Pool)
		b.closers = append(b.closers, pool.Close)
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)

	case config.GatewaySQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.Gateway = store
		b.closers = append(b.closers, func() { _ = store.Close() })
		logger.Info("Using SQLite store", "path", cfg.SQLitePath)

	default:
		return nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
	}
	return b, nil
}
