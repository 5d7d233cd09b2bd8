// Command api is the GBFC roster API server.
//
// Usage:
//
//	gbfc-api
//	GATEWAY=pg DATABASE_URL=postgres://... gbfc-api
//	API_PORT=8080 GATEWAY=sqlite SQLITE_PATH=gbfc.db gbfc-api

// @title GBFC Roster API
// @version 1.0.0
// @description Session-scoped view of a club's teams, players, matches and training sessions, with attendance tracking.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dilbarpun07/GBFC-website/internal/api"
	"github.com/Dilbarpun07/GBFC-website/internal/api/handler"
	"github.com/Dilbarpun07/GBFC-website/internal/auth"
	"github.com/Dilbarpun07/GBFC-website/internal/backend"
	"github.com/Dilbarpun07/GBFC-website/internal/cache"
	"github.com/Dilbarpun07/GBFC-website/internal/config"
	"github.com/Dilbarpun07/GBFC-website/internal/listener"
	"github.com/Dilbarpun07/GBFC-website/internal/maintenance"
	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
	"github.com/Dilbarpun07/GBFC-website/internal/repository"
	"github.com/Dilbarpun07/GBFC-website/internal/stream"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
	"github.com/Dilbarpun07/GBFC-website/internal/views"
)

const tokenLeeway = 30 * time.Second

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	verifier := auth.NewVerifier(cfg.SupabaseJWTSecret, tokenLeeway)
	if verifier.DevMode() {
		if cfg.IsProduction() {
			logger.Error("SUPABASE_JWT_SECRET is required in production")
			os.Exit(1)
		}
		logger.Warn("Auth in dev mode: principal taken from the " + auth.DevPrincipalHeader + " header")
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", "gateway", cfg.Gateway, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	defer appCache.Close()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Notices go to the log, the in-memory recorder and, if configured, NATS.
	recorder := notifications.NewRecorder(200)
	notifier := notifications.Fanout{notifications.NewLogNotifier(logger), recorder}

	var publisher *notifications.NATSPublisher
	if cfg.NATSURL != "" {
		publisher, err = notifications.NewNATSPublisher(notifications.DefaultNATSConfig(cfg.NATSURL), logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = append(notifier, publisher)
		logger.Info("NATS publisher connected", "url", cfg.NATSURL)
	} else {
		logger.Info("NATS publisher disabled (no NATS_URL)")
	}

	sync := syncer.New(syncer.Deps{
		Repos:    repository.NewSet(store.Gateway),
		Notifier: notifier,
		Logger:   logger,
	}, syncer.Options{
		IncrementMode:    cfg.AttendanceIncrementMode,
		IncrementWorkers: cfg.AttendanceWorkers,
	})
	logger.Info("Synchronizer ready",
		"gateway", store.Kind,
		"increment_mode", sync.IncrementMode())

	// Websocket hub fed by snapshot and notice subscriptions.
	hub := stream.NewHub(stream.DefaultConfig(), logger)
	go hub.Run(ctx)

	snaps, unsubSnaps := sync.Subscribe()
	defer unsubSnaps()
	notices, unsubNotices := recorder.Subscribe(64)
	defer unsubNotices()
	go stream.Relay(ctx, hub, snaps, notices)

	if publisher != nil {
		natsSnaps, unsub := sync.Subscribe()
		defer unsub()
		go publishSnapshots(ctx, publisher, natsSnaps, logger)
	}

	// External writes only surface through LISTEN/NOTIFY on Postgres.
	if store.Pool != nil {
		go listener.Start(ctx, listener.Config{DatabaseURL: cfg.DatabaseURL}, sync, logger)
	}

	go maintenance.Start(ctx, sync, nil, maintenance.Config{
		ResyncInterval:        cfg.ResyncInterval,
		DegradedRetryInterval: cfg.DegradedRetryInterval,
	}, logger)

	h := handler.New(handler.Deps{
		Sync:    sync,
		Views:   views.NewBuilder(nil, time.Local),
		Cache:   appCache,
		Notices: recorder,
		Hub:     hub,
		Store:   store.Pinger(),
		Config:  cfg,
		Logger:  logger,
	})
	router := api.NewRouter(h, verifier, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting GBFC API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	sync.End()
	logger.Info("Server stopped")
}

// publishSnapshots forwards snapshot summaries to <prefix>.snapshot.
func publishSnapshots(ctx context.Context, p *notifications.NATSPublisher, snaps <-chan *syncer.Snapshot, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if err := p.Publish("snapshot", snap.Summary()); err != nil {
				logger.Warn("Failed to publish snapshot", "version", snap.Version, "error", err)
			}
		}
	}
}
