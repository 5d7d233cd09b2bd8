// Package listener provides a Postgres LISTEN/NOTIFY consumer that keeps the
// synchronizer in step with writes made outside this process. It holds a
// dedicated pgx connection (not from the pool) listening on the
// `roster_changed` channel.
//
// Statement triggers on the four roster tables fire pg_notify with the table
// name. Notifications arriving within a short window are coalesced into one
// resync of the affected collections.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

const (
	channel          = "roster_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second

	// DefaultCoalesceWindow groups the notifications of one cascade.
	DefaultCoalesceWindow = 250 * time.Millisecond
)

// ChangeEvent is the JSON payload from pg_notify('roster_changed', ...).
type ChangeEvent struct {
	Table     string `json:"table"`
	Op        string `json:"op"`
	Timestamp int64  `json:"ts"`
}

// Resyncer is the part of the synchronizer the listener drives.
type Resyncer interface {
	State() syncer.State
	Resync(ctx context.Context, kinds ...model.Kind) error
}

// Config controls the listener.
type Config struct {
	DatabaseURL    string
	CoalesceWindow time.Duration
	Clock          clockwork.Clock
}

// Start opens a dedicated connection and listens on the roster_changed
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, cfg Config, target Resyncer, logger *slog.Logger) {
	if cfg.CoalesceWindow <= 0 {
		cfg.CoalesceWindow = DefaultCoalesceWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	kinds := make(chan model.Kind, 64)
	go Coalesce(ctx, cfg.Clock, cfg.CoalesceWindow, kinds, func(batch []model.Kind) {
		resync(ctx, target, batch, logger)
	})

	var backoff time.Duration
	for {
		connected, err := listenLoop(ctx, cfg.DatabaseURL, kinds, logger)
		if ctx.Err() != nil {
			logger.Info("Roster listener stopped (context cancelled)")
			return
		}

		backoff = nextBackoff(backoff, connected)
		logger.Error("Roster listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-cfg.Clock.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

// nextBackoff returns the wait before the next reconnect. A session that got
// as far as LISTEN starts the sequence over; consecutive failures double the
// wait up to maxReconnect.
func nextBackoff(prev time.Duration, connected bool) time.Duration {
	if connected || prev <= 0 {
		return reconnectBackoff
	}
	return min(prev*2, maxReconnect)
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled; connected reports whether LISTEN succeeded.
func listenLoop(ctx context.Context, dbURL string, out chan<- model.Kind, logger *slog.Logger) (connected bool, err error) {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return false, fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Roster listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("wait for notification: %w", err)
		}

		kind, err := ParsePayload(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse roster event",
				"payload", notification.Payload, "error", err)
			continue
		}
		logger.Debug("Roster event received", "kind", kind)

		select {
		case out <- kind:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

// ParsePayload decodes a notification payload into the collection it names.
func ParsePayload(payload string) (model.Kind, error) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return model.ParseKind(ev.Table)
}

// Coalesce collects kinds from in and calls fn once per window with the
// distinct kinds seen, in arrival order. The window opens with the first
// kind after a flush. Returns when ctx is cancelled or in is closed.
func Coalesce(ctx context.Context, clock clockwork.Clock, window time.Duration, in <-chan model.Kind, fn func([]model.Kind)) {
	var (
		pending []model.Kind
		seen    = make(map[model.Kind]bool)
		timer   clockwork.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		if len(pending) > 0 {
			fn(pending)
		}
		pending = nil
		seen = make(map[model.Kind]bool)
		fire = nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case k, ok := <-in:
			if !ok {
				flush()
				return
			}
			if !seen[k] {
				seen[k] = true
				pending = append(pending, k)
			}
			if fire == nil {
				timer = clock.NewTimer(window)
				fire = timer.Chan()
			}
		case <-fire:
			flush()
		}
	}
}

func resync(ctx context.Context, target Resyncer, kinds []model.Kind, logger *slog.Logger) {
	if target.State() != syncer.StateReady {
		logger.Debug("Ignoring roster change outside a ready session", "kinds", kinds)
		return
	}
	if err := target.Resync(ctx, kinds...); err != nil {
		logger.Warn("Resync after roster change failed", "kinds", kinds, "error", err)
		return
	}
	logger.Info("Resynced after external change", "kinds", kinds)
}
