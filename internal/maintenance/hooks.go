package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

// Reconcile refetches every collection. Call this after a seed or bulk
// import, or on the periodic resync tick.
func Reconcile(ctx context.Context, target Target, logger *slog.Logger) error {
	start := time.Now()
	err := target.Resync(ctx, model.AllKinds...)
	dur := time.Since(start).Round(time.Millisecond)

	if err != nil {
		logger.Warn("Reconcile failed", "duration", dur, "error", err)
		return fmt.Errorf("reconcile: %w", err)
	}
	snap := target.Snapshot()
	logger.Info("Reconciled collections",
		"duration", dur,
		"version", snap.Version,
		"teams", len(snap.Teams),
		"players", len(snap.Players),
		"matches", len(snap.Matches),
		"training_sessions", len(snap.TrainingSessions))
	return nil
}
