package store

import (
	"context"
	"log/slog"
	"time"
)

const cleanupWorkerInterval = 1 * time.Hour

// StartCleanupWorker starts a background worker that periodically removes
// snapshots untouched for longer than ttl. It stops when ctx is canceled.
func StartCleanupWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	ticker := time.NewTicker(cleanupWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Snapshot cleanup worker started", "interval", cleanupWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				deleted, err := repo.CleanupStaleSnapshots(ctx, ttl)
				if err != nil {
					slog.Error("Snapshot cleanup failed", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("Snapshot cleanup removed stale rows", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("Snapshot cleanup worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
