package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when StartSweeper is given a non-positive interval.
const DefaultSweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically deletes expired
// keys until ctx is cancelled.
func StartSweeper(ctx context.Context, p Purger, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Expired-key sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, p)
			case <-ctx.Done():
				slog.Info("Expired-key sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, p Purger) {
	deleted, err := p.PurgeExpired(ctx)
	if err != nil {
		slog.Error("Sweeper failed to purge expired keys", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Sweeper purged expired keys", "count", deleted)
	}
}
