package conversation

import (
	"context"
	"log/slog"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

// StartSweeper runs a background goroutine that periodically drops flows
// idle for longer than ttl. It stops when ctx is cancelled.
func StartSweeper(ctx context.Context, store IdleSweeper, ttl, interval time.Duration) {
	if ttl <= 0 {
		slog.Info("Session sweeper disabled", "ttl", ttl)
		return
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepIdle(ctx, store, ttl)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepIdle(ctx context.Context, store IdleSweeper, ttl time.Duration) int {
	removed, err := store.DeleteIdle(ctx, time.Now().Add(-ttl))
	if err != nil {
		slog.Error("Session sweeper failed", "error", err)
		return 0
	}
	if removed > 0 {
		slog.Info("Session sweeper expired idle flows", "count", removed)
	}
	return removed
}
