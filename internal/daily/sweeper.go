package daily

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs a background goroutine that periodically re-runs the
// abandoned-game sweep, so a long-lived process retires stale ad-hoc games
// without a restart. The startup sweep in main still satisfies the
// once-per-start contract; this only repeats it.
func (l *Lifecycle) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Abandoned-game sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				swept, err := l.CleanupAbandoned(ctx)
				if err != nil {
					slog.Error("Abandoned-game sweep failed", "error", err)
					continue
				}
				if swept > 0 {
					slog.Info("Marked abandoned games lost", "count", swept)
				}
			case <-ctx.Done():
				slog.Info("Abandoned-game sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
