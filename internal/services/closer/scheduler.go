package closer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run starts the periodic sweep and reminder passes. Both run in one goroutine,
// so a slow sweep delays the next tick instead of overlapping it. reminder may be nil.
func Run(ctx context.Context, interval time.Duration, c *Closer, reminder *Reminder) {
	if interval <= 0 {
		interval = time.Minute
	}
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		zap.L().Info("closer.started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				zap.L().Info("closer.stopped")
				return
			case <-tk.C:
				c.Sweep(ctx)
				if reminder != nil {
					reminder.Remind(ctx)
				}
			}
		}
	}()
}
