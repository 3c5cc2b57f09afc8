package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultCleanupInterval is used when no purge interval is configured.
const DefaultCleanupInterval = time.Hour

// Purger is implemented by backends that keep expired sessions until removed.
// Redis expires keys on its own and does not need one.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// StartCleaner purges expired sessions every interval until ctx is cancelled.
func StartCleaner(ctx context.Context, p Purger, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go cleanupLoop(ctx, p, interval, logger)
}

func cleanupLoop(ctx context.Context, p Purger, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
