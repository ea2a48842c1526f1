package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper evicts idle entries from an in-memory ledger.
type Sweeper interface {
	Sweep() int
}

// StartLedgerSweeper calls Sweep every interval until ctx is cancelled. The
// returned channel is closed once the loop has exited.
func StartLedgerSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if sweeper == nil || interval <= 0 {
		close(done)
		return done
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := sweeper.Sweep(); removed > 0 {
					logger.Debug("rate limit ledger swept", zap.Int("removed", removed))
				}
			}
		}
	}()
	return done
}
