package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the slice of the credential store the reaper needs.
type Store interface {
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper periodically deletes unverified accounts older than maxAge. It is an
// explicit background task: the owner starts Run in a goroutine and stops it
// by cancelling the context.
type Reaper struct {
	repo     Store
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.SugaredLogger
}

func New(repo Store, interval, maxAge time.Duration, logger *zap.SugaredLogger) *Reaper {
	return &Reaper{
		repo:     repo,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep is idempotent; a failed sweep is retried on the next tick.
func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.maxAge)
	deleted, err := r.repo.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		r.logger.Errorw("reaper sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Infow("removed stale unverified accounts", "count", deleted)
	}
}
