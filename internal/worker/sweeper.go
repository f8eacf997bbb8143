package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
)

const sweepBatch = 100

// Sweeper periodically hands expired syntheses to the pool.
type Sweeper struct {
	repo   ports.SynthesisRepository
	pool   *Pool
	logger *zap.Logger
}

// NewSweeper creates a Sweeper feeding the given pool.
func NewSweeper(repo ports.SynthesisRepository, pool *Pool, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{repo: repo, pool: pool, logger: logger}
}

// Sweep queues deletion of every synthesis expired at now, one batch at most.
// It returns how many jobs were queued.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpired(ctx, now, sweepBatch)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, rec := range expired {
		if s.pool.Submit(Job{SynthesisID: rec.ID, AudioKey: rec.AudioKey}) {
			queued++
		}
	}
	if queued > 0 {
		s.logger.Info("sweeper: queued expired syntheses", zap.Int("count", queued))
	}
	return queued, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.Sweep(ctx, now); err != nil && ctx.Err() == nil {
				s.logger.Warn("sweeper: sweep failed", zap.Error(err))
			}
		}
	}
}
