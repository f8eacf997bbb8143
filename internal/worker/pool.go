// Package worker provides background processing for expired synthesis cleanup.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/ports"
)

// Job removes one synthesis: its audio file first, then its record.
type Job struct {
	SynthesisID string
	AudioKey    string
}

// Pool manages background workers for async deletion jobs.
type Pool struct {
	store   ports.WaveformStore
	repo    ports.SynthesisRepository
	logger  *zap.Logger
	timeout time.Duration

	jobs chan Job
	wg   sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool
}

// NewPool creates a worker pool with the given queue size.
func NewPool(store ports.WaveformStore, repo ports.SynthesisRepository, queueSize int, logger *zap.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		store:   store,
		repo:    repo,
		logger:  logger,
		timeout: 30 * time.Second,
		jobs:    make(chan Job, queueSize),
		pending: make(map[string]struct{}),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.processJob(job)
				p.done(job)
			}
		}()
	}
}

// Stop waits for workers to finish after closing the queue.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a job without blocking. It reports false when the job was
// dropped because the queue is full, the pool is stopped, or the same
// synthesis is already queued.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	if _, ok := p.pending[job.SynthesisID]; ok {
		return false
	}
	select {
	case p.jobs <- job:
		p.pending[job.SynthesisID] = struct{}{}
		return true
	default:
		p.logger.Warn("worker: dropping job", zap.String("id", job.SynthesisID))
		return false
	}
}

func (p *Pool) done(job Job) {
	p.mu.Lock()
	delete(p.pending, job.SynthesisID)
	p.mu.Unlock()
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if job.AudioKey != "" {
		if err := p.store.Delete(ctx, job.AudioKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
			// Keep the record so the next sweep retries the file.
			p.logger.Warn("worker: failed to delete audio", zap.String("key", job.AudioKey), zap.Error(err))
			return
		}
	}
	if err := p.repo.DeleteSynthesis(ctx, job.SynthesisID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.logger.Warn("worker: failed to delete synthesis", zap.String("id", job.SynthesisID), zap.Error(err))
		return
	}
	p.logger.Debug("worker: removed expired synthesis", zap.String("id", job.SynthesisID))
}
