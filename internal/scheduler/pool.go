// Package scheduler bounds how many external tool invocations run at once.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"reelmerge/internal/core/domain"
	"reelmerge/internal/metrics"
)

// Pool is a process-wide counting semaphore shared by every job. Download,
// normalize and merge calls all draw from the same slots.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int64
}

// NewPool returns a pool with the given number of slots. Capacity below one
// is treated as one.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Capacity reports the number of slots.
func (p *Pool) Capacity() int { return int(p.capacity) }

// Do waits for a slot, runs fn while holding it and releases it afterwards.
// If ctx ends while waiting, fn is not run and the context error is returned.
func (p *Pool) Do(ctx context.Context, stage domain.Stage, fn func(context.Context) error) error {
	waitStart := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	metrics.PoolWaitDuration.WithLabelValues(string(stage)).Observe(time.Since(waitStart).Seconds())

	metrics.PoolInFlight.Inc()
	defer metrics.PoolInFlight.Dec()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(string(stage), metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	return err
}
