// Package worker provides the bounded goroutine pool used for
// fire-and-forget gateway writes. All background work goes through the
// pool so panics are recovered and concurrency stays capped.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware unit of background work.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool   *ants.Pool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool of the given size bound to the service lifecycle.
func NewPool(ctx context.Context, size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 32
	}
	poolCtx, cancel := context.WithCancel(ctx)

	inner, err := ants.NewPool(size,
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("worker panic recovered", zap.Any("panic", p), zap.Stack("stack"))
		}),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Pool{pool: inner, ctx: poolCtx, cancel: cancel}, nil
}

// Submit schedules the task on the pool with the pool's lifecycle context.
func (p *Pool) Submit(task Task) error {
	if p == nil || p.pool == nil {
		return ErrPoolClosed
	}
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}
	return p.pool.Submit(func() {
		task(p.ctx)
	})
}

// Release cancels in-flight task contexts and shuts the pool down.
func (p *Pool) Release() {
	if p == nil {
		return
	}
	p.cancel()
	if p.pool != nil {
		p.pool.Release()
	}
}
