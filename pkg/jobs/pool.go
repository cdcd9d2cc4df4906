package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task processes the item at index. Per-item failures are the task's concern.
type Task func(ctx context.Context, index int)

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers int
	Logger  *zap.Logger
}

// Pool runs indexed tasks on a bounded number of goroutines.
type Pool struct {
	name    string
	workers int
	logger  *zap.Logger
}

// NewPool builds a pool. Workers below one fall back to sequential execution.
func NewPool(name string, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{name: name, workers: cfg.Workers, logger: cfg.Logger}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes task for every index in [0, n) and waits for all started tasks.
// Scheduling stops once ctx is done; the context error is returned in that case.
// A panicking task does not stop the others and is reported as an error.
func (p *Pool) Run(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(p.workers)

	scheduled := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		index := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("pool task panicked", zap.String("pool", p.name), zap.Int("index", index), zap.Any("panic", r))
					err = fmt.Errorf("%s task %d panicked: %v", p.name, index, r)
				}
			}()
			task(ctx, index)
			return nil
		})
		scheduled++
	}

	waitErr := g.Wait()
	if scheduled < n {
		p.logger.Warn("pool run cancelled", zap.String("pool", p.name), zap.Int("scheduled", scheduled), zap.Int("total", n))
		return ctx.Err()
	}
	return waitErr
}
