package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsEveryIndex(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 3})
	results := make([]int, 10)

	err := pool.Run(context.Background(), len(results), func(_ context.Context, i int) {
		results[i] = i * i
	})
	require.NoError(t, err)
	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}

func TestPoolRespectsWorkerBound(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 2})
	var current, peak int32
	var mu sync.Mutex

	err := pool.Run(context.Background(), 8, func(_ context.Context, _ int) {
		n := atomic.AddInt32(&current, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestPoolDefaultsToSequential(t *testing.T) {
	pool := NewPool("test", PoolConfig{})
	assert.Equal(t, 1, pool.Workers())

	var order []int
	require.NoError(t, pool.Run(context.Background(), 4, func(_ context.Context, i int) {
		order = append(order, i)
	}))
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestPoolStopsSchedulingOnCancel(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	var ran int32

	err := pool.Run(ctx, 5, func(_ context.Context, i int) {
		atomic.AddInt32(&ran, 1)
		if i == 1 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, atomic.LoadInt32(&ran), int32(5))
}

func TestPoolReportsPanics(t *testing.T) {
	pool := NewPool("test", PoolConfig{Workers: 2})
	var ran int32

	err := pool.Run(context.Background(), 3, func(_ context.Context, i int) {
		atomic.AddInt32(&ran, 1)
		if i == 0 {
			panic("boom")
		}
	})
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
}
