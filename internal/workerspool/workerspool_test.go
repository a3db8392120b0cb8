// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatch(t *testing.T) {
	pool := New().SetMaxParallelism(4)
	defer pool.Close()
	items := make([]int, 1000)
	for ii := range items {
		items[ii] = ii
	}
	var sum atomic.Int64
	require.NoError(t, ProcessBatch(pool, items, func(item int) error {
		sum.Add(int64(item))
		return nil
	}))
	assert.Equal(t, int64(999*1000/2), sum.Load())
}

func TestProcessBatch_CallerBlocks(t *testing.T) {
	pool := New().SetMaxParallelism(1).SetQueueSize(1)
	defer pool.Close()
	assert.Equal(t, 1, pool.QueueSize())

	release := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	var count atomic.Int32
	items := make([]int, 10)
	require.NoError(t, ProcessBatch(pool, items, func(_ int) error {
		<-release
		count.Add(1)
		return nil
	}))
	// No task is dropped, the submitter waited for room in the queue instead.
	assert.Equal(t, int32(10), count.Load())
	assert.Greater(t, pool.NumParked(), int64(0))
}

func TestProcessBatch_Errors(t *testing.T) {
	pool := New().SetMaxParallelism(2)
	defer pool.Close()
	var count atomic.Int32
	err := ProcessBatch(pool, []int{0, 1, 2, 3, 4}, func(item int) error {
		count.Add(1)
		if item == 3 {
			return errors.Errorf("item %d failed", item)
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 3 failed")
	assert.Equal(t, int32(5), count.Load())

	err = ProcessBatch(pool, []int{0, 1}, func(item int) error {
		if item == 1 {
			panic(errors.New("boom"))
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPool_Parallelism(t *testing.T) {
	// No parallelism: tasks run inline, in order.
	pool := New().SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	var order []int
	require.NoError(t, ProcessBatch(pool, []int{0, 1, 2}, func(item int) error {
		order = append(order, item)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2}, order)

	// Unlimited.
	pool = New().SetMaxParallelism(-1)
	assert.True(t, pool.IsUnlimited())
	var count atomic.Int32
	require.NoError(t, ProcessBatch(pool, make([]int, 50), func(_ int) error {
		count.Add(1)
		return nil
	}))
	assert.Equal(t, int32(50), count.Load())
}

func TestPool_Close(t *testing.T) {
	pool := New().SetMaxParallelism(2)
	var count atomic.Int32
	for range 10 {
		require.NoError(t, pool.Submit(func() { count.Add(1) }))
	}
	pool.Close()
	assert.Equal(t, int32(10), count.Load())
	assert.ErrorIs(t, pool.Submit(func() {}), ErrClosed)
	pool.Close()

	// SetMaxParallelism after start is ignored.
	pool = New().SetMaxParallelism(1)
	require.NoError(t, pool.Submit(func() {}))
	pool.SetMaxParallelism(3)
	assert.Equal(t, 1, pool.MaxParallelism())
	pool.Close()
}

func TestPool_ConfigureWhileSubmitting(t *testing.T) {
	pool := New().SetMaxParallelism(2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			pool.SetMaxParallelism(3)
			pool.SetQueueSize(7)
		}
	}()
	var count atomic.Int32
	for range 100 {
		require.NoError(t, pool.Submit(func() { count.Add(1) }))
	}
	<-done
	pool.Close()
	assert.Equal(t, int32(100), count.Load())
	assert.Contains(t, []int{2, 3}, pool.MaxParallelism())
}
