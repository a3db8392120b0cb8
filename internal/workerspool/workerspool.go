// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a pool of workers fed by a bounded queue of tasks.
//
// When the queue is full, submitters block: they park for CallerBlocksPause and resubmit, so work is
// never dropped nor rejected.
package workerspool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// QueueSizePerWorker is the default number of queued tasks per worker.
const QueueSizePerWorker = 25

// CallerBlocksPause is how long a submitter parks before retrying, when the queue is full.
var CallerBlocksPause = 100 * time.Nanosecond

// ErrClosed is returned when submitting to a closed Pool.
var ErrClosed = errors.New("workerspool: pool is closed")

// Pool of workers consuming tasks from a bounded queue.
//
// Workers are started lazily on the first submission, and run until Close is called.
type Pool struct {
	// maxParallelism is the number of workers.
	maxParallelism int
	queueSize      int

	mu      sync.RWMutex
	started bool
	closed  bool
	queue   chan func()
	workers sync.WaitGroup

	// numParked counts the number of times a submitter found the queue full.
	numParked atomic.Int64
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	return &Pool{maxParallelism: runtime.NumCPU()}
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.MaxParallelism() != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.MaxParallelism() < 0
}

// MaxParallelism is the number of workers.
// If set to 0 parallelism is disabled, and tasks are run inline by the submitter.
// If set to -1 parallelism is unlimited, and each task runs in its own goroutine.
func (w *Pool) MaxParallelism() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism. It returns the Pool itself, so calls can be cascaded.
//
// It must be called before the first task is submitted.
func (w *Pool) SetMaxParallelism(maxParallelism int) *Pool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		klog.Warningf("workerspool: SetMaxParallelism(%d) called after workers started, ignored", maxParallelism)
		return w
	}
	w.maxParallelism = maxParallelism
	return w
}

// QueueSize returns the capacity of the queue of pending tasks.
// It defaults to QueueSizePerWorker times the number of workers.
func (w *Pool) QueueSize() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lockedQueueSize()
}

func (w *Pool) lockedQueueSize() int {
	if w.queueSize > 0 {
		return w.queueSize
	}
	return max(1, w.maxParallelism*QueueSizePerWorker)
}

// SetQueueSize sets the capacity of the queue of pending tasks. It returns the Pool itself, so calls can be cascaded.
//
// It must be called before the first task is submitted.
func (w *Pool) SetQueueSize(queueSize int) *Pool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		klog.Warningf("workerspool: SetQueueSize(%d) called after workers started, ignored", queueSize)
		return w
	}
	w.queueSize = queueSize
	return w
}

// NumParked returns how many times submitters had to park because the queue was full.
func (w *Pool) NumParked() int64 {
	return w.numParked.Load()
}

// lockedStart starts the workers. It must be called with w.mu write-locked.
func (w *Pool) lockedStart() {
	w.started = true
	w.queue = make(chan func(), w.lockedQueueSize())
	w.workers.Add(w.maxParallelism)
	for range w.maxParallelism {
		go func() {
			defer w.workers.Done()
			for task := range w.queue {
				task()
			}
		}()
	}
	klog.V(2).Infof("workerspool: started %d workers, queue size %d", w.maxParallelism, cap(w.queue))
}

// trySubmit tries to queue the task without blocking. It returns false if the queue is full.
func (w *Pool) trySubmit(task func()) (bool, error) {
	w.mu.RLock()
	if !w.started && !w.closed {
		w.mu.RUnlock()
		w.mu.Lock()
		if !w.started && !w.closed {
			w.lockedStart()
		}
		w.mu.Unlock()
		w.mu.RLock()
	}
	defer w.mu.RUnlock()
	if w.closed {
		return false, ErrClosed
	}
	select {
	case w.queue <- task:
		return true, nil
	default:
		return false, nil
	}
}

// Submit queues the task to be run by one of the workers.
//
// If the queue is full, the caller blocks: it parks for CallerBlocksPause and tries again, until the
// task is accepted. It returns ErrClosed if the Pool is closed.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline and returns when it is finished.
// If parallelism is unlimited, it starts the task in a new goroutine.
func (w *Pool) Submit(task func()) error {
	if w.IsUnlimited() {
		go task()
		return nil
	} else if !w.IsEnabled() {
		task()
		return nil
	}
	for {
		accepted, err := w.trySubmit(task)
		if err != nil {
			return err
		}
		if accepted {
			return nil
		}
		w.numParked.Add(1)
		time.Sleep(CallerBlocksPause)
	}
}

// Close stops accepting tasks, and waits for the queued ones to finish.
// It is safe to call it more than once.
func (w *Pool) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.started {
		close(w.queue)
	}
	w.mu.Unlock()
	w.workers.Wait()
}

// ProcessBatch runs action on each of the items using the workers of the Pool, and waits for all of them to finish.
//
// It returns the first error returned by an action, after all actions finished. Panics in an action are
// converted to errors.
func ProcessBatch[T any](w *Pool, items []T, action func(item T) error) error {
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, item := range items {
		wg.Add(1)
		err := w.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					if err, ok := r.(error); ok {
						setErr(errors.WithMessage(err, "panic in ProcessBatch action"))
					} else {
						setErr(errors.Errorf("panic in ProcessBatch action: %v", r))
					}
				}
			}()
			if err := action(item); err != nil {
				setErr(err)
			}
		})
		if err != nil {
			wg.Done()
			setErr(err)
			break
		}
	}
	wg.Wait()
	return firstErr
}
