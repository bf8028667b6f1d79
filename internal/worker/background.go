// Package worker runs fire-and-forget tasks outside the request that
// started them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds how many background tasks run at once.
const DefaultConcurrency = 4

// ErrClosed is returned by Go after Shutdown has started.
var ErrClosed = errors.New("background executor is shut down")

// Task is a unit of background work.
type Task func(ctx context.Context) error

// Background executes tasks unsupervised: the submitter never sees the
// result, failures are logged, and nothing is retried.
type Background struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewBackground creates an executor that runs at most concurrency tasks
// at a time.
func NewBackground(concurrency int, logger *slog.Logger) *Background {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Background{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Go schedules task and returns immediately. The task runs with a context
// detached from any request; it is only cancelled by Shutdown.
func (b *Background) Go(name string, task Task) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		if err := b.sem.Acquire(b.ctx, 1); err != nil {
			b.logger.Warn("Background task dropped", "task", name, "error", err)
			return
		}
		defer b.sem.Release(1)
		b.run(name, task)
	}()
	return nil
}

func (b *Background) run(name string, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Background task panicked",
				"task", name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()

	if err := task(b.ctx); err != nil {
		b.logger.Error("Background task failed", "task", name, "error", err, "duration", time.Since(start))
		return
	}
	b.logger.Debug("Background task finished", "task", name, "duration", time.Since(start))
}

// Shutdown stops accepting tasks and waits for running ones to finish.
// If ctx ends first, running tasks are cancelled and Shutdown waits for
// them to return before reporting ctx's error.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}
