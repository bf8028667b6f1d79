package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGoRunsTasksAndShutdownDrains(t *testing.T) {
	b := NewBackground(2, quietLogger())
	var ran int32

	for i := 0; i < 10; i++ {
		if err := b.Go("count", func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&ran, 1)
			return nil
		}); err != nil {
			t.Fatalf("Go failed: %v", err)
		}
	}

	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := atomic.LoadInt32(&ran); got != 10 {
		t.Fatalf("expected 10 tasks to run, got %d", got)
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	b := NewBackground(2, quietLogger())
	var running, peak int32

	for i := 0; i < 8; i++ {
		_ = b.Go("bounded", func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		})
	}
	_ = b.Shutdown(context.Background())

	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", peak)
	}
}

func TestFailuresAndPanicsAreContained(t *testing.T) {
	b := NewBackground(1, quietLogger())
	var after int32

	_ = b.Go("fails", func(ctx context.Context) error { return errors.New("boom") })
	_ = b.Go("panics", func(ctx context.Context) error { panic("kaboom") })
	_ = b.Go("after", func(ctx context.Context) error {
		atomic.StoreInt32(&after, 1)
		return nil
	})

	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if atomic.LoadInt32(&after) != 1 {
		t.Fatal("expected task after a panic to still run")
	}
}

func TestGoAfterShutdown(t *testing.T) {
	b := NewBackground(1, quietLogger())
	_ = b.Shutdown(context.Background())

	if err := b.Go("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestShutdownDeadlineCancelsTasks(t *testing.T) {
	b := NewBackground(1, quietLogger())
	started := make(chan struct{})

	_ = b.Go("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
