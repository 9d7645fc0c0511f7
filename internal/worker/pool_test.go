package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testPool(t *testing.T) (*Pool, *Lifetime) {
	t.Helper()
	lifetime := NewLifetime()
	pool := NewPool(lifetime, 8, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	go func() {
		pool.Run(context.Background())
		close(done)
	}()
	t.Cleanup(func() {
		pool.Close()
		<-done
	})
	return pool, lifetime
}

func TestLeaseReleaseIdempotent(t *testing.T) {
	l := NewLifetime()
	lease := l.Extend("test")
	if l.InFlight() != 1 {
		t.Fatalf("expected 1 in flight, got %d", l.InFlight())
	}
	lease.Release()
	lease.Release()
	if l.InFlight() != 0 {
		t.Fatalf("expected 0 in flight, got %d", l.InFlight())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWaitTimesOutWithHeldLease(t *testing.T) {
	l := NewLifetime()
	lease := l.Extend("held")
	defer lease.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSubmitHoldsLeaseUntilTaskDone(t *testing.T) {
	pool, lifetime := testPool(t)

	release := make(chan struct{})
	started := make(chan struct{})
	err := pool.Submit(context.Background(), QueueIntake, "slow", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	<-started
	if lifetime.InFlight() != 1 {
		t.Fatalf("expected lease held while running, got %d", lifetime.InFlight())
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lifetime.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	pool, lifetime := testPool(t)

	pool.Submit(context.Background(), QueueArchive, "boom", func(ctx context.Context) error {
		panic("boom")
	})

	var ran atomic.Bool
	err := pool.Call(context.Background(), QueueArchive, "after", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !ran.Load() {
		t.Fatal("expected queue to keep running after panic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lifetime.Wait(ctx); err != nil {
		t.Fatalf("lease leaked after panic: %v", err)
	}
}

func TestCallReturnsTaskError(t *testing.T) {
	pool, _ := testPool(t)

	want := errors.New("store write failed")
	err := pool.Call(context.Background(), QueueRestore, "restore", func(ctx context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestCancelledTaskIsDropped(t *testing.T) {
	pool, lifetime := testPool(t)

	block := make(chan struct{})
	pool.Submit(context.Background(), QueueAction, "blocker", func(ctx context.Context) error {
		<-block
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	if err := pool.Submit(ctx, QueueAction, "screen", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel()
	close(block)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := lifetime.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if ran.Load() {
		t.Fatal("expected cancelled task to be dropped")
	}
}

func TestSubmitErrors(t *testing.T) {
	pool, _ := testPool(t)

	if err := pool.Submit(context.Background(), "nope", "x", func(context.Context) error { return nil }); !errors.Is(err, ErrUnknownQueue) {
		t.Fatalf("expected ErrUnknownQueue, got %v", err)
	}

	pool.Close()
	if err := pool.Submit(context.Background(), QueueIntake, "x", func(context.Context) error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestCallValueReturnsThroughChannel(t *testing.T) {
	pool, _ := testPool(t)

	n, err := CallValue(context.Background(), pool, QueueRestore, "count", func(ctx context.Context) (int, error) {
		return 3, nil
	})
	if err != nil || n != 3 {
		t.Fatalf("CallValue = %d, %v", n, err)
	}

	_, err = CallValue(context.Background(), pool, QueueRestore, "boom", func(ctx context.Context) (int, error) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("expected an error from a panicking task")
	}
}

func TestCallValueEarlyReturnLeavesTaskRunning(t *testing.T) {
	pool, lifetime := testPool(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		_, err := CallValue(ctx, pool, QueueArchive, "slow", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		errc <- err
	}()

	<-started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	if err := lifetime.Wait(waitCtx); err != nil {
		t.Fatalf("task did not finish: %v", err)
	}
}

func TestCallValueWithoutPool(t *testing.T) {
	s, err := CallValue(context.Background(), nil, QueueAction, "inline", func(ctx context.Context) (string, error) {
		return "inline", nil
	})
	if err != nil || s != "inline" {
		t.Fatalf("CallValue = %q, %v", s, err)
	}
}
