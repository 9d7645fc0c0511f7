package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lifetime keeps the host process alive while leases are held
type Lifetime struct {
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// Lease is one keep-alive held by a running task
type Lease struct {
	name     string
	lifetime *Lifetime
	once     sync.Once
}

// NewLifetime creates an empty lifetime
func NewLifetime() *Lifetime {
	return &Lifetime{}
}

// Extend acquires a lease. The caller must Release it, usually in a defer.
func (l *Lifetime) Extend(name string) *Lease {
	l.wg.Add(1)
	l.inFlight.Add(1)
	return &Lease{name: name, lifetime: l}
}

// InFlight returns the number of leases currently held
func (l *Lifetime) InFlight() int {
	return int(l.inFlight.Load())
}

// Wait blocks until every lease is released or ctx is done
func (l *Lifetime) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns the name the lease was acquired with
func (le *Lease) Name() string {
	return le.name
}

// Release gives the lease back. Safe to call more than once.
func (le *Lease) Release() {
	le.once.Do(func() {
		le.lifetime.inFlight.Add(-1)
		le.lifetime.wg.Done()
	})
}
