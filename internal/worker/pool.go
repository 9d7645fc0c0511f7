// Package worker runs pipeline tasks on named background queues while holding
// keep-alive leases on the host lifetime.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Queue names, one per operation type
const (
	QueueIntake  = "intake"
	QueueArchive = "archive"
	QueueRestore = "restore"
	QueueAction  = "action"
)

var (
	// ErrPoolClosed is returned by Submit after Close
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrUnknownQueue is returned when submitting to a queue the pool does not have
	ErrUnknownQueue = errors.New("unknown queue")
)

// Task is a unit of work run on a queue
type Task func(ctx context.Context) error

type job struct {
	id    string
	name  string
	ctx   context.Context
	task  Task
	lease *Lease
}

// Pool owns one single-consumer queue per operation type
type Pool struct {
	lifetime *Lifetime
	logger   *slog.Logger
	queues   map[string]chan job

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool with the given queue names. size is the buffer of each queue.
func NewPool(lifetime *Lifetime, size int, logger *slog.Logger, queues ...string) *Pool {
	if len(queues) == 0 {
		queues = []string{QueueIntake, QueueArchive, QueueRestore, QueueAction}
	}
	p := &Pool{
		lifetime: lifetime,
		logger:   logger.With("component", "worker"),
		queues:   make(map[string]chan job, len(queues)),
	}
	for _, q := range queues {
		p.queues[q] = make(chan job, size)
	}
	return p
}

// Submit enqueues a task. The lease is acquired here and released after
// the task ran or was dropped. ctx travels with the task: cancelling it
// before the task starts drops the task.
func (p *Pool) Submit(ctx context.Context, queue, name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	ch, ok := p.queues[queue]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}

	j := job{
		id:    uuid.NewString(),
		name:  name,
		ctx:   ctx,
		task:  task,
		lease: p.lifetime.Extend(queue + "/" + name),
	}

	select {
	case ch <- j:
		return nil
	case <-ctx.Done():
		j.lease.Release()
		return ctx.Err()
	}
}

// Run consumes every queue until Close is called or ctx is done.
// Queued tasks are drained before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	g := new(errgroup.Group)

	for name, ch := range p.queues {
		g.Go(func() error {
			p.logger.Debug("queue consumer started", "queue", name)
			for j := range ch {
				p.execute(name, j)
			}
			p.logger.Debug("queue consumer stopped", "queue", name)
			return nil
		})
	}

	go func() {
		<-ctx.Done()
		p.Close()
	}()

	return g.Wait()
}

// Close stops accepting tasks. Consumers finish what is already queued.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.queues {
		close(ch)
	}
}

func (p *Pool) execute(queue string, j job) {
	defer j.lease.Release()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "queue", queue, "task", j.name, "task_id", j.id, "panic", r)
		}
	}()

	if err := j.ctx.Err(); err != nil {
		p.logger.Debug("task dropped", "queue", queue, "task", j.name, "task_id", j.id, "error", err)
		return
	}

	if err := j.task(j.ctx); err != nil {
		p.logger.Error("task failed", "queue", queue, "task", j.name, "task_id", j.id, "error", err)
		return
	}
	p.logger.Debug("task done", "queue", queue, "task", j.name, "task_id", j.id)
}

// Call runs task on queue and waits for its result. Cancelling ctx
// cancels the task and returns early.
func (p *Pool) Call(ctx context.Context, queue, name string, task Task) error {
	_, err := CallValue(ctx, p, queue, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
	return err
}

type callResult[T any] struct {
	value T
	err   error
}

// CallValue runs task on queue and waits for its value. The value comes back
// over a channel, so a caller that returned early on ctx shares nothing with
// the still running task. A nil pool runs task on the caller goroutine.
func CallValue[T any](ctx context.Context, p *Pool, queue, name string, task func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return task(ctx)
	}

	done := make(chan callResult[T], 1)

	err := p.Submit(ctx, queue, name, func(ctx context.Context) (err error) {
		var value T
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
			done <- callResult[T]{value: value, err: err}
		}()
		value, err = task(ctx)
		return err
	})

	var zero T
	if err != nil {
		return zero, err
	}

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
