package trigger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

// ErrQueueFull is returned by MemoryQueue.Publish when the buffer is full.
var ErrQueueFull = errors.New("trigger queue full")

// ErrQueueClosed is returned by Publish after Stop.
var ErrQueueClosed = errors.New("trigger queue closed")

// MemoryQueue is an in-process Publisher drained by a fixed set of
// workers. Jobs are lost on process exit; use SQS where that matters.
type MemoryQueue struct {
	jobs    chan Job
	handler Handler
	workers int
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	log     *logger.Logger
	started bool
}

// NewMemoryQueue creates a queue with the given buffer and worker count.
// timeout bounds one Handle call; zero means no bound.
func NewMemoryQueue(handler Handler, buffer, workers int, timeout time.Duration) *MemoryQueue {
	if buffer <= 0 {
		buffer = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &MemoryQueue{
		jobs:    make(chan Job, buffer),
		handler: handler,
		workers: workers,
		timeout: timeout,
		log:     logger.Named("memory-queue"),
	}
}

// Publish implements Publisher. It never blocks.
func (q *MemoryQueue) Publish(ctx context.Context, j Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Start launches the workers.
func (q *MemoryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx)
	}
	q.log.Info("memory queue started", "workers", q.workers, "buffer", cap(q.jobs))
}

// Stop refuses new jobs, drains the buffer and waits for the workers.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
}

// Len returns the number of buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

func (q *MemoryQueue) run(ctx context.Context) {
	defer q.wg.Done()
	for j := range q.jobs {
		q.process(ctx, j)
	}
}

func (q *MemoryQueue) process(ctx context.Context, j Job) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("job handler panicked", "job_id", j.ID, "kind", j.Kind, "panic", r)
		}
	}()
	if err := q.handler.Handle(ctx, j); err != nil {
		q.log.Error("job failed", "job_id", j.ID, "kind", j.Kind, "error", err)
	}
}
