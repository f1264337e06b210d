// Package memory provides the in-memory work queue shared by the workers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

// Queue errors.
var (
	// ErrDrained means the queue is empty and no dequeued job is still running,
	// so no more work can arrive.
	ErrDrained = errors.New("queue drained")
	ErrClosed  = errors.New("queue closed")
)

// Queue is an unbounded FIFO with task accounting. Every job returned by
// Dequeue must be acknowledged with Done; a job counts as pending from Enqueue
// until its Done call.
type Queue struct {
	mu      sync.Mutex
	items   []embassy.Job
	pending int
	closed  bool
	// changed is closed and replaced whenever items, pending or closed change.
	changed chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{changed: make(chan struct{})}
}

// Enqueue appends a job. It never blocks on capacity.
func (q *Queue) Enqueue(ctx context.Context, job embassy.Job) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, job)
	q.pending++
	q.broadcastLocked()
	return nil
}

// Dequeue pops the next job. It blocks while the queue is empty but other jobs
// are in flight, and returns ErrDrained once nothing is left to do. A canceled
// ctx wins over queued work.
func (q *Queue) Dequeue(ctx context.Context) (embassy.Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return embassy.Job{}, fmt.Errorf("dequeue canceled: %w", err)
		}
		q.mu.Lock()
		switch {
		case q.closed:
			q.mu.Unlock()
			return embassy.Job{}, ErrClosed
		case len(q.items) > 0:
			job := q.items[0]
			q.items[0] = embassy.Job{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return job, nil
		case q.pending == 0:
			q.mu.Unlock()
			return embassy.Job{}, ErrDrained
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return embassy.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-wait:
		}
	}
}

// Done marks one dequeued job as finished.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		panic("memory queue: Done called more times than jobs enqueued")
	}
	q.pending--
	q.broadcastLocked()
}

// Wait blocks until every enqueued job has been marked Done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.pending == 0 || q.closed {
			q.mu.Unlock()
			return nil
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return fmt.Errorf("queue wait canceled: %w", ctx.Err())
		case <-wait:
		}
	}
}

// Len reports the number of jobs waiting to be dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending reports queued plus in-flight jobs.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close wakes all waiters; subsequent Enqueue and Dequeue calls fail.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	q.broadcastLocked()
}

func (q *Queue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}
