// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
	"github.com/JakeFAU/embassy-scraper/internal/worker"
)

// Queue is the queue surface the dispatcher needs for status reporting.
type Queue interface {
	embassy.Queue
	Len() int
	Pending() int
}

// Runner is a unit of work the dispatcher runs concurrently.
type Runner interface {
	Run(ctx context.Context)
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   Queue
	workers []Runner
	stats   *worker.Stats

	running   atomic.Int32
	startedAt atomic.Int64
}

// Snapshot reports the state of a run.
type Snapshot struct {
	Workers   int                  `json:"workers"`
	Running   int                  `json:"running"`
	Queued    int                  `json:"queued"`
	Pending   int                  `json:"pending"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	Stats     worker.StatsSnapshot `json:"stats"`
}

// New creates a Dispatcher. stats may be nil.
func New(queue Queue, workers []Runner, stats *worker.Stats) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		stats:   stats,
	}
}

// Run starts all workers and blocks until every worker has returned, which
// happens once the queue drains or ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.startedAt.Store(time.Now().UnixNano())
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		d.running.Add(1)
		go func(r Runner) {
			defer wg.Done()
			defer d.running.Add(-1)
			r.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, job embassy.Job) error {
	if err := d.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Snapshot returns the current run status.
func (d *Dispatcher) Snapshot() Snapshot {
	snap := Snapshot{
		Workers: len(d.workers),
		Running: int(d.running.Load()),
		Queued:  d.queue.Len(),
		Pending: d.queue.Pending(),
		Stats:   d.stats.Snapshot(),
	}
	if ns := d.startedAt.Load(); ns > 0 {
		ts := time.Unix(0, ns).UTC()
		snap.StartedAt = &ts
	}
	return snap
}
