package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, embassy.Job{URL: u}))
	}
	require.Equal(t, 3, q.Len())
	require.Equal(t, 3, q.Pending())

	for _, want := range []string{"a", "b", "c"} {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, want, job.URL)
	}
	require.Equal(t, 0, q.Len())
	require.Equal(t, 3, q.Pending())
}

func TestQueueDrainedWhenNothingInFlight(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrDrained)

	require.NoError(t, q.Enqueue(context.Background(), embassy.Job{URL: "a"}))
	_, err = q.Dequeue(context.Background())
	require.NoError(t, err)
	q.Done()

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrDrained)
}

// TestQueueDequeueWaitsForInFlightWork covers a listing job that enqueues more
// work after another worker already found the queue empty.
func TestQueueDequeueWaitsForInFlightWork(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, embassy.Job{Kind: embassy.KindListing, URL: "listing"}))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	result := make(chan embassy.Job, 1)
	errCh := make(chan error, 1)
	go func() {
		job, err := q.Dequeue(ctx)
		if err != nil {
			errCh <- err
			return
		}
		result <- job
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, embassy.Job{Kind: embassy.KindPost, URL: "post"}))
	q.Done()

	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case job := <-result:
		require.Equal(t, "post", job.URL)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueBlockedDequeueSeesDrain(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, embassy.Job{URL: "only"}))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Done()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrDrained)
	case <-time.After(time.Second):
		t.Fatal("blocked dequeue never observed drain")
	}
}

func TestQueueCancelation(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Enqueue(context.Background(), embassy.Job{URL: "busy"}))
	_, err := q.Dequeue(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Dequeue(ctx)
	require.Error(t, err)
	require.Equal(t, "dequeue canceled: context canceled", err.Error())

	err = q.Enqueue(ctx, embassy.Job{})
	require.True(t, errors.Is(err, context.Canceled))

	err = q.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueDequeueCanceledWithQueuedWork(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Enqueue(context.Background(), embassy.Job{URL: "queued"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, q.Len())
}

func TestQueueWait(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, embassy.Job{URL: "a"}))

	done := make(chan struct{})
	go func() {
		if err := q.Wait(ctx); err == nil {
			close(done)
		}
	}()

	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	q.Done()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after all jobs were done")
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Enqueue(context.Background(), embassy.Job{URL: "a"}))
	q.Close()
	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, q.Enqueue(context.Background(), embassy.Job{}), ErrClosed)
	require.NoError(t, q.Wait(context.Background()))
	// Closing twice should be safe.
	q.Close()
}

func TestQueueDoneWithoutJobPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { NewQueue().Done() })
}
