package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StagePostWritten))
	hub.Emit(sampleEvent(StagePostWritten))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 25 * time.Millisecond}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageRunStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubFlushOnCloseAndClosesSinks(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	hub.Emit(sampleEvent(StageListingDone))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.True(t, sink.closed)

	// Emit after close is ignored and a second Close is harmless.
	hub.Emit(sampleEvent(StageListingDone))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchWait: time.Minute}, sink)
	hub.Emit(Event{Stage: StagePostWritten})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestHubEmitNonBlockingWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{events: make(chan Event)}
	start := time.Now()
	hub.Emit(sampleEvent(StageRunStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(1), hub.Dropped())
}

func TestHubSinkErrorDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	failing := newStubSink()
	failing.err = errors.New("db down")
	ok := newStubSink()
	hub := NewHub(Config{MaxBatchWait: time.Minute}, failing, nil, ok)
	hub.Emit(sampleEvent(StagePostFailed))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, ok.Batches(), 1)
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(sampleEvent(StageRunStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Zero(t, hub.Dropped())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	evt := sampleEvent(StagePostWritten)
	require.NoError(t, evt.Validate())

	evt.Country = ""
	require.Error(t, evt.Validate())

	evt = sampleEvent(StageRunDone)
	evt.Country, evt.URL = "", ""
	require.NoError(t, evt.Validate())

	evt.Stage = "BOGUS"
	require.Error(t, evt.Validate())

	evt = sampleEvent(StagePostFailed)
	require.True(t, evt.Failed())
	evt.Dur = -time.Second
	require.Error(t, evt.Validate())
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	copy(out, s.batches)
	return out
}

func sampleEvent(stage Stage) Event {
	return Event{
		RunID:   uuid.New(),
		TS:      time.Now(),
		Stage:   stage,
		Country: "france",
		URL:     "https://fr.usembassy.gov/post/",
	}
}
