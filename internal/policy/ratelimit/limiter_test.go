package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitThrottlesSameHost(t *testing.T) {
	t.Parallel()

	var observed atomic.Int32
	l := New(Config{
		RPS:   10, // one token every 100ms
		Burst: 1,
		Observe: func(host string, _ time.Duration) {
			if host == "fr.usembassy.gov" {
				observed.Add(1)
			}
		},
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://fr.usembassy.gov/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://fr.usembassy.gov/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.Equal(t, int32(1), observed.Load())
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.5, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://fr.usembassy.gov/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://de.usembassy.gov/a"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, 2, l.Hosts())
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://ke.usembassy.gov"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://ke.usembassy.gov")
	require.Error(t, err)
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://jp.usembassy.gov"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}
