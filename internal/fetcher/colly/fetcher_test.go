package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

func TestFetcherFetchSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "embassy-test/1.0", r.UserAgent())
		assert.Equal(t, "yes", r.Header.Get("X-Trace"))
		w.Header().Set("X-WP-TotalPages", "3")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(server.Close)

	limiter := &countingLimiter{}
	f := New(Config{UserAgent: "embassy-test/1.0", Timeout: time.Second}, limiter)

	resp, err := f.Fetch(context.Background(), embassy.FetchRequest{
		URL:     server.URL + "/post-sitemap.xml",
		Headers: http.Header{"X-Trace": {"yes"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<html>ok</html>", string(resp.Body))
	require.Equal(t, "3", resp.Headers.Get("X-WP-TotalPages"))
	require.Equal(t, server.URL+"/post-sitemap.xml", resp.URL)
	require.Equal(t, int32(1), limiter.calls.Load())
}

func TestFetcherFetchRepeatsSameURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("again"))
	}))
	t.Cleanup(server.Close)

	f := New(Config{}, nil)
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), embassy.FetchRequest{URL: server.URL})
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), hits.Load())
}

func TestFetcherFetchNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	f := New(Config{Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background(), embassy.FetchRequest{URL: server.URL + "/missing"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")
}

func TestFetcherFetchLimiterError(t *testing.T) {
	t.Parallel()

	f := New(Config{}, &countingLimiter{err: errors.New("slow down")})
	_, err := f.Fetch(context.Background(), embassy.FetchRequest{URL: "https://fr.usembassy.gov"})
	require.ErrorContains(t, err, "slow down")
}

func TestFetcherFetchCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{Timeout: 5 * time.Second}, nil).Fetch(ctx, embassy.FetchRequest{URL: server.URL})
	require.Error(t, err)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	req := embassy.FetchRequest{
		URL:     "https://fr.usembassy.gov",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result embassy.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://fr.usembassy.gov/")},
	})
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "ok", result.Headers.Get("X-Resp"))
	require.Equal(t, "https://fr.usembassy.gov/", result.URL)

	hooks.onError(&colly.Response{StatusCode: http.StatusForbidden}, errors.New("Forbidden"))
	require.EqualError(t, fetchErr, "status 403: Forbidden")

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

type countingLimiter struct {
	calls atomic.Int32
	err   error
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return l.err
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
