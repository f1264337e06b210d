// Package metrics exposes Prometheus collectors for outbound fetches.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

// Fetch groups the collectors describing traffic to embassy sites.
type Fetch struct {
	pages           *prometheus.CounterVec
	bytes           *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	rateLimitDelays *prometheus.HistogramVec
}

// NewFetch registers the fetch collectors with reg.
func NewFetch(reg prometheus.Registerer) (*Fetch, error) {
	m := &Fetch{
		pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embassy_fetch_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embassy_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embassy_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		),
		rateLimitDelays: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embassy_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		),
	}
	for _, c := range []prometheus.Collector{m.pages, m.bytes, m.latency, m.rateLimitDelays} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register fetch metrics: %w", err)
		}
	}
	return m, nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch records one fetch outcome.
func (m *Fetch) ObserveFetch(site, status string, bytesFetched int, duration time.Duration) {
	sanitized := SanitizeSite(site)
	m.pages.WithLabelValues(sanitized, status).Inc()
	if bytesFetched > 0 {
		m.bytes.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
	m.latency.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait. It matches
// the ratelimit observe hook.
func (m *Fetch) ObserveRateLimitDelay(host string, duration time.Duration) {
	m.rateLimitDelays.WithLabelValues(SanitizeSite(host)).Observe(duration.Seconds())
}

// Instrument wraps a Fetcher so every call is counted.
func (m *Fetch) Instrument(next embassy.Fetcher) embassy.Fetcher {
	return &instrumentedFetcher{next: next, metrics: m}
}

type instrumentedFetcher struct {
	next    embassy.Fetcher
	metrics *Fetch
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, req embassy.FetchRequest) (embassy.FetchResponse, error) {
	start := time.Now()
	resp, err := f.next.Fetch(ctx, req)
	f.metrics.ObserveFetch(req.URL, statusLabel(err), len(resp.Body), time.Since(start))
	return resp, err
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
