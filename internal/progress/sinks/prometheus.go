package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/embassy-scraper/internal/progress"
)

// PrometheusSink exports scrape progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runDuration   prometheus.Histogram

	listings      *prometheus.CounterVec
	postsEnqueued *prometheus.CounterVec
	posts         *prometheus.CounterVec
	postBytes     *prometheus.CounterVec
	postDuration  *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "embassy_runs_started_total",
			Help: "Scrape runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "embassy_runs_completed_total",
			Help: "Scrape runs that finished.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "embassy_run_duration_seconds",
			Help:    "Wall time per scrape run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embassy_listings_total",
			Help: "Listing jobs processed partitioned by country and result.",
		}, []string{"country", "result"}),
		postsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embassy_jobs_enqueued_total",
			Help: "Jobs enqueued by listing jobs per country.",
		}, []string{"country"}),
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embassy_posts_total",
			Help: "Post jobs processed partitioned by country and result.",
		}, []string{"country", "result"}),
		postBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "embassy_post_bytes_total",
			Help: "Bytes of post text written per country.",
		}, []string{"country"}),
		postDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "embassy_post_duration_seconds",
			Help:    "Fetch, extract and write time per post.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.listings,
		s.postsEnqueued,
		s.posts,
		s.postBytes,
		s.postDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.Inc()
		if evt.Dur > 0 {
			s.runDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageListingDone:
		s.listings.WithLabelValues(evt.Country, "success").Inc()
		if evt.Count > 0 {
			s.postsEnqueued.WithLabelValues(evt.Country).Add(float64(evt.Count))
		}
	case progress.StageListingFailed:
		s.listings.WithLabelValues(evt.Country, "error").Inc()
	case progress.StagePostWritten:
		s.posts.WithLabelValues(evt.Country, "success").Inc()
		if evt.Bytes > 0 {
			s.postBytes.WithLabelValues(evt.Country).Add(float64(evt.Bytes))
		}
		s.observePost(evt, "success")
	case progress.StagePostFailed:
		s.posts.WithLabelValues(evt.Country, "error").Inc()
		s.observePost(evt, "error")
	}
}

func (s *PrometheusSink) observePost(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.postDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
