// Package worker implements the scrape loop: listing jobs fan out into post
// jobs, post jobs fetch one page and write its text.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
	"github.com/JakeFAU/embassy-scraper/internal/progress"
)

const defaultContentType = "text/plain; charset=utf-8"

// Config controls Worker behavior.
type Config struct {
	RESTPath    string
	PerPage     int
	ContentType string
}

// Deps holds the collaborators shared by every worker of a run. Mirror,
// Publisher, Missing, Progress, Budget and Stats are optional.
type Deps struct {
	RunID     uuid.UUID
	Queue     embassy.Queue
	Fetcher   embassy.Fetcher
	Files     embassy.BlobStore
	Mirror    embassy.BlobStore
	Publisher embassy.Publisher
	Hasher    embassy.Hasher
	Clock     embassy.Clock
	Missing   embassy.MissingLog
	Progress  progress.Emitter
	Budget    *Budget
	Stats     *Stats
}

// Worker consumes queue items and executes the scrape pipeline.
type Worker struct {
	id     int
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(id int, deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}
	if deps.Progress == nil {
		deps.Progress = progress.NopEmitter{}
	}
	if deps.Stats == nil {
		deps.Stats = &Stats{}
	}
	return &Worker{
		id:     id,
		deps:   deps,
		cfg:    cfg,
		logger: logger.With(zap.Int("worker", id)),
	}
}

// Run consumes jobs until the queue reports an error (drained, closed or
// canceled). Every dequeued job is acknowledged exactly once.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			w.logger.Debug("worker stopping", zap.Error(err))
			return
		}
		w.process(ctx, job)
		w.deps.Queue.Done()
	}
}

func (w *Worker) process(ctx context.Context, job embassy.Job) {
	switch job.Kind {
	case embassy.KindListing:
		w.processListing(ctx, job)
	case embassy.KindPost:
		w.processPost(ctx, job)
	default:
		w.logger.Error("unknown job kind", zap.Stringer("kind", job.Kind), zap.String("url", job.URL))
	}
}

func (w *Worker) processListing(ctx context.Context, job embassy.Job) {
	start := w.now()
	logger := w.logger.With(zap.String("country", job.Country.Name), zap.String("url", job.URL))

	resp, err := w.fetch(ctx, job.URL)
	if err != nil {
		w.listingFailed(logger, job, start, err)
		return
	}

	var enqueued int
	switch job.Source {
	case embassy.SourceREST:
		enqueued, err = w.expandREST(ctx, job, resp)
	default:
		enqueued, err = w.expandSitemap(ctx, job, resp)
	}
	if err != nil {
		w.listingFailed(logger, job, start, err)
		return
	}

	w.deps.Stats.listingsDone.Add(1)
	logger.Debug("listing processed", zap.Int("enqueued", enqueued))
	w.emit(progress.Event{
		Stage:   progress.StageListingDone,
		Country: job.Country.Name,
		URL:     job.URL,
		Count:   enqueued,
		Dur:     w.now().Sub(start),
	})
}

func (w *Worker) expandSitemap(ctx context.Context, job embassy.Job, resp embassy.FetchResponse) (int, error) {
	sitemap, err := embassy.ParseSitemap(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("parse sitemap: %w", err)
	}
	if sitemap.Index {
		for _, loc := range sitemap.Locations {
			child := embassy.Job{
				Kind:    embassy.KindListing,
				Source:  embassy.SourceSitemap,
				Country: job.Country,
				URL:     loc,
			}
			if err := w.deps.Queue.Enqueue(ctx, child); err != nil {
				return 0, fmt.Errorf("enqueue child sitemap: %w", err)
			}
		}
		return len(sitemap.Locations), nil
	}
	return w.enqueuePosts(ctx, job, sitemap.Locations)
}

func (w *Worker) expandREST(ctx context.Context, job embassy.Job, resp embassy.FetchResponse) (int, error) {
	listing, err := embassy.ParsePostListing(resp.Body, resp.Headers)
	if err != nil {
		return 0, fmt.Errorf("parse post listing: %w", err)
	}
	n, err := w.enqueuePosts(ctx, job, listing.Links)
	if err != nil {
		return n, err
	}
	page := job.Page
	if page < 1 {
		page = 1
	}
	if page >= listing.TotalPages || w.deps.Budget.Exhausted(job.Country.Name) {
		return n, nil
	}
	next := embassy.Job{
		Kind:    embassy.KindListing,
		Source:  embassy.SourceREST,
		Country: job.Country,
		URL:     embassy.RESTListingURL(job.Country.Website, w.cfg.RESTPath, page+1, w.cfg.PerPage),
		Page:    page + 1,
	}
	if err := w.deps.Queue.Enqueue(ctx, next); err != nil {
		return n, fmt.Errorf("enqueue page %d: %w", page+1, err)
	}
	return n + 1, nil
}

func (w *Worker) enqueuePosts(ctx context.Context, job embassy.Job, links []string) (int, error) {
	n := 0
	for i, link := range links {
		if !w.deps.Budget.Reserve(job.Country.Name) {
			break
		}
		post := embassy.Job{
			Kind:    embassy.KindPost,
			Country: job.Country,
			URL:     link,
			Order:   i,
		}
		if err := w.deps.Queue.Enqueue(ctx, post); err != nil {
			return n, fmt.Errorf("enqueue post: %w", err)
		}
		n++
	}
	return n, nil
}

func (w *Worker) listingFailed(logger *zap.Logger, job embassy.Job, start time.Time, err error) {
	w.deps.Stats.listingsFailed.Add(1)
	logger.Warn("listing failed", zap.Error(err))
	w.recordMissing(job.URL)
	w.emit(progress.Event{
		Stage:   progress.StageListingFailed,
		Country: job.Country.Name,
		URL:     job.URL,
		Dur:     w.now().Sub(start),
		Note:    err.Error(),
	})
}

func (w *Worker) processPost(ctx context.Context, job embassy.Job) {
	start := w.now()
	logger := w.logger.With(zap.String("country", job.Country.Name), zap.String("url", job.URL))

	object, size, err := w.scrapePost(ctx, job)
	if err != nil {
		w.deps.Stats.postsFailed.Add(1)
		logger.Warn("post failed", zap.Error(err))
		w.recordMissing(job.URL)
		w.emit(progress.Event{
			Stage:   progress.StagePostFailed,
			Country: job.Country.Name,
			URL:     job.URL,
			Dur:     w.now().Sub(start),
			Note:    err.Error(),
		})
		return
	}

	w.deps.Stats.postsWritten.Add(1)
	w.deps.Stats.bytes.Add(size)
	logger.Debug("post written", zap.String("object", object), zap.Int64("bytes", size))
	w.emit(progress.Event{
		Stage:   progress.StagePostWritten,
		Country: job.Country.Name,
		URL:     job.URL,
		Object:  object,
		Bytes:   size,
		Dur:     w.now().Sub(start),
	})
}

// scrapePost fetches, extracts and persists one post, returning the object
// path relative to the data directory.
func (w *Worker) scrapePost(ctx context.Context, job embassy.Job) (string, int64, error) {
	resp, err := w.fetch(ctx, job.URL)
	if err != nil {
		return "", 0, err
	}
	post, err := embassy.ExtractPost(job.URL, resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("extract post: %w", err)
	}
	name, err := w.deps.Hasher.Hash([]byte(post.Title))
	if err != nil {
		return "", 0, fmt.Errorf("hash title: %w", err)
	}
	object := job.Country.Name + "/" + name
	data := post.Render()

	uri, err := w.deps.Files.PutObject(ctx, object, w.cfg.ContentType, bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("write post: %w", err)
	}
	if w.deps.Mirror != nil {
		mirrored, err := w.deps.Mirror.PutObject(ctx, object, w.cfg.ContentType, bytes.NewReader(data))
		if err != nil {
			return "", 0, fmt.Errorf("upload post: %w", err)
		}
		uri = mirrored
	}
	if err := w.publish(ctx, job, post, uri, len(data)); err != nil {
		return "", 0, err
	}
	return object, int64(len(data)), nil
}

func (w *Worker) publish(ctx context.Context, job embassy.Job, post embassy.Post, uri string, size int) error {
	if w.deps.Publisher == nil {
		return nil
	}
	payload := map[string]any{
		"run_id":    w.deps.RunID.String(),
		"country":   job.Country.Name,
		"url":       job.URL,
		"title":     post.Title,
		"uri":       uri,
		"bytes":     size,
		"timestamp": w.now().Format(time.RFC3339),
	}
	if _, err := w.deps.Publisher.Publish(ctx, payload); err != nil {
		return fmt.Errorf("publish post: %w", err)
	}
	return nil
}

func (w *Worker) fetch(ctx context.Context, url string) (embassy.FetchResponse, error) {
	if w.deps.Fetcher == nil {
		return embassy.FetchResponse{}, errors.New("no fetcher configured")
	}
	resp, err := w.deps.Fetcher.Fetch(ctx, embassy.FetchRequest{URL: url})
	if err != nil {
		return embassy.FetchResponse{}, fmt.Errorf("fetch: %w", err)
	}
	return resp, nil
}

func (w *Worker) recordMissing(url string) {
	if w.deps.Missing == nil {
		return
	}
	if err := w.deps.Missing.Record(url); err != nil {
		w.logger.Error("record missing url failed", zap.String("url", url), zap.Error(err))
	}
}

func (w *Worker) emit(evt progress.Event) {
	evt.RunID = w.deps.RunID
	evt.TS = w.now()
	w.deps.Progress.Emit(evt)
}

func (w *Worker) now() time.Time {
	if w.deps.Clock == nil {
		return time.Now().UTC()
	}
	return w.deps.Clock.Now()
}
