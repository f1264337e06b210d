package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/embassy-scraper/internal/api"
	"github.com/JakeFAU/embassy-scraper/internal/archive"
	"github.com/JakeFAU/embassy-scraper/internal/config"
	"github.com/JakeFAU/embassy-scraper/internal/directory"
	"github.com/JakeFAU/embassy-scraper/internal/dispatcher"
	"github.com/JakeFAU/embassy-scraper/internal/embassy"
	"github.com/JakeFAU/embassy-scraper/internal/hash/sha1"
	"github.com/JakeFAU/embassy-scraper/internal/missing"
	"github.com/JakeFAU/embassy-scraper/internal/progress"
	progresssinks "github.com/JakeFAU/embassy-scraper/internal/progress/sinks"
	queuememory "github.com/JakeFAU/embassy-scraper/internal/queue/memory"
	"github.com/JakeFAU/embassy-scraper/internal/upload"
	"github.com/JakeFAU/embassy-scraper/internal/worker"
)

// ErrNoCountries is returned when the country selection is empty.
var ErrNoCountries = errors.New("no countries selected")

// Report summarizes a finished scrape.
type Report struct {
	RunID     uuid.UUID
	Countries int
	Stats     worker.StatsSnapshot
	Upload    upload.Summary
	Tarball   string
	Dropped   int64
	Duration  time.Duration
}

// Bootstrap discovers the embassy directory, saves it to directory.path and
// logs every embassy page that yielded no website.
func (a *App) Bootstrap(ctx context.Context) (directory.Result, error) {
	logger := a.logger.Named("bootstrap")
	d := directory.New(a.fetcher, directory.Config{
		IndexURL:    a.cfg.Directory.IndexURL,
		Concurrency: a.cfg.Directory.Concurrency,
	}, logger)

	res, err := d.Discover(ctx)
	if err != nil {
		return directory.Result{}, fmt.Errorf("discover embassies: %w", err)
	}
	if err := directory.Save(a.cfg.Directory.Path, res.Directory); err != nil {
		return res, err
	}
	missingPages := directory.Missing(res.Pages, res.Directory)
	for _, page := range missingPages {
		logger.Warn("no embassy website found", zap.String("url", page))
	}
	logger.Info("directory saved",
		zap.String("path", a.cfg.Directory.Path),
		zap.Int("countries", len(res.Directory)),
		zap.Int("missing", len(missingPages)),
	)
	return res, nil
}

// Scrape runs one full scrape: every selected country gets a listing job, the
// workers drain the queue, and the data directory is uploaded according to
// upload.mode.
func (a *App) Scrape(ctx context.Context) (Report, error) {
	dir, err := directory.Load(a.cfg.Directory.Path)
	if err != nil {
		return Report{}, err
	}
	selected := a.cfg.SelectCountries(dir)
	if len(selected) == 0 {
		return Report{}, ErrNoCountries
	}

	runID, err := a.ids.NewRunID()
	if err != nil {
		return Report{}, fmt.Errorf("run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID.String()))
	start := a.clock.Now()

	hub, err := a.newHub(logger)
	if err != nil {
		return Report{}, err
	}
	// The hub now owns the event store.
	a.events = nil

	missingLog, closeMissing, err := a.openMissing()
	if err != nil {
		a.closeHub(logger, hub)
		return Report{}, err
	}
	defer closeMissing()

	q := queuememory.NewQueue()
	defer q.Close()
	stats := &worker.Stats{}
	deps := worker.Deps{
		RunID:     runID,
		Queue:     q,
		Fetcher:   a.fetcher,
		Files:     a.files,
		Publisher: a.publisher,
		Hasher:    sha1.New(),
		Clock:     a.clock,
		Missing:   missingLog,
		Progress:  hub,
		Budget:    worker.NewBudget(a.cfg.Scrape.MaxPostsPerCountry),
		Stats:     stats,
	}
	if a.cfg.Upload.Mode == config.UploadFiles && a.cfg.Upload.Stream {
		deps.Mirror = a.remote
	}
	workerCfg := worker.Config{
		RESTPath: a.cfg.Scrape.RESTPath,
		PerPage:  a.cfg.Scrape.PerPage,
	}
	runners := make([]dispatcher.Runner, 0, a.cfg.Scrape.Workers)
	for i := 0; i < a.cfg.Scrape.Workers; i++ {
		runners = append(runners, worker.New(i, deps, workerCfg, logger.Named("worker")))
	}
	dispatch := dispatcher.New(q, runners, stats)

	for _, country := range selected {
		if err := dispatch.Enqueue(ctx, a.listingJob(country)); err != nil {
			a.closeHub(logger, hub)
			return Report{}, err
		}
	}

	stopServer := a.startStatusServer(ctx, logger, runID, dispatch, selected)
	defer stopServer()

	hub.Emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageRunStart, Count: len(selected)})
	logger.Info("scrape started",
		zap.Int("countries", len(selected)),
		zap.String("source", string(a.cfg.ListingSource())),
	)

	dispatch.Run(ctx)

	snap := stats.Snapshot()
	dur := a.clock.Now().Sub(start)
	hub.Emit(progress.Event{
		RunID: runID,
		TS:    a.clock.Now(),
		Stage: progress.StageRunDone,
		Count: int(snap.PostsWritten),
		Bytes: snap.Bytes,
		Dur:   dur,
	})
	report := Report{
		RunID:     runID,
		Countries: len(selected),
		Stats:     snap,
		Duration:  dur,
	}
	report.Dropped = a.closeHub(logger, hub)

	logger.Info("scrape finished",
		zap.Int64("posts_written", snap.PostsWritten),
		zap.Int64("posts_failed", snap.PostsFailed),
		zap.Int64("listings_failed", snap.ListingsFailed),
		zap.Duration("duration", dur),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("scrape interrupted: %w", err)
	}

	switch {
	case a.cfg.Upload.Mode == config.UploadFiles && !a.cfg.Upload.Stream:
		report.Upload, err = a.UploadFiles(ctx)
	case a.cfg.Upload.Mode == config.UploadTarball:
		report.Tarball, err = a.UploadTarball(ctx)
	}
	return report, err
}

// UploadFiles uploads every file under the data directory as its own object.
func (a *App) UploadFiles(ctx context.Context) (upload.Summary, error) {
	if a.remote == nil {
		return upload.Summary{}, errors.New("no remote store configured")
	}
	u := upload.New(a.remote, upload.Config{Concurrency: a.cfg.Upload.Concurrency}, a.logger.Named("upload"))
	return u.UploadDir(ctx, a.files.BaseDir(), "")
}

// UploadTarball packages the data directory and uploads the archive.
func (a *App) UploadTarball(ctx context.Context) (string, error) {
	if a.remote == nil {
		return "", errors.New("no remote store configured")
	}
	u := upload.New(a.remote, upload.Config{Concurrency: a.cfg.Upload.Concurrency}, a.logger.Named("upload"))
	return u.UploadTarball(ctx, a.files.BaseDir(), a.cfg.Upload.TarballName, "")
}

// Upload runs the configured upload mode against an existing data directory.
func (a *App) Upload(ctx context.Context) error {
	switch a.cfg.Upload.Mode {
	case config.UploadFiles:
		summary, err := a.UploadFiles(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("files uploaded", zap.Int("objects", summary.Objects), zap.Int64("bytes", summary.Bytes))
	case config.UploadTarball:
		uri, err := a.UploadTarball(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("tarball uploaded", zap.String("uri", uri))
	default:
		return fmt.Errorf("upload.mode is %q, nothing to upload", a.cfg.Upload.Mode)
	}
	return nil
}

// Package writes the data directory as a gzip tarball to output. An empty
// output places <tarball_name> next to the data directory.
func (a *App) Package(ctx context.Context, output string) (string, error) {
	if output == "" {
		output = a.defaultTarballPath()
	}
	if err := archive.TarGz(ctx, output, a.files.BaseDir()); err != nil {
		return "", err
	}
	a.logger.Info("tarball written", zap.String("path", output), zap.String("source", a.files.BaseDir()))
	return output, nil
}

func (a *App) listingJob(country embassy.Country) embassy.Job {
	if a.cfg.ListingSource() == embassy.SourceREST {
		return embassy.Job{
			Kind:    embassy.KindListing,
			Source:  embassy.SourceREST,
			Country: country,
			URL:     embassy.RESTListingURL(country.Website, a.cfg.Scrape.RESTPath, 1, a.cfg.Scrape.PerPage),
			Page:    1,
		}
	}
	return embassy.Job{
		Kind:    embassy.KindListing,
		Source:  embassy.SourceSitemap,
		Country: country,
		URL:     embassy.SitemapURL(country.Website, a.cfg.Scrape.SitemapPath),
	}
}

func (a *App) newHub(logger *zap.Logger) (*progress.Hub, error) {
	sinkList := []progress.Sink{}
	promSink, err := progresssinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList = append(sinkList, promSink)
	if a.cfg.Progress.LogEvents {
		sinkList = append(sinkList, progresssinks.NewLogSink(logger.Named("progress_log")))
	}
	if a.events != nil {
		sinkList = append(sinkList, a.events)
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.BatchEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.BatchWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		Logger:         logger.Named("progress_hub"),
	}
	logger.Debug("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return progress.NewHub(hubCfg, sinkList...), nil
}

func (a *App) closeHub(logger *zap.Logger, hub *progress.Hub) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), a.closeTimeout)
	defer cancel()
	if err := hub.Close(ctx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	dropped := hub.Dropped()
	if dropped > 0 {
		logger.Warn("progress events dropped", zap.Int64("dropped", dropped))
	}
	return dropped
}

func (a *App) openMissing() (embassy.MissingLog, func(), error) {
	if a.cfg.Scrape.MissingLog == "" {
		return missing.Nop{}, func() {}, nil
	}
	log, err := missing.Open(a.cfg.Scrape.MissingLog)
	if err != nil {
		return nil, nil, err
	}
	return log, func() {
		if err := log.Close(); err != nil {
			a.logger.Warn("missing log close failed", zap.Error(err))
		}
	}, nil
}

// startStatusServer serves the status API for the lifetime of the run when
// server.addr is set. The returned func stops it and waits for shutdown.
func (a *App) startStatusServer(
	ctx context.Context,
	logger *zap.Logger,
	runID uuid.UUID,
	status api.StatusSource,
	countries embassy.Directory,
) func() {
	if a.cfg.Server.Addr == "" {
		return func() {}
	}
	srv, err := api.NewServer(api.Options{
		RunID:      runID,
		Status:     status,
		Countries:  countries,
		Gatherer:   a.registry,
		Registerer: a.registry,
		Logger:     logger.Named("api"),
	})
	if err != nil {
		logger.Warn("status server disabled", zap.Error(err))
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(srvCtx, a.cfg.Server.Addr); err != nil {
			logger.Error("status server error", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
