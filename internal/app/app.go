// Package app builds the long-lived services of the scraper and runs its
// commands: bootstrap, scrape, upload and package.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/embassy-scraper/internal/clock/system"
	"github.com/JakeFAU/embassy-scraper/internal/config"
	"github.com/JakeFAU/embassy-scraper/internal/embassy"
	collyfetcher "github.com/JakeFAU/embassy-scraper/internal/fetcher/colly"
	idgen "github.com/JakeFAU/embassy-scraper/internal/id/uuid"
	"github.com/JakeFAU/embassy-scraper/internal/metrics"
	"github.com/JakeFAU/embassy-scraper/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/embassy-scraper/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/embassy-scraper/internal/storage/gcs"
	localstorage "github.com/JakeFAU/embassy-scraper/internal/storage/local"
	pgstore "github.com/JakeFAU/embassy-scraper/internal/storage/postgres"
)

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	NewRunID() (uuid.UUID, error)
}

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	fetcher   embassy.Fetcher
	files     *localstorage.BlobStore
	remote    embassy.BlobStore
	publisher embassy.Publisher
	events    *pgstore.EventStore
	clock     embassy.Clock
	ids       RunIDGenerator

	gcsClient    *storage.Client
	pubsubTopic  *pubsubpublisher.Publisher
	closeTimeout time.Duration
}

// Option overrides a dependency, mostly for tests.
type Option func(*App)

// WithFetcher replaces the colly fetcher.
func WithFetcher(f embassy.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithRemoteStore replaces the GCS blob store.
func WithRemoteStore(s embassy.BlobStore) Option {
	return func(a *App) { a.remote = s }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p embassy.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithRegistry sets the Prometheus registry collectors are registered with.
func WithRegistry(r *prometheus.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithClock replaces the system clock.
func WithClock(c embassy.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithRunIDs replaces the UUIDv7 generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(a *App) { a.ids = g }
}

// Build creates the application's dependencies. Remote services are only
// dialed when the configuration asks for them and no override was given.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		cfg:          cfg,
		logger:       logger,
		closeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.clock == nil {
		app.clock = system.New()
	}
	if app.ids == nil {
		app.ids = idgen.New()
	}
	if app.registry == nil {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	app.logger.Info("building application dependencies",
		zap.String("source", string(cfg.ListingSource())),
		zap.Int("workers", cfg.Scrape.Workers),
		zap.String("upload_mode", cfg.Upload.Mode),
	)

	if err := app.setupFetcher(); err != nil {
		return nil, err
	}
	if err := app.setupFiles(); err != nil {
		return nil, err
	}
	if err := app.setupRemote(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}
	if err := app.setupPublisher(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}
	if err := app.setupEvents(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}
	return app, nil
}

// Registry exposes the Prometheus registry used by the app.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

func (a *App) setupFetcher() error {
	fetchMetrics, err := metrics.NewFetch(a.registry)
	if err != nil {
		return fmt.Errorf("fetch metrics init failed: %w", err)
	}
	if a.fetcher == nil {
		limiter := ratelimit.New(ratelimit.Config{
			RPS:     a.cfg.HTTP.RPS,
			Burst:   a.cfg.HTTP.Burst,
			Observe: fetchMetrics.ObserveRateLimitDelay,
		})
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:     a.cfg.HTTP.UserAgent,
			RespectRobots: a.cfg.HTTP.RespectRobots,
			Timeout:       a.cfg.HTTPTimeout(),
		}, limiter)
		a.logger.Info("using colly fetcher",
			zap.String("user_agent", a.cfg.HTTP.UserAgent),
			zap.Float64("rps", a.cfg.HTTP.RPS),
		)
	}
	a.fetcher = fetchMetrics.Instrument(a.fetcher)
	return nil
}

func (a *App) setupFiles() error {
	files, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Scrape.DataDir})
	if err != nil {
		return fmt.Errorf("local blob store init failed: %w", err)
	}
	a.files = files
	a.logger.Debug("local storage backend", zap.String("path", files.BaseDir()))
	return nil
}

func (a *App) setupRemote(ctx context.Context) error {
	if a.remote != nil || a.cfg.Upload.Mode == config.UploadNone {
		return nil
	}
	var err error
	a.gcsClient, err = storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("gcs client init failed: %w", err)
	}
	store, err := gcsstorage.Open(ctx, a.gcsClient, gcsstorage.Config{
		Bucket: a.cfg.Upload.Bucket,
		Prefix: a.cfg.Upload.Prefix,
	})
	if err != nil {
		return fmt.Errorf("gcs blob store init failed: %w", err)
	}
	a.remote = store
	a.logger.Info("using GCS storage backend",
		zap.String("bucket", a.cfg.Upload.Bucket),
		zap.String("prefix", a.cfg.Upload.Prefix),
	)
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.publisher != nil || !a.cfg.PubSub.Enabled {
		return nil
	}
	pub, err := pubsubpublisher.Open(ctx, pubsubpublisher.Config{
		ProjectID: a.cfg.PubSub.ProjectID,
		TopicID:   a.cfg.PubSub.Topic,
	})
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsubTopic = pub
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic),
	)
	return nil
}

func (a *App) setupEvents(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("no database DSN configured, skipping event store")
		return nil
	}
	events, err := pgstore.NewEventStore(ctx, pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("event store init failed: %w", err)
	}
	a.events = events
	if err := events.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("event store schema: %w", err)
	}
	a.logger.Info("event store initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

// Close releases remote clients. A scrape hands the event store to its
// progress hub, which closes it.
func (a *App) Close(ctx context.Context) {
	if a.pubsubTopic != nil {
		if err := a.pubsubTopic.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubTopic = nil
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcsClient = nil
	}
	if a.events != nil {
		if err := a.events.Close(ctx); err != nil {
			a.logger.Warn("event store close failed", zap.Error(err))
		}
		a.events = nil
	}
	_ = a.logger.Sync()
}

func (a *App) defaultTarballPath() string {
	dir := filepath.Clean(a.cfg.Scrape.DataDir)
	name := a.cfg.Upload.TarballName
	if name == "" {
		name = filepath.Base(dir) + ".tar.gz"
	}
	return filepath.Join(filepath.Dir(dir), name)
}
