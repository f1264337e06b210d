// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

// Upload modes.
const (
	UploadNone    = "none"
	UploadFiles   = "files"
	UploadTarball = "tarball"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Upload    UploadConfig    `mapstructure:"upload"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the fetcher and per-host politeness.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	RPS            float64 `mapstructure:"rps"`
	Burst          int     `mapstructure:"burst"`
}

// DirectoryConfig locates the country directory and controls bootstrapping.
type DirectoryConfig struct {
	Path        string `mapstructure:"path"`
	IndexURL    string `mapstructure:"index_url"`
	Concurrency int    `mapstructure:"concurrency"`
}

// ScrapeConfig governs the work queue and what gets scraped.
type ScrapeConfig struct {
	DataDir            string   `mapstructure:"data_dir"`
	Workers            int      `mapstructure:"workers"`
	Source             string   `mapstructure:"source"`
	SitemapPath        string   `mapstructure:"sitemap_path"`
	RESTPath           string   `mapstructure:"rest_path"`
	PerPage            int      `mapstructure:"per_page"`
	MaxPostsPerCountry int      `mapstructure:"max_posts_per_country"`
	Countries          []string `mapstructure:"countries"`
	CountryStart       int      `mapstructure:"country_start"`
	CountryEnd         int      `mapstructure:"country_end"`
	MissingLog         string   `mapstructure:"missing_log"`
}

// UploadConfig controls where and how results reach object storage.
type UploadConfig struct {
	Mode        string `mapstructure:"mode"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	Stream      bool   `mapstructure:"stream"`
	TarballName string `mapstructure:"tarball_name"`
	Concurrency int    `mapstructure:"concurrency"`
}

// PubSubConfig holds metadata for per-post notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// DBConfig controls the optional Postgres event store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize    int  `mapstructure:"buffer_size"`
	BatchEvents   int  `mapstructure:"batch_events"`
	BatchWaitMs   int  `mapstructure:"batch_wait_ms"`
	LogEvents     bool `mapstructure:"log_events"`
	SinkTimeoutMs int  `mapstructure:"sink_timeout_ms"`
}

// Load builds a Config from disk/environment. Environment variables use the
// EMBASSY_ prefix with dots replaced by underscores, e.g. EMBASSY_SCRAPE_WORKERS.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EMBASSY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.user_agent", "embassy-scraper/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.rps", 0.33)
	v.SetDefault("http.burst", 1)
	v.SetDefault("directory.path", "data/embassy_url_map.json")
	v.SetDefault("directory.index_url", "https://www.usembassy.gov/post-sitemap.xml")
	v.SetDefault("directory.concurrency", 4)
	v.SetDefault("scrape.data_dir", "data")
	v.SetDefault("scrape.workers", 3)
	v.SetDefault("scrape.source", string(embassy.SourceSitemap))
	v.SetDefault("scrape.sitemap_path", embassy.DefaultSitemapPath)
	v.SetDefault("scrape.rest_path", embassy.DefaultRESTPath)
	v.SetDefault("scrape.per_page", 100)
	v.SetDefault("scrape.max_posts_per_country", 0)
	v.SetDefault("scrape.countries", []string{})
	v.SetDefault("scrape.country_start", 0)
	v.SetDefault("scrape.country_end", 0)
	v.SetDefault("scrape.missing_log", "data/missing_posts.log")
	v.SetDefault("upload.mode", UploadNone)
	v.SetDefault("upload.bucket", "")
	v.SetDefault("upload.prefix", "embassy")
	v.SetDefault("upload.stream", false)
	v.SetDefault("upload.tarball_name", "")
	v.SetDefault("upload.concurrency", 8)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "scrape_events")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("server.addr", "")
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.batch_events", 500)
	v.SetDefault("progress.batch_wait_ms", 500)
	v.SetDefault("progress.log_events", true)
	v.SetDefault("progress.sink_timeout_ms", 10000)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scrape.Workers <= 0 {
		return fmt.Errorf("scrape.workers must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RPS < 0 {
		return fmt.Errorf("http.rps must be >= 0")
	}
	if _, err := embassy.ParseListingSource(c.Scrape.Source); err != nil {
		return fmt.Errorf("scrape.source: %w", err)
	}
	if c.Scrape.PerPage <= 0 || c.Scrape.PerPage > 100 {
		return fmt.Errorf("scrape.per_page must be between 1 and 100")
	}
	if c.Scrape.CountryStart < 0 || c.Scrape.CountryEnd < 0 {
		return fmt.Errorf("scrape.country_start and scrape.country_end must be >= 0")
	}
	if c.Scrape.CountryEnd > 0 && c.Scrape.CountryEnd <= c.Scrape.CountryStart {
		return fmt.Errorf("scrape.country_end must be greater than scrape.country_start")
	}
	if c.Scrape.DataDir == "" {
		return fmt.Errorf("scrape.data_dir is required")
	}
	switch c.Upload.Mode {
	case UploadNone:
	case UploadFiles, UploadTarball:
		if c.Upload.Bucket == "" {
			return fmt.Errorf("upload.bucket is required when upload.mode is %q", c.Upload.Mode)
		}
	default:
		return fmt.Errorf("upload.mode must be one of none, files, tarball")
	}
	if c.Upload.Stream && c.Upload.Mode != UploadFiles {
		return fmt.Errorf("upload.stream requires upload.mode %q", UploadFiles)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set when pubsub is enabled")
	}
	return nil
}

// ListingSource returns the validated listing source.
func (c Config) ListingSource() embassy.ListingSource {
	src, err := embassy.ParseListingSource(c.Scrape.Source)
	if err != nil {
		return embassy.SourceSitemap
	}
	return src
}

// HTTPTimeout converts the fetch timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// SelectCountries applies scrape.countries, or the [country_start,
// country_end) window when no names are listed.
func (c Config) SelectCountries(dir embassy.Directory) embassy.Directory {
	if len(c.Scrape.Countries) > 0 {
		return dir.Filter(c.Scrape.Countries)
	}
	return dir.Range(c.Scrape.CountryStart, c.Scrape.CountryEnd)
}
