// Package cmd defines and implements the CLI commands for the embassy-scraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/embassy-scraper/internal/app"
	"github.com/JakeFAU/embassy-scraper/internal/config"
	"github.com/JakeFAU/embassy-scraper/internal/directory"
	"github.com/JakeFAU/embassy-scraper/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Bootstrap(ctx context.Context) (directory.Result, error)
	Scrape(ctx context.Context) (app.Report, error)
	Upload(ctx context.Context) error
	Package(ctx context.Context, output string) (string, error)
	Close(ctx context.Context)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.Build(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "embassy-scraper",
		Short: "Scrapes posts from U.S. embassy websites.",
		Long: `embassy-scraper builds a directory of U.S. embassy websites, scrapes every
post from each site's sitemap or WordPress REST API into one text file per
post, and optionally uploads the result to Google Cloud Storage.`,
		SilenceUsage: true,

		// Load configuration, apply flag overrides, then build and inject the app.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyFlagOverrides(cmd, &cfg); err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// Shut services down once the subcommand returns.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close(context.WithoutCancel(cmd.Context()))
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(newBootstrapCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newPackageCmd())

	return cmd
}

// applyFlagOverrides copies explicitly set command flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("workers") {
		cfg.Scrape.Workers, err = flags.GetInt("workers")
	}
	if err == nil && flags.Changed("source") {
		cfg.Scrape.Source, err = flags.GetString("source")
	}
	if err == nil && flags.Changed("countries") {
		cfg.Scrape.Countries, err = flags.GetStringSlice("countries")
	}
	if err == nil && flags.Changed("max-posts") {
		cfg.Scrape.MaxPostsPerCountry, err = flags.GetInt("max-posts")
	}
	if err == nil && flags.Changed("upload") {
		cfg.Upload.Mode, err = flags.GetString("upload")
	}
	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
