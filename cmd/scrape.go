package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newScrapeCmd runs the worker pool over the selected countries.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape posts for the selected countries",
		Long: `Loads the country directory, enqueues one listing job per selected country,
and runs the workers until the queue drains. Files are written under
scrape.data_dir and uploaded according to upload.mode.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Scrape(cmd.Context())
			if err != nil {
				return err
			}
			zap.L().Info("scrape command finished",
				zap.String("run_id", report.RunID.String()),
				zap.Int("countries", report.Countries),
				zap.Int64("posts_written", report.Stats.PostsWritten),
				zap.Int64("posts_failed", report.Stats.PostsFailed),
				zap.Int("uploaded", report.Upload.Objects),
				zap.String("tarball", report.Tarball),
				zap.Duration("duration", report.Duration),
			)
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "number of concurrent workers (overrides scrape.workers)")
	cmd.Flags().String("source", "", "listing source: sitemap or rest (overrides scrape.source)")
	cmd.Flags().StringSlice("countries", nil, "countries to scrape (overrides scrape.countries)")
	cmd.Flags().Int("max-posts", 0, "max posts per country, 0 for all (overrides scrape.max_posts_per_country)")
	cmd.Flags().String("upload", "", "upload mode: none, files or tarball (overrides upload.mode)")
	return cmd
}
