package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newBootstrapCmd builds the country directory from the usembassy.gov sitemap.
func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Discover embassy websites and save the country directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			zap.L().Info("bootstrap finished",
				zap.Int("countries", len(res.Directory)),
				zap.Int("pages", len(res.Pages)),
			)
			return nil
		},
	}
}
