package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newUploadCmd uploads an existing data directory.
func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the data directory as files or a tarball",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Upload(cmd.Context())
		},
	}
	cmd.Flags().String("upload", "", "upload mode: files or tarball (overrides upload.mode)")
	return cmd
}

// newPackageCmd writes the data directory to a local tarball.
func newPackageCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Write the data directory to a gzip tarball",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			path, err := appInstance.Package(cmd.Context(), output)
			if err != nil {
				return err
			}
			zap.L().Info("package finished", zap.String("path", path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "tarball path (default <data_dir>.tar.gz)")
	return cmd
}
