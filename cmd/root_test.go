package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/embassy-scraper/internal/app"
	"github.com/JakeFAU/embassy-scraper/internal/config"
	"github.com/JakeFAU/embassy-scraper/internal/directory"
	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

type fakeApp struct {
	cfg       config.Config
	calls     []string
	packageTo string
	err       error
	closed    bool
}

func (f *fakeApp) Bootstrap(context.Context) (directory.Result, error) {
	f.calls = append(f.calls, "bootstrap")
	return directory.Result{Directory: embassy.Directory{{Name: "france"}}}, f.err
}

func (f *fakeApp) Scrape(context.Context) (app.Report, error) {
	f.calls = append(f.calls, "scrape")
	return app.Report{Countries: 1}, f.err
}

func (f *fakeApp) Upload(context.Context) error {
	f.calls = append(f.calls, "upload")
	return f.err
}

func (f *fakeApp) Package(_ context.Context, output string) (string, error) {
	f.calls = append(f.calls, "package")
	f.packageTo = output
	return output, f.err
}

func (f *fakeApp) Close(context.Context) {
	f.closed = true
}

func withFakeApp(t *testing.T, fake *fakeApp) {
	t.Helper()
	prev := newApp
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = prev })
}

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(os.Stderr)
	return root.ExecuteContext(context.Background())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestScrapeCommandAppliesFlags(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)
	cfgPath := writeConfig(t, "scrape:\n  workers: 2\n  data_dir: "+t.TempDir()+"\n")

	err := runRoot(t, "--config", cfgPath, "scrape",
		"--workers", "5",
		"--source", "rest",
		"--countries", "france,chad",
		"--max-posts", "3",
	)
	require.NoError(t, err)
	require.Equal(t, []string{"scrape"}, fake.calls)
	require.True(t, fake.closed)
	require.Equal(t, 5, fake.cfg.Scrape.Workers)
	require.Equal(t, "rest", fake.cfg.Scrape.Source)
	require.Equal(t, []string{"france", "chad"}, fake.cfg.Scrape.Countries)
	require.Equal(t, 3, fake.cfg.Scrape.MaxPostsPerCountry)
}

func TestScrapeCommandRejectsInvalidOverride(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	err := runRoot(t, "scrape", "--source", "rss")
	require.Error(t, err)
	require.Empty(t, fake.calls)
}

func TestBootstrapCommand(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	require.NoError(t, runRoot(t, "bootstrap"))
	require.Equal(t, []string{"bootstrap"}, fake.calls)
}

func TestPackageCommandPassesOutput(t *testing.T) {
	fake := &fakeApp{}
	withFakeApp(t, fake)

	out := filepath.Join(t.TempDir(), "posts.tar.gz")
	require.NoError(t, runRoot(t, "package", "-o", out))
	require.Equal(t, out, fake.packageTo)
}

func TestUploadCommandPropagatesErrors(t *testing.T) {
	fake := &fakeApp{err: errors.New("bucket missing")}
	withFakeApp(t, fake)
	t.Setenv("EMBASSY_UPLOAD_BUCKET", "bucket")

	err := runRoot(t, "upload", "--upload", "files")
	require.ErrorContains(t, err, "bucket missing")
	require.Equal(t, config.UploadFiles, fake.cfg.Upload.Mode)
}

func TestResolveAppWithoutApp(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
