package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	out := map[string]string{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(body)
	}
	return out
}

func TestTarGzRootsEntriesAtBaseName(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	src := filepath.Join(tmp, "data")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "france"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "france", "abc"), []byte("Title\nBody "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "embassy_url_map.json"), []byte("{}"), 0o600))

	out := filepath.Join(tmp, "embassy.tar.gz")
	require.NoError(t, TarGz(context.Background(), out, src))

	entries := readArchive(t, out)
	require.Equal(t, map[string]string{
		"data/":                     "",
		"data/france/":              "",
		"data/france/abc":           "Title\nBody ",
		"data/embassy_url_map.json": "{}",
	}, entries)
}

func TestTarGzSkipsOutputInsideSource(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(src, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "x"), []byte("x"), 0o600))

	out := filepath.Join(src, "data.tar.gz")
	require.NoError(t, TarGz(context.Background(), out, src))
	entries := readArchive(t, out)
	require.NotContains(t, entries, "data/data.tar.gz")
	require.Contains(t, entries, "data/x")
}

func TestTarGzErrors(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	err := TarGz(context.Background(), filepath.Join(tmp, "o.tar.gz"), filepath.Join(tmp, "missing"))
	require.Error(t, err)

	file := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	require.Error(t, TarGz(context.Background(), filepath.Join(tmp, "o.tar.gz"), file))

	src := filepath.Join(tmp, "src")
	require.NoError(t, os.MkdirAll(src, 0o750))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(tmp, "canceled.tar.gz")
	require.ErrorIs(t, TarGz(ctx, out, src), context.Canceled)
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}
