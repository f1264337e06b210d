package missing

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendsLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "missing.log")
	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Record("https://fr.usembassy.gov/a/"))
	require.NoError(t, log.Close())

	log, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Record("https://fr.usembassy.gov/b/"))
	require.NoError(t, log.Close())

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "Failed to scrape https://fr.usembassy.gov/a/\nFailed to scrape https://fr.usembassy.gov/b/\n", string(data))
}

func TestLogConcurrentRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.log")
	log, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = log.Record("https://td.usembassy.gov/x/")
		}()
	}
	wg.Wait()
	require.NoError(t, log.Close())

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	require.Equal(t, 20, lines)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	require.Error(t, err)
	require.NoError(t, Nop{}.Record("x"))
}
