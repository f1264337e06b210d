// Package upload copies scraped files to object storage, either one object per
// post file or as a single tarball.
package upload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/embassy-scraper/internal/archive"
	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

const (
	defaultConcurrency = 8
	textContentType    = "text/plain; charset=utf-8"
	tarContentType     = "application/gzip"
)

// Config controls upload fan-out.
type Config struct {
	Concurrency int
}

// Summary reports what an upload wrote.
type Summary struct {
	Objects int
	Bytes   int64
	URIs    []string
}

// Uploader writes local files through a BlobStore.
type Uploader struct {
	store  embassy.BlobStore
	cfg    Config
	logger *zap.Logger
}

// New constructs an Uploader.
func New(store embassy.BlobStore, cfg Config, logger *zap.Logger) *Uploader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{store: store, cfg: cfg, logger: logger}
}

// UploadFile uploads one local file to object.
func (u *Uploader) UploadFile(ctx context.Context, local, object string) (string, error) {
	return u.uploadFile(ctx, local, object, contentTypeFor(local))
}

func (u *Uploader) uploadFile(ctx context.Context, local, object, contentType string) (string, error) {
	// #nosec G304 -- local paths come from the data directory walk or operator input.
	f, err := os.Open(local)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", local, err)
	}
	defer func() { _ = f.Close() }()

	uri, err := u.store.PutObject(ctx, object, contentType, f)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", local, err)
	}
	u.logger.Debug("file uploaded", zap.String("file", local), zap.String("uri", uri))
	return uri, nil
}

// UploadDir uploads every regular file below dir. Object names are prefix
// joined with the slash-separated path relative to dir. The first failure
// cancels the remaining uploads.
func (u *Uploader) UploadDir(ctx context.Context, dir, prefix string) (Summary, error) {
	type item struct {
		local  string
		object string
		size   int64
	}
	var items []item
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		items = append(items, item{local: p, object: ObjectName(prefix, filepath.ToSlash(rel)), size: info.Size()})
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("walk %s: %w", dir, err)
	}

	start := time.Now()
	uris := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Concurrency)
	for i, it := range items {
		g.Go(func() error {
			uri, err := u.uploadFile(gctx, it.local, it.object, contentTypeFor(it.local))
			if err != nil {
				return err
			}
			uris[i] = uri
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("upload dir: %w", err)
	}

	sum := Summary{Objects: len(items), URIs: uris}
	for _, it := range items {
		sum.Bytes += it.size
	}
	u.logger.Info("directory uploaded",
		zap.String("dir", dir),
		zap.Int("objects", sum.Objects),
		zap.Int64("bytes", sum.Bytes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sum, nil
}

// UploadTarball packages dir as <name> in a temporary directory and uploads it
// to prefix/<name>.
func (u *Uploader) UploadTarball(ctx context.Context, dir, name, prefix string) (string, error) {
	if name == "" {
		name = filepath.Base(filepath.Clean(dir)) + ".tar.gz"
	}
	tmp, err := os.MkdirTemp("", "embassy-tar-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	local := filepath.Join(tmp, name)
	if err := archive.TarGz(ctx, local, dir); err != nil {
		return "", err
	}
	uri, err := u.uploadFile(ctx, local, ObjectName(prefix, name), tarContentType)
	if err != nil {
		return "", err
	}
	u.logger.Info("tarball uploaded", zap.String("dir", dir), zap.String("uri", uri))
	return uri, nil
}

// ObjectName joins prefix and rel with a single slash.
func ObjectName(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	rel = strings.TrimLeft(rel, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

func contentTypeFor(local string) string {
	switch {
	case strings.HasSuffix(local, ".tar.gz"), strings.HasSuffix(local, ".tgz"):
		return tarContentType
	case strings.HasSuffix(local, ".json"):
		return "application/json"
	default:
		return textContentType
	}
}
