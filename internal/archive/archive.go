// Package archive packages a scraped data directory as a gzip tarball.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// TarGz writes sourceDir to output as a .tar.gz archive. Entries are rooted at
// the base name of sourceDir, so data/france/x is stored as data/france/x.
// A partially written output is removed on error.
func TarGz(ctx context.Context, output, sourceDir string) (err error) {
	src := filepath.Clean(sourceDir)
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %q is not a directory", sourceDir)
	}
	absOut, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}

	// #nosec G304 -- output path comes from operator configuration.
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(output)
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	root := filepath.Base(src)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if abs, err := filepath.Abs(path); err == nil && abs == absOut {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return addEntry(tw, path, filepath.ToSlash(filepath.Join(root, rel)), d)
	})

	if err := tw.Close(); err != nil && walkErr == nil {
		walkErr = fmt.Errorf("close tar: %w", err)
	}
	if err := gz.Close(); err != nil && walkErr == nil {
		walkErr = fmt.Errorf("close gzip: %w", err)
	}
	if err := f.Close(); err != nil && walkErr == nil {
		walkErr = fmt.Errorf("close archive: %w", err)
	}
	if walkErr != nil {
		return fmt.Errorf("build archive: %w", walkErr)
	}
	return nil
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if info.IsDir() {
		return nil
	}
	// #nosec G304 -- path is produced by WalkDir under the source directory.
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}
