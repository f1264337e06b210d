// Package missing records post and listing URLs that could not be scraped.
// Each record is one line of the form "Failed to scrape <url>".
package missing

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log appends failure lines to a file. It is safe for concurrent use.
type Log struct {
	logger *zap.Logger
	file   *os.File
}

// Open opens path for appending, creating it and its parent directory if
// needed.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("missing log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create missing log directory: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open missing log: %w", err)
	}
	encoderCfg := zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(f), zapcore.InfoLevel)
	return &Log{logger: zap.New(core), file: f}, nil
}

// Record appends one failure line.
func (l *Log) Record(url string) error {
	l.logger.Info("Failed to scrape " + url)
	return nil
}

// Close flushes and closes the file.
func (l *Log) Close() error {
	_ = l.logger.Sync()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close missing log: %w", err)
	}
	return nil
}

// Nop discards records.
type Nop struct{}

// Record implements embassy.MissingLog.
func (Nop) Record(string) error { return nil }
