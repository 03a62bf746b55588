package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DefaultMaxLogSize is the size above which NewFileLogger rotates an
// existing log file
const DefaultMaxLogSize int64 = 10 << 20

// NewFileLogger creates a logger that appends to path and mirrors every
// line to stderr. An existing file larger than maxSize is first renamed to
// <path>.<timestamp>; maxSize <= 0 disables rotation.
func NewFileLogger(path string, level Level, jsonFormat bool, maxSize int64) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}

	backup, err := rotateIfNeeded(path, maxSize, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to rotate log file %s: %w", path, err)
	}

	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	logger := New(io.MultiWriter(logFile, os.Stderr), level, jsonFormat)
	logger.logFile = logFile
	if backup != "" {
		logger.Info("Log rotated", map[string]interface{}{"from": path, "to": backup})
	}
	return logger, nil
}

// rotateIfNeeded renames path to a timestamped backup when it exceeds
// maxSize and returns the backup path ("" when nothing was rotated).
func rotateIfNeeded(path string, maxSize int64, now time.Time) (string, error) {
	if maxSize <= 0 {
		return "", nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if info.Size() <= maxSize {
		return "", nil
	}

	backup := path + "." + now.Format("20060102-150405")
	if err := os.Rename(path, backup); err != nil {
		return "", err
	}
	return backup, nil
}

// Close closes the log file if the logger has one. Loggers derived with
// WithField share the file, so close only the root logger.
func (l *Logger) Close() error {
	if l.logFile == nil {
		return nil
	}
	return l.logFile.Close()
}
