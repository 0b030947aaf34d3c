package logging

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation styles.
const (
	// RotationNumbered keeps backups as base.1 (newest) through base.N.
	RotationNumbered = "numbered"
	// RotationTimestamp delegates to lumberjack, which names backups
	// base-<timestamp>.ext and measures the ceiling in whole megabytes.
	RotationTimestamp = "timestamp"
)

// ValidRotationStyles returns the accepted rotation style names.
func ValidRotationStyles() []string {
	return []string{RotationNumbered, RotationTimestamp}
}

// timestampWriter adapts lumberjack.Logger to the writer shape the Sink
// expects. lumberjack checks the ceiling before each write too, but has no
// generation numbering, so it is only used when explicitly configured.
type timestampWriter struct {
	logger *lumberjack.Logger
	closed atomic.Bool
}

// NewTimestampWriter returns a lumberjack-backed writer. The byte ceiling is
// rounded up to whole megabytes; zero keeps lumberjack's own default.
func NewTimestampWriter(path string, config RotationConfig) io.WriteCloser {
	const mb = 1024 * 1024
	maxSize := 0
	if config.MaxBytes > 0 {
		maxSize = int((config.MaxBytes + mb - 1) / mb)
	}

	return &timestampWriter{
		logger: &lumberjack.Logger{
			Filename:   filepath.Clean(path),
			MaxSize:    maxSize,
			MaxBackups: config.BackupCount,
			LocalTime:  true,
		},
	}
}

func (w *timestampWriter) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, ErrWriterClosed
	}
	return w.logger.Write(p)
}

// Rotate forces lumberjack to start a new file.
func (w *timestampWriter) Rotate() error {
	if w.closed.Load() {
		return ErrWriterClosed
	}
	return w.logger.Rotate()
}

func (w *timestampWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := w.logger.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
