package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Default rotation parameters.
const (
	DefaultMaxBytes    = 10 * 1024 * 1024
	DefaultBackupCount = 5
)

// ErrWriterClosed is returned by writes after Close.
var ErrWriterClosed = errors.New("log file is closed")

// RotationConfig holds configuration for log rotation.
type RotationConfig struct {
	// MaxBytes is the size ceiling of the active file. A value of 0 disables
	// rotation and the writer behaves like a plain append-only file.
	MaxBytes int64
	// BackupCount is the number of numbered generations to keep.
	// A value of 0 keeps no backups: the active file is discarded on rotation.
	BackupCount int
	// OnError receives rotation and reopen failures. They are never returned
	// from Write. The callback must not write to the same writer.
	OnError func(error)
}

// DefaultRotationConfig returns a RotationConfig with the default 10 MB
// ceiling and five backups.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxBytes:    DefaultMaxBytes,
		BackupCount: DefaultBackupCount,
	}
}

// Discard as a Rename target removes the source generation.
const Discard = -1

// Rename moves generation From to generation To. Generation 0 is the active
// file; To == Discard deletes From.
type Rename struct {
	From int
	To   int
}

// RotationPlan is the outcome of a rotation decision.
type RotationPlan struct {
	Rotate  bool
	Renames []Rename
}

// Plan decides whether a pending write must be preceded by a rotation.
//
// Rotation happens when the active file is non-empty and the write would
// take it past maxBytes. A write that lands exactly on maxBytes does not
// rotate; the next one does. The renames, in order, discard the oldest
// generation, shift every other generation up by one, and move the active
// file to generation 1.
func Plan(activeSize, pending, maxBytes int64, backups int) RotationPlan {
	if maxBytes <= 0 || activeSize <= 0 || activeSize+pending <= maxBytes {
		return RotationPlan{}
	}
	return RotationPlan{Rotate: true, Renames: generationShift(backups)}
}

func generationShift(backups int) []Rename {
	if backups <= 0 {
		return []Rename{{From: 0, To: Discard}}
	}
	renames := make([]Rename, 0, backups+1)
	renames = append(renames, Rename{From: backups, To: Discard})
	for i := backups - 1; i >= 0; i-- {
		renames = append(renames, Rename{From: i, To: i + 1})
	}
	return renames
}

// RotatingWriter is an append-only file writer that rotates numbered
// backups before a write would exceed the size ceiling. The file is opened
// lazily on the first write. It is safe for concurrent use.
type RotatingWriter struct {
	mu sync.Mutex

	// Configuration
	filePath    string
	maxBytes    int64
	backupCount int
	onError     func(error)
	rename      func(oldpath, newpath string) error

	// State
	file        *os.File
	currentSize int64
	closed      bool
}

// NewRotatingWriter creates a RotatingWriter for filePath. No file is
// touched until the first write.
func NewRotatingWriter(filePath string, config RotationConfig) *RotatingWriter {
	return &RotatingWriter{
		filePath:    filePath,
		maxBytes:    config.MaxBytes,
		backupCount: config.BackupCount,
		onError:     config.OnError,
		rename:      os.Rename,
	}
}

// openFile opens the log file for appending and records its size.
// The caller must hold the mutex.
func (rw *RotatingWriter) openFile() error {
	if err := os.MkdirAll(filepath.Dir(rw.filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(rw.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	rw.file = file
	rw.currentSize = info.Size()
	return nil
}

// Write implements io.Writer. The rotation decision is made before the
// bytes are appended; a failed rotation is reported to OnError and the
// write goes to the current file regardless.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return 0, ErrWriterClosed
	}
	if rw.file == nil {
		if err := rw.openFile(); err != nil {
			return 0, err
		}
	}

	plan := Plan(rw.currentSize, int64(len(p)), rw.maxBytes, rw.backupCount)
	if plan.Rotate {
		if err := rw.rotate(plan.Renames); err != nil {
			rw.report(err)
			if rw.file == nil {
				return 0, err
			}
		}
	}

	n, err := rw.file.Write(p)
	rw.currentSize += int64(n)
	return n, err
}

// Rotate forces a rotation. Rotating an empty or missing active file is a
// no-op.
func (rw *RotatingWriter) Rotate() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return ErrWriterClosed
	}
	if rw.file == nil {
		info, err := os.Stat(rw.filePath)
		if err != nil || info.Size() == 0 {
			return nil
		}
		if err := rw.openFile(); err != nil {
			return err
		}
	}
	if rw.currentSize == 0 {
		return nil
	}
	return rw.rotate(generationShift(rw.backupCount))
}

// rotate closes the active file, applies the renames, and opens a fresh
// active file. If any rename fails the attempt is abandoned: the renames
// already done are reversed so the numbering has no gap, and the active file
// is reopened for appending. Only a discarded oldest generation stays lost.
// The caller must hold the mutex.
func (rw *RotatingWriter) rotate(renames []Rename) error {
	if err := rw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rw.file = nil

	var renameErr error
	var done []Rename
	for _, r := range renames {
		if err := rw.apply(r); err != nil {
			renameErr = err
			break
		}
		if r.To != Discard {
			done = append(done, r)
		}
	}
	if renameErr != nil {
		for i := len(done) - 1; i >= 0; i-- {
			if err := rw.apply(Rename{From: done[i].To, To: done[i].From}); err != nil {
				renameErr = errors.Join(renameErr, err)
			}
		}
	}

	if err := rw.openFile(); err != nil {
		return errors.Join(renameErr, fmt.Errorf("failed to reopen log file: %w", err))
	}
	if renameErr != nil {
		return fmt.Errorf("log rotation abandoned: %w", renameErr)
	}
	return nil
}

func (rw *RotatingWriter) apply(r Rename) error {
	from := rw.generationPath(r.From)
	if r.To == Discard {
		if err := os.Remove(from); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", from, err)
		}
		return nil
	}

	to := rw.generationPath(r.To)
	if err := rw.rename(from, to); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to rename %s to %s: %w", from, to, err)
	}
	return nil
}

// generationPath returns the path for generation n: the base path for the
// active file, base.n for backups.
func (rw *RotatingWriter) generationPath(n int) string {
	if n == 0 {
		return rw.filePath
	}
	return BackupPath(rw.filePath, n)
}

// BackupPath returns the path of backup generation n of base.
func BackupPath(base string, n int) string {
	return fmt.Sprintf("%s.%d", base, n)
}

func (rw *RotatingWriter) report(err error) {
	if rw.onError == nil || err == nil {
		return
	}
	defer func() { _ = recover() }()
	rw.onError(err)
}

// Sync flushes the active file to stable storage.
func (rw *RotatingWriter) Sync() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	return rw.file.Sync()
}

// Close syncs and closes the active file. Further writes fail with
// ErrWriterClosed.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.closed = true
	if rw.file == nil {
		return nil
	}

	syncErr := rw.file.Sync()
	closeErr := rw.file.Close()
	rw.file = nil
	if syncErr != nil {
		return fmt.Errorf("failed to sync log file: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close log file: %w", closeErr)
	}
	return nil
}

// CurrentSize returns the size of the active file as tracked by the writer.
func (rw *RotatingWriter) CurrentSize() int64 {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.currentSize
}

// FilePath returns the path to the active log file.
func (rw *RotatingWriter) FilePath() string {
	return rw.filePath
}
