package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// followPollInterval bounds how long a missed notification can delay output.
const followPollInterval = time.Second

// Follower streams lines appended to a log file, like tail -f. It keeps
// following across rotations: when the active file is renamed to .1 it
// drains the old handle and reopens the new active file from the start.
type Follower struct {
	path    string
	fromEnd bool

	file    *os.File
	reader  *bufio.Reader
	partial string
}

// NewFollower returns a Follower for path. With fromEnd set, existing
// content is skipped.
func NewFollower(path string, fromEnd bool) *Follower {
	return &Follower{path: path, fromEnd: fromEnd}
}

// Run calls emit for every complete line until ctx is cancelled. The file
// does not need to exist yet.
func (f *Follower) Run(ctx context.Context, emit func(line string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: the file itself is replaced on every rotation.
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	defer f.close()

	if err := f.open(f.fromEnd); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	f.drain(emit)

	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
				f.drain(emit)
				f.close()
			case ev.Op&fsnotify.Create != 0:
				f.drain(emit)
				f.close()
				_ = f.open(false)
				f.drain(emit)
			case ev.Op&fsnotify.Write != 0:
				f.drain(emit)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)

		case <-ticker.C:
			f.poll(emit)
		}
	}
}

// poll catches up when notifications were missed or coalesced.
func (f *Follower) poll(emit func(string)) {
	if f.file == nil {
		if err := f.open(false); err == nil {
			f.drain(emit)
		}
		return
	}

	cur, err := f.file.Stat()
	if err != nil {
		return
	}
	onDisk, err := os.Stat(f.path)
	if err != nil {
		return
	}

	if !os.SameFile(cur, onDisk) {
		// Rotated without a notification.
		f.drain(emit)
		f.close()
		_ = f.open(false)
	} else if pos, err := f.file.Seek(0, io.SeekCurrent); err == nil && cur.Size() < pos-int64(f.reader.Buffered()) {
		// Truncated in place.
		_, _ = f.file.Seek(0, io.SeekStart)
		f.reader.Reset(f.file)
		f.partial = ""
	}
	f.drain(emit)
}

func (f *Follower) open(fromEnd bool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	if fromEnd {
		if _, err := file.Seek(0, io.SeekEnd); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to seek to end: %w", err)
		}
	}
	f.file = file
	f.reader = bufio.NewReader(file)
	f.partial = ""
	return nil
}

// drain reads to EOF and emits complete lines; a trailing partial line is
// kept until its newline arrives.
func (f *Follower) drain(emit func(string)) {
	if f.file == nil {
		return
	}
	for {
		chunk, err := f.reader.ReadString('\n')
		if err != nil {
			f.partial += chunk
			return
		}
		line := strings.TrimRight(f.partial+chunk, "\r\n")
		f.partial = ""
		emit(line)
	}
}

func (f *Follower) close() {
	if f.file == nil {
		return
	}
	_ = f.file.Close()
	f.partial = ""
	f.file = nil
	f.reader = nil
}
