package logging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// suppressWindow is how many lines after a noise match are also dropped;
// shutdown noise usually arrives as a multi-line traceback.
const suppressWindow = 15

// DefaultNoisePatterns are substrings of stderr output that is known to be
// harmless shutdown chatter.
var DefaultNoisePatterns = []string{
	"I/O operation on closed pipe",
	"use of closed network connection",
	"use of closed file",
	"file already closed",
	"broken pipe",
	"unclosed transport",
	"ResourceWarning",
}

// StderrWriter appends raw text to a Sink, one line at a time, prefixing
// each line with "[<timestamp>] ". Partial lines are held until their
// newline arrives or Flush is called.
type StderrWriter struct {
	mu       sync.Mutex
	sink     *Sink
	now      func() time.Time
	patterns []string
	skip     int
	partial  []byte
}

// NewStderrWriter returns a writer feeding sink. A nil patterns slice
// disables noise suppression.
func NewStderrWriter(sink *Sink, patterns []string) *StderrWriter {
	return &StderrWriter{
		sink:     sink,
		now:      time.Now,
		patterns: patterns,
	}
}

// Write implements io.Writer. It always reports the full length as written.
func (w *StderrWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := append(w.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		w.writeLine(string(data[:i]))
		data = data[i+1:]
	}
	w.partial = append([]byte(nil), data...)
	return len(p), nil
}

// Flush writes any held partial line.
func (w *StderrWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.partial) > 0 {
		w.writeLine(string(w.partial))
		w.partial = nil
	}
}

func (w *StderrWriter) writeLine(line string) {
	line = strings.TrimRight(line, "\r")
	if w.suppressed(line) || strings.TrimSpace(line) == "" {
		return
	}
	ts := w.now().Format(w.sink.Formatter().layout())
	w.sink.WriteText("[" + ts + "] " + line + "\n")
}

func (w *StderrWriter) suppressed(line string) bool {
	for _, p := range w.patterns {
		if strings.Contains(line, p) {
			w.skip = suppressWindow
			return true
		}
	}
	if w.skip > 0 {
		w.skip--
		return true
	}
	return false
}

// Capture redirects os.Stderr into w until the returned restore function is
// called. restore waits for buffered output to drain.
func Capture(w *StderrWriter) (restore func(), err error) {
	r, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	original := os.Stderr
	os.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, copyErr := io.Copy(w, r)
		if copyErr != nil && !errors.Is(copyErr, os.ErrClosed) {
			_, _ = io.WriteString(original, "fahrpc: stderr capture stopped: "+copyErr.Error()+"\n")
		}
		_ = r.Close()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			os.Stderr = original
			_ = pw.Close()
			<-done
			w.Flush()
		})
	}, nil
}
