package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// EventSink receives events from a Logger. Emit must not
// panic or block for long, and it never reports failure to the caller.
type EventSink interface {
	Emit(Event)
	Close() error
}

// Sink owns a single log destination. Each event is formatted, written in
// one locked call, and flushed before Emit returns. Write failures are
// swallowed and the text is copied to a fallback writer instead.
type Sink struct {
	mu        sync.Mutex
	w         io.WriteCloser
	path      string
	formatter Formatter
	fallback  io.Writer
	closed    bool

	written atomic.Int64
	failed  atomic.Int64
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithTimeLayout sets the timestamp layout used for summary lines.
func WithTimeLayout(layout string) SinkOption {
	return func(s *Sink) {
		s.formatter.TimeLayout = layout
	}
}

// WithFallback sets the writer used when the primary write fails.
// The default is the process stderr at construction time; nil disables it.
func WithFallback(w io.Writer) SinkOption {
	return func(s *Sink) {
		s.fallback = w
	}
}

// NewSink wraps an existing writer. The Sink takes ownership of w.
func NewSink(w io.WriteCloser, opts ...SinkOption) *Sink {
	s := &Sink{
		w:        w,
		fallback: os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if p, ok := w.(interface{ FilePath() string }); ok {
		s.path = p.FilePath()
	}
	return s
}

// NewFileSink returns a Sink over a plain append-only file that never
// rotates. The file is created on the first write.
func NewFileSink(path string, opts ...SinkOption) *Sink {
	s := NewSink(NewRotatingWriter(path, RotationConfig{}), opts...)
	s.path = path
	return s
}

// NewRotatingSink returns a Sink over a size-rotated file. style selects the
// numbered (default) or timestamp backend.
func NewRotatingSink(path, style string, rotation RotationConfig, opts ...SinkOption) *Sink {
	var w io.WriteCloser
	if style == RotationTimestamp {
		w = NewTimestampWriter(path, rotation)
	} else {
		w = NewRotatingWriter(path, rotation)
	}
	s := NewSink(w, opts...)
	s.path = path
	return s
}

// Path returns the destination file path, if known.
func (s *Sink) Path() string {
	return s.path
}

// Formatter returns the formatter used by the sink.
func (s *Sink) Formatter() Formatter {
	return s.formatter
}

// Emit formats and persists one event.
func (s *Sink) Emit(e Event) {
	s.WriteText(s.formatter.Format(e))
}

// WriteText persists already formatted text under the sink lock.
func (s *Sink) WriteText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if err := s.writeLocked([]byte(text)); err != nil {
		s.failed.Add(1)
		if s.fallback != nil {
			_, _ = fmt.Fprintf(s.fallback, "fahrpc: log write failed: %v\n%s", err, text)
		}
		return
	}
	s.written.Add(1)
}

func (s *Sink) writeLocked(p []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during log write: %v", r)
		}
	}()

	if _, err := s.w.Write(p); err != nil {
		return err
	}
	if syncer, ok := s.w.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}

// Rotate forces a rotation when the backend supports it.
func (s *Sink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.w.(interface{ Rotate() error }); ok {
		return r.Rotate()
	}
	return nil
}

// Written returns the number of successful writes.
func (s *Sink) Written() int64 {
	return s.written.Load()
}

// Failed returns the number of writes that fell back.
func (s *Sink) Failed() int64 {
	return s.failed.Load()
}

// Close closes the underlying writer. It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}
