package logging

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyInitialized is returned by Init on a logger that has already
// been initialized.
var ErrAlreadyInitialized = errors.New("logger already initialized")

// DefaultBufferSize is the number of events held before Init.
const DefaultBufferSize = 256

// Logger is the entry point for leveled logging. It is built once by the
// composition root and passed to the components that log.
//
// A Logger starts uninitialized: events are held in a bounded buffer and
// written out, filtered by the minimum level, when Init attaches the sinks.
// Logging calls never fail and never panic, before or after Init.
//
// It is safe for concurrent use.
type Logger struct {
	core  *core
	phase Phase
}

type core struct {
	mu          sync.Mutex
	initialized atomic.Bool
	closed      bool
	level       atomic.Int32
	sinks       []EventSink

	pending    []Event
	bufferSize int
	dropped    atomic.Int64

	now func() time.Time
}

// Option configures a Logger.
type Option func(*core)

// WithBufferSize sets how many events are held before Init. Zero drops
// early events instead of buffering them.
func WithBufferSize(n int) Option {
	return func(c *core) {
		if n >= 0 {
			c.bufferSize = n
		}
	}
}

// WithClock overrides the event time source.
func WithClock(now func() time.Time) Option {
	return func(c *core) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns an uninitialized Logger.
func New(opts ...Option) *Logger {
	c := &core{
		bufferSize: DefaultBufferSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Logger{core: c}
}

// Init attaches the sinks and the minimum level, then writes out the events
// buffered so far. Only the first call has effect.
func (l *Logger) Init(min Level, sinks ...EventSink) error {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized.Load() {
		return ErrAlreadyInitialized
	}

	for _, s := range sinks {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
	c.level.Store(int32(min))

	// Emitting under the lock keeps buffered events ahead of any event
	// logged concurrently with Init.
	for _, e := range c.pending {
		if e.Level >= min {
			c.emitLocked(e)
		}
	}
	c.pending = nil
	c.initialized.Store(true)
	return nil
}

// Initialized reports whether Init has run.
func (l *Logger) Initialized() bool {
	return l != nil && l.core != nil && l.core.initialized.Load()
}

// AddSink attaches another sink to an initialized logger.
func (l *Logger) AddSink(s EventSink) {
	if l == nil || l.core == nil || s == nil {
		return
	}
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.sinks = append(c.sinks, s)
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(min Level) {
	if l == nil || l.core == nil {
		return
	}
	l.core.level.Store(int32(min))
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	if l == nil || l.core == nil {
		return LevelCritical
	}
	return Level(l.core.level.Load())
}

// Enabled reports whether events at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil || l.core == nil {
		return false
	}
	if !l.core.initialized.Load() {
		return l.core.bufferSize > 0
	}
	return level >= l.Level()
}

// Dropped returns the number of events lost to a full pre-init buffer.
func (l *Logger) Dropped() int64 {
	if l == nil || l.core == nil {
		return 0
	}
	return l.core.dropped.Load()
}

// WithPhase returns a child Logger that prefixes every message with the
// phase tag. The child shares sinks and level with its parent.
func (l *Logger) WithPhase(phase Phase) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{core: l.core, phase: phase}
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg, nil) }

// Info logs a message at INFO level.
func (l *Logger) Info(msg string) { l.log(LevelInfo, msg, nil) }

// Warning logs a message at WARNING level.
func (l *Logger) Warning(msg string) { l.log(LevelWarning, msg, nil) }

// Error logs a message at ERROR level without exception detail.
func (l *Logger) Error(msg string) { l.log(LevelError, msg, nil) }

// Critical logs a message at CRITICAL level.
func (l *Logger) Critical(msg string) { l.log(LevelCritical, msg, nil) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, nil, format, args...) }

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(format string, args ...any) { l.logf(LevelInfo, nil, format, args...) }

// Warningf logs a formatted message at WARNING level.
func (l *Logger) Warningf(format string, args ...any) { l.logf(LevelWarning, nil, format, args...) }

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, nil, format, args...) }

// Criticalf logs a formatted message at CRITICAL level.
func (l *Logger) Criticalf(format string, args ...any) { l.logf(LevelCritical, nil, format, args...) }

// Exception logs msg at ERROR level with err attached as exception detail.
// The stack recorded by err is used when it has one; otherwise the stack of
// this call is captured. A nil err logs a plain ERROR event.
func (l *Logger) Exception(err error, msg string) { l.log(LevelError, msg, err) }

// Exceptionf is Exception with a formatted message.
func (l *Logger) Exceptionf(err error, format string, args ...any) {
	l.logf(LevelError, err, format, args...)
}

// CriticalException logs msg at CRITICAL level with err attached.
func (l *Logger) CriticalException(err error, msg string) { l.log(LevelCritical, msg, err) }

// Log writes a caller-built event. A zero Time is filled with the current
// time and a zero Origin with the caller of Log. The phase prefix is not
// applied.
func (l *Logger) Log(e Event) {
	if l == nil || l.core == nil || !l.accepts(e.Level) {
		return
	}
	if e.Time.IsZero() {
		e.Time = l.core.now()
	}
	if e.Origin.IsZero() {
		e.Origin = callerOrigin(1)
	}
	l.core.dispatch(e)
}

// logf keeps the same call depth as log so origin capture stays correct.
func (l *Logger) logf(level Level, err error, format string, args ...any) {
	if l == nil || l.core == nil || !l.accepts(level) {
		return
	}
	l.emit(level, fmt.Sprintf(format, args...), err)
}

func (l *Logger) log(level Level, msg string, err error) {
	if l == nil || l.core == nil || !l.accepts(level) {
		return
	}
	l.emit(level, msg, err)
}

// emit builds the event. It sits exactly three frames below the user's
// call: user -> Info -> log -> emit.
func (l *Logger) emit(level Level, msg string, err error) {
	e := Event{
		Time:    l.core.now(),
		Level:   level,
		Origin:  callerOrigin(3),
		Message: l.prefix(msg),
	}
	if err != nil {
		e.Exception = ExceptionFromError(err)
		if len(e.Exception.Frames) == 0 {
			e.Exception.Frames = captureFrames(3)
		}
	}
	l.core.dispatch(e)
}

// accepts is the cheap pre-check done before any formatting or stack work.
func (l *Logger) accepts(level Level) bool {
	c := l.core
	if c.initialized.Load() {
		return level >= Level(c.level.Load())
	}
	return c.bufferSize > 0
}

func (l *Logger) prefix(msg string) string {
	if l.phase == "" {
		return msg
	}
	return l.phase.Tag() + " " + msg
}

func (c *core) dispatch(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if !c.initialized.Load() {
		if len(c.pending) >= c.bufferSize {
			if c.bufferSize == 0 {
				c.dropped.Add(1)
				return
			}
			c.pending = c.pending[1:]
			c.dropped.Add(1)
		}
		c.pending = append(c.pending, e)
		return
	}
	c.emitLocked(e)
}

func (c *core) emitLocked(e Event) {
	for _, s := range c.sinks {
		safeEmit(s, e)
	}
}

func safeEmit(s EventSink, e Event) {
	defer func() { _ = recover() }()
	s.Emit(e)
}

// callerOrigin reports the call site skip frames above its caller.
func callerOrigin(skip int) Origin {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return Origin{}
	}
	f, _ := runtime.CallersFrames(pcs[:]).Next()
	return originFromFrame(f.File, f.Function, f.Line)
}

// Close flushes and closes every sink. Events logged afterwards are
// discarded. It is safe to call more than once.
func (l *Logger) Close() error {
	if l == nil || l.core == nil {
		return nil
	}
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, s := range c.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.sinks = nil
	c.pending = nil
	return errors.Join(errs...)
}

// Nop returns an initialized Logger that discards everything.
// Useful for testing or when logging is disabled.
func Nop() *Logger {
	l := New(WithBufferSize(0))
	_ = l.Init(LevelCritical + 1)
	return l
}
