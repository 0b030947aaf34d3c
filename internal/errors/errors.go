// Package errors provides centralized error definitions and error handling utilities
// for fahrpc. It defines domain-specific errors, error constructors with context
// wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures of specific collaborators:
//   - ConnectionError: a remote endpoint (Folding@Home web control, Discord) could not be reached
//   - ConfigError: configuration could not be read or failed validation
//   - SetupError: an installation step failed
//
// Every error built by this package records the call stack at construction.
// The logging package renders that stack in the [STACK TRACE] block, so the
// trace points at the failure site rather than at the logging call.
//
// # Usage
//
//	err := errors.NewConnectionError("Connection refused", errors.ErrConnectionRefused).
//		WithEndpoint("http://localhost:7396")
//
//	if errors.IsRetryable(err) { ... }
//
//	var connErr *errors.ConnectionError
//	if errors.As(err, &connErr) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrConnectionRefused indicates the remote side actively refused the connection.
	ErrConnectionRefused = New("connection refused")
	// ErrTimeout indicates an operation did not finish in time.
	ErrTimeout = New("operation timed out")
	// ErrConfigInvalid indicates the configuration failed validation.
	ErrConfigInvalid = New("invalid configuration")
	// ErrLogUnavailable indicates a log destination could not be opened.
	ErrLogUnavailable = New("log destination unavailable")
)

// -----------------------------------------------------------------------------
// Stack capture
// -----------------------------------------------------------------------------

// Frame is one entry of a captured call stack.
type Frame struct {
	File     string
	Line     int
	Function string
}

// StackTracer is implemented by errors that carry the stack of their
// construction site. Frames are ordered outermost call first.
type StackTracer interface {
	StackFrames() []Frame
}

const maxStackDepth = 32

// callers records the stack above the constructor, outermost first.
func callers(skip int) []Frame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	var out []Frame
	for {
		f, more := frames.Next()
		// Stop at the runtime entry points; they add noise to every trace.
		if f.Function == "runtime.main" || f.Function == "runtime.goexit" {
			break
		}
		out = append(out, Frame{File: f.File, Line: f.Line, Function: f.Function})
		if !more {
			break
		}
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
	stack     []Frame
}

func newBase(message string, cause error) baseError {
	return baseError{
		message:  message,
		cause:    cause,
		severity: SeverityError,
		// newBase <- NewXxxError <- caller
		stack: callers(2),
	}
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Message returns the error's own message without its cause.
func (e *baseError) Message() string {
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// StackFrames returns the stack captured when the error was created.
func (e *baseError) StackFrames() []Frame {
	return e.stack
}

// Classified is implemented by every error type in this package.
type Classified interface {
	error
	Severity() Severity
	IsRetryable() bool
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConnectionError represents a failure to reach a remote collaborator.
//
// Example:
//
//	err := errors.NewConnectionError("Connection refused", errors.ErrConnectionRefused)
//	err = err.WithEndpoint("http://localhost:7396")
type ConnectionError struct {
	baseError
	Endpoint string
}

// NewConnectionError creates a new ConnectionError. Connection errors are
// retryable by default.
func NewConnectionError(message string, cause error) *ConnectionError {
	e := &ConnectionError{baseError: newBase(message, cause)}
	e.retryable = true
	return e
}

// WithEndpoint records the endpoint that could not be reached.
func (e *ConnectionError) WithEndpoint(endpoint string) *ConnectionError {
	e.Endpoint = endpoint
	return e
}

// WithSeverity sets the error severity.
func (e *ConnectionError) WithSeverity(s Severity) *ConnectionError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ConnectionError) WithRetryable(r bool) *ConnectionError {
	e.retryable = r
	return e
}

// Is reports whether target is a ConnectionError or matches the cause.
func (e *ConnectionError) Is(target error) bool {
	if _, ok := target.(*ConnectionError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// ConfigError represents a configuration problem.
type ConfigError struct {
	baseError
	Path string
	Key  string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	e := &ConfigError{baseError: newBase(message, cause)}
	e.severity = SeverityWarning
	return e
}

// WithPath records the configuration file involved.
func (e *ConfigError) WithPath(path string) *ConfigError {
	e.Path = path
	return e
}

// WithKey records the offending configuration key.
func (e *ConfigError) WithKey(key string) *ConfigError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}
	if len(parts) == 0 {
		return e.baseError.Error()
	}
	return fmt.Sprintf("[%s] %s", strings.Join(parts, ", "), e.baseError.Error())
}

// Is reports whether target is a ConfigError, ErrConfigInvalid, or matches the cause.
func (e *ConfigError) Is(target error) bool {
	if _, ok := target.(*ConfigError); ok {
		return true
	}
	if target == ErrConfigInvalid {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// SetupError represents a failed installation step.
type SetupError struct {
	baseError
	Step string
}

// NewSetupError creates a new SetupError for the named step.
func NewSetupError(step, message string, cause error) *SetupError {
	e := &SetupError{baseError: newBase(message, cause), Step: step}
	e.severity = SeverityCritical
	return e
}

// Error returns the formatted error message.
func (e *SetupError) Error() string {
	if e.Step == "" {
		return e.baseError.Error()
	}
	return fmt.Sprintf("setup step %q: %s", e.Step, e.baseError.Error())
}

// Is reports whether target is a SetupError or matches the cause.
func (e *SetupError) Is(target error) bool {
	if _, ok := target.(*SetupError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error is transient. This checks for
// errors implementing Classified with IsRetryable() true and for errors
// wrapping ErrTimeout or ErrConnectionRefused.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var classified Classified
	if As(err, &classified) {
		return classified.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrConnectionRefused)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement Classified.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var classified Classified
	if As(err, &classified) {
		return classified.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
