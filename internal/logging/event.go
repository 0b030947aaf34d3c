package logging

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Event is a single log record.
type Event struct {
	Time    time.Time
	Level   Level
	Origin  Origin
	Message string

	// Exception is set only for events logged through the error-with-exception
	// path (Logger.Exception, Logger.CriticalException, or Logger.Log with an
	// exception attached).
	Exception *Exception
}

// Origin identifies the call site that emitted an event.
type Origin struct {
	Module   string
	Function string
	Line     int
}

// IsZero reports whether no call-site information is present.
func (o Origin) IsZero() bool {
	return o.Module == "" && o.Function == "" && o.Line == 0
}

// String renders the origin as module.function():line.
// A zero origin renders as the empty string.
func (o Origin) String() string {
	if o.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s.%s():%d", o.Module, o.Function, o.Line)
}

var originPattern = regexp.MustCompile(`^([^.]*)\.(.*)\(\):(\d+)$`)

// ParseOrigin is the inverse of Origin.String.
func ParseOrigin(s string) (Origin, bool) {
	if s == "" {
		return Origin{}, true
	}
	m := originPattern.FindStringSubmatch(s)
	if m == nil {
		return Origin{}, false
	}
	line, err := strconv.Atoi(m[3])
	if err != nil {
		return Origin{}, false
	}
	return Origin{Module: m[1], Function: m[2], Line: line}, true
}

// originFromFrame builds an Origin from runtime frame data. The module is
// the source file name without its extension; the function drops the
// package path and pointer-receiver decoration.
//
//	/src/app/monitor.go, github.com/x/app.(*Monitor).poll -> monitor.Monitor.poll
func originFromFrame(file, function string, line int) Origin {
	module := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if file == "" {
		module = ""
	}
	return Origin{
		Module:   module,
		Function: shortFuncName(function),
		Line:     line,
	}
}

func shortFuncName(function string) string {
	if i := strings.LastIndexByte(function, '/'); i >= 0 {
		function = function[i+1:]
	}
	// Drop the package name.
	if i := strings.IndexByte(function, '.'); i >= 0 {
		function = function[i+1:]
	}
	return strings.NewReplacer("(*", "", "(", "", ")", "").Replace(function)
}

// Exception describes a failure attached to an event.
type Exception struct {
	Type    string
	Message string
	// Frames are ordered outermost call first, failure site last.
	Frames []Frame
	// Causes lists the rest of the error chain below the primary error.
	Causes []Cause
}

// Frame is one rendered stack frame.
type Frame struct {
	File     string
	Line     int
	Function string
	Source   string
}

// Cause is a wrapped error beneath the primary exception.
type Cause struct {
	Type    string
	Message string
}

// Phase is a lifecycle stage. Its tag is embedded in messages as a plain
// substring so a single stream can be grepped by phase.
type Phase string

// Lifecycle phases
const (
	PhaseSetup    Phase = "SETUP"
	PhaseStartup  Phase = "STARTUP"
	PhaseConfig   Phase = "CONFIG"
	PhaseMain     Phase = "MAIN"
	PhaseMainLoop Phase = "MAIN LOOP"
	PhaseSignal   Phase = "SIGNAL"
	PhaseShutdown Phase = "SHUTDOWN"
)

// Tag returns the bracketed form written into messages, e.g. "[STARTUP]".
func (p Phase) Tag() string {
	if p == "" {
		return ""
	}
	return "[" + string(p) + "]"
}

// In reports whether msg carries this phase's tag.
func (p Phase) In(msg string) bool {
	return p != "" && strings.Contains(msg, p.Tag())
}
