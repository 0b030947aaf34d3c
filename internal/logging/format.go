package logging

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts. The runtime log uses an ISO-like layout; the setup log
// keeps the locale-style layout its installer has always written.
const (
	RuntimeTimeLayout = "2006-01-02 15:04:05"
	SetupTimeLayout   = "Mon 01/02/2006 15:04:05.00"
)

// Formatter renders events as text lines. The zero value uses
// RuntimeTimeLayout.
type Formatter struct {
	TimeLayout string
}

func (f Formatter) layout() string {
	if f.TimeLayout == "" {
		return RuntimeTimeLayout
	}
	return f.TimeLayout
}

// Timestamp renders t with the formatter's layout. A zero time renders empty.
func (f Formatter) Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(f.layout())
}

// Summary renders only the first line of an event:
//
//	[2026-01-15 14:30:05] [ERROR   ] monitor.poll():42 - FAH connection lost
func (f Formatter) Summary(e Event) string {
	return fmt.Sprintf("[%s] [%-*s] %s - %s",
		f.Timestamp(e.Time), levelWidth, e.Level.String(), e.Origin.String(), e.Message)
}

// Lines renders an event as its summary line followed by the exception
// block, if any. It never panics; if rendering fails part way, the lines
// produced so far are returned with a marker line.
func (f Formatter) Lines(e Event) (lines []string) {
	defer func() {
		if r := recover(); r != nil {
			lines = append(lines, fmt.Sprintf("[FORMAT ERROR] %v", r))
		}
	}()

	lines = append(lines, f.Summary(e))
	if e.Exception == nil {
		return lines
	}

	exc := e.Exception
	lines = append(lines, fmt.Sprintf("[EXCEPTION] %s: %s", exc.Type, exc.Message))
	lines = append(lines, "[STACK TRACE]:")
	for _, fr := range exc.Frames {
		lines = append(lines, fmt.Sprintf("  File \"%s\", line %d, in %s", fr.File, fr.Line, fr.Function))
		if fr.Source != "" {
			lines = append(lines, "    "+fr.Source)
		}
	}
	for _, c := range exc.Causes {
		lines = append(lines, fmt.Sprintf("[CAUSED BY] %s: %s", c.Type, c.Message))
	}
	return lines
}

// Format renders an event as newline-terminated text ready to append.
func (f Formatter) Format(e Event) string {
	return strings.Join(f.Lines(e), "\n") + "\n"
}

// Summary is the parsed form of a summary line.
type Summary struct {
	Time      time.Time
	Timestamp string
	Level     Level
	Origin    string
	Message   string
}

// ErrNotSummary is returned by ParseSummary for lines that are not summary
// lines (exception detail, captured stderr, banners).
var ErrNotSummary = errors.New("not a summary line")

var summaryPattern = regexp.MustCompile(`^\[([^\]]*)\] \[([A-Z]+) *\] (.*?) - (.*)$`)

// ParseSummary parses a summary line produced by Formatter.Summary with the
// given time layout. An empty layout means RuntimeTimeLayout.
func ParseSummary(line, layout string) (Summary, error) {
	if layout == "" {
		layout = RuntimeTimeLayout
	}

	m := summaryPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Summary{}, ErrNotSummary
	}

	level, ok := LookupLevel(m[2])
	if !ok || level.String() != m[2] {
		return Summary{}, fmt.Errorf("%w: unknown level %s", ErrNotSummary, strconv.Quote(m[2]))
	}

	s := Summary{
		Timestamp: m[1],
		Level:     level,
		Origin:    m[3],
		Message:   m[4],
	}
	if m[1] != "" {
		t, err := time.ParseInLocation(layout, m[1], time.Local)
		if err != nil {
			return Summary{}, fmt.Errorf("%w: bad timestamp: %v", ErrNotSummary, err)
		}
		s.Time = t
	}
	return s, nil
}
