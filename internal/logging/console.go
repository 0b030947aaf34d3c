package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Bandokii/fahrpc/internal/util"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Level colors, shared with the logs command.
var (
	debugColor    = lipgloss.Color("#9CA3AF") // Gray
	infoColor     = lipgloss.Color("#60A5FA") // Blue
	warningColor  = lipgloss.Color("#F59E0B") // Amber
	errorColor    = lipgloss.Color("#F87171") // Red
	criticalColor = lipgloss.Color("#F472B6") // Pink

	levelStyles = map[Level]lipgloss.Style{
		LevelDebug:    lipgloss.NewStyle().Foreground(debugColor),
		LevelInfo:     lipgloss.NewStyle().Foreground(infoColor),
		LevelWarning:  lipgloss.NewStyle().Foreground(warningColor),
		LevelError:    lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		LevelCritical: lipgloss.NewStyle().Foreground(criticalColor).Bold(true),
	}

	mutedStyle = lipgloss.NewStyle().Foreground(debugColor)
)

// LevelStyle returns the console style for a level.
func LevelStyle(l Level) lipgloss.Style {
	if s, ok := levelStyles[l]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

// StyleSummary renders a summary line with the timestamp muted and the level
// column colored.
func StyleSummary(f Formatter, e Event) string {
	ts := mutedStyle.Render("[" + f.Timestamp(e.Time) + "]")
	level := LevelStyle(e.Level).Render(fmt.Sprintf("[%-*s]", levelWidth, e.Level.String()))
	return fmt.Sprintf("%s %s %s - %s", ts, level, e.Origin.String(), e.Message)
}

// Console mirrors events at or above a minimum level to a terminal. It is
// the human-facing companion of the file sink and shows only the summary
// line plus the exception header.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	min       Level
	color     bool
	width     int
	formatter Formatter
}

// consoleExceptionLen bounds the exception message shown on the console.
// The file sink keeps the full text.
const consoleExceptionLen = 120

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer, min Level, color bool) *Console {
	return &Console{w: w, min: min, color: color}
}

// NewTerminalConsole returns a Console on stderr, or nil when stderr is not
// an interactive terminal.
func NewTerminalConsole(min Level, color bool) *Console {
	if !IsTerminal(os.Stderr) {
		return nil
	}
	c := NewConsole(os.Stderr, min, color)
	if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil {
		c.width = w
	}
	return c
}

// WithWidth fits console lines to width columns. Zero disables fitting.
func (c *Console) WithWidth(width int) *Console {
	c.width = width
	return c
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Emit implements EventSink.
func (c *Console) Emit(e Event) {
	if c == nil || e.Level < c.min {
		return
	}

	var line string
	if c.color {
		line = StyleSummary(c.formatter, e)
	} else {
		line = c.formatter.Summary(e)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, util.FitWidth(line, c.width))
	if e.Exception != nil {
		header := fmt.Sprintf("  %s: %s", e.Exception.Type, util.Clip(e.Exception.Message, consoleExceptionLen))
		_, _ = fmt.Fprintln(c.w, util.FitWidth(header, c.width))
	}
}

// Close implements EventSink. The console stream is not owned.
func (c *Console) Close() error {
	return nil
}
