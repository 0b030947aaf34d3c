// Package util holds small text helpers shared by the console renderers.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks text that was cut short.
const Ellipsis = "..."

// Clip shortens s to at most maxLen runes, ending in Ellipsis when cut.
// It counts runes, not columns, so styled text should use FitWidth.
func Clip(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= len(Ellipsis) {
		return Ellipsis
	}
	return string(runes[:maxLen-len(Ellipsis)]) + Ellipsis
}

// FitWidth shortens s to at most width terminal columns, keeping ANSI
// styling intact. A width of zero or less means unlimited.
func FitWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width <= len(Ellipsis) {
		return Ellipsis
	}
	return ansi.Truncate(s, width, Ellipsis)
}
