package util

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestClip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "refused", 10, "refused"},
		{"exact length unchanged", "refused", 7, "refused"},
		{"long string clipped", "Connection refused", 10, "Connect..."},
		{"tiny limit", "refused", 3, "..."},
		{"negative limit", "refused", -1, "..."},
		{"empty string", "", 5, ""},
		{"runes not bytes", "接続が拒否されました", 6, "接続が..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clip(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("Clip(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestFitWidth(t *testing.T) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	t.Run("unlimited", func(t *testing.T) {
		s := strings.Repeat("x", 500)
		if got := FitWidth(s, 0); got != s {
			t.Error("width 0 should not truncate")
		}
	})

	t.Run("fits", func(t *testing.T) {
		if got := FitWidth("[ERROR   ] lost", 40); got != "[ERROR   ] lost" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("plain truncated", func(t *testing.T) {
		got := FitWidth("FAH connection lost: Connection refused", 20)
		if lipgloss.Width(got) > 20 || !strings.HasSuffix(got, Ellipsis) {
			t.Errorf("got %q (width %d)", got, lipgloss.Width(got))
		}
	})

	t.Run("styled truncated", func(t *testing.T) {
		got := FitWidth(red.Render("FAH connection lost: Connection refused"), 12)
		if lipgloss.Width(got) > 12 {
			t.Errorf("width %d exceeds 12", lipgloss.Width(got))
		}
	})

	t.Run("tiny width", func(t *testing.T) {
		if got := FitWidth("connection", 2); got != Ellipsis {
			t.Errorf("got %q", got)
		}
	})
}
