package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConsole_Emit(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, LevelWarning, false)

	c.Emit(Event{Time: fixedTime, Level: LevelInfo, Message: "quiet"})
	c.Emit(Event{Time: fixedTime, Level: LevelError, Message: "FAH connection lost",
		Exception: &Exception{Type: "ConnectionError", Message: "Connection refused"}})

	want := "[2026-01-15 14:30:05] [ERROR   ]  - FAH connection lost\n  ConnectionError: Connection refused\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestConsole_Color(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, LevelDebug, true)
	c.Emit(Event{Time: fixedTime, Level: LevelCritical, Message: "styled"})

	out := buf.String()
	if !strings.Contains(out, "CRITICAL") || !strings.HasSuffix(out, " - styled\n") {
		t.Errorf("output = %q", out)
	}
}

func TestConsole_NilIsSafe(t *testing.T) {
	var c *Console
	c.Emit(Event{Level: LevelCritical, Message: "nowhere"})
}

func TestConsole_AsLoggerSink(t *testing.T) {
	var buf bytes.Buffer
	log := New()
	_ = log.Init(LevelDebug, NewConsole(&buf, LevelCritical, false))

	log.Exception(errors.New("ignored"), "below console level")
	log.Critical("shown")

	if strings.Contains(buf.String(), "below console level") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLevelStyle(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical, Level(50)} {
		if got := LevelStyle(l).Render(l.String()); !strings.Contains(got, l.String()) {
			t.Errorf("LevelStyle(%v).Render lost the text: %q", l, got)
		}
	}
}

func TestConsole_FitsWidth(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, LevelDebug, false).WithWidth(40)
	c.Emit(Event{Time: fixedTime, Level: LevelError, Message: "FAH connection lost: Connection refused by the client",
		Exception: &Exception{Type: "ConnectionError", Message: strings.Repeat("refused ", 40)}})

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	for _, l := range lines {
		if len(l) > 40 || !strings.HasSuffix(l, "...") {
			t.Errorf("line not fitted: %q", l)
		}
	}
}

func TestConsole_ClipsLongException(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, LevelDebug, false)
	c.Emit(Event{Time: fixedTime, Level: LevelError, Message: "lost",
		Exception: &Exception{Type: "ConnectionError", Message: strings.Repeat("x", 500)}})

	header := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")[1]
	if want := "  ConnectionError: " + strings.Repeat("x", consoleExceptionLen-3) + "..."; header != want {
		t.Errorf("header = %q", header)
	}
}
