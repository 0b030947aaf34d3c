package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"

	fahrpcerrors "github.com/Bandokii/fahrpc/internal/errors"
)

func TestExceptionFromError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if ExceptionFromError(nil) != nil {
			t.Error("nil error should give nil exception")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		exc := ExceptionFromError(errors.New("boom"))
		if exc.Type != "error" || exc.Message != "boom" {
			t.Errorf("exception = %+v", exc)
		}
		if len(exc.Frames) != 0 || len(exc.Causes) != 0 {
			t.Errorf("plain error should carry no frames or causes: %+v", exc)
		}
	})

	t.Run("fmt wrappers are skipped", func(t *testing.T) {
		base := fahrpcerrors.NewConfigError("invalid max_bytes", nil).WithKey("logging.max_bytes")
		exc := ExceptionFromError(fmt.Errorf("load: %w", fmt.Errorf("validate: %w", base)))
		if exc.Type != "ConfigError" || exc.Message != "invalid max_bytes" {
			t.Errorf("exception = %s: %s", exc.Type, exc.Message)
		}
		if len(exc.Frames) == 0 {
			t.Error("frames should come from the ConfigError")
		}
	})

	t.Run("cause chain", func(t *testing.T) {
		pathErr := &fs.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}
		err := fahrpcerrors.NewSetupError("copy", "install failed", pathErr)
		exc := ExceptionFromError(err)

		if exc.Type != "SetupError" {
			t.Errorf("Type = %q", exc.Type)
		}
		if len(exc.Causes) != 2 {
			t.Fatalf("causes = %+v, want PathError then the permission error", exc.Causes)
		}
		if exc.Causes[0].Type != "PathError" || exc.Causes[0].Message != "open /x: permission denied" {
			t.Errorf("first cause = %+v", exc.Causes[0])
		}
	})

	t.Run("joined errors follow the first branch", func(t *testing.T) {
		exc := ExceptionFromError(errors.Join(errors.New("first"), errors.New("second")))
		if exc.Type != "error" {
			t.Errorf("Type = %q", exc.Type)
		}
		if len(exc.Causes) != 1 || exc.Causes[0].Message != "first" {
			t.Errorf("causes = %+v", exc.Causes)
		}
	})

	t.Run("typed nil", func(t *testing.T) {
		var ce *fahrpcerrors.ConnectionError
		exc := ExceptionFromError(ce)
		if exc == nil || exc.Type != "ConnectionError" || exc.Message != UnprintableError {
			t.Errorf("exception = %+v", exc)
		}
	})

	t.Run("panicking Error method", func(t *testing.T) {
		exc := ExceptionFromError(panicError{})
		if exc == nil || exc.Type != "panicError" || exc.Message != UnprintableError {
			t.Errorf("exception = %+v", exc)
		}
	})
}

type panicError struct{}

func (panicError) Error() string { panic("boom") }

type Error struct{}

func (Error) Error() string { return "generic" }

func TestTypeName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("x"), "error"},
		{fmt.Errorf("x: %w", errors.New("y")), "error"},
		{&fs.PathError{}, "PathError"},
		{fahrpcerrors.NewConnectionError("x", nil), "ConnectionError"},
		{Error{}, "logging.Error"},
	}
	for _, tt := range tests {
		if got := typeName(tt.err); got != tt.want {
			t.Errorf("typeName(%T) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCaptureFrames(t *testing.T) {
	frames := captureFrames(0)
	if len(frames) == 0 {
		t.Fatal("no frames captured")
	}
	last := frames[len(frames)-1]
	if last.Function != "logging.TestCaptureFrames" {
		t.Errorf("innermost frame = %q, want logging.TestCaptureFrames", last.Function)
	}
	if !strings.Contains(last.Source, "captureFrames(0)") {
		t.Errorf("Source = %q", last.Source)
	}
}

func TestSourceLine(t *testing.T) {
	if sourceLine("/definitely/not/here.go", 1) != "" {
		t.Error("missing file should give empty source")
	}
	if sourceLine("exception_test.go", 0) != "" {
		t.Error("line 0 should give empty source")
	}
	if got := sourceLine("exception_test.go", 1); got != "package logging" {
		t.Errorf("sourceLine = %q", got)
	}
	if sourceLine("exception_test.go", 100000) != "" {
		t.Error("line past EOF should give empty source")
	}
}
