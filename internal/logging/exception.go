package logging

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	fahrpcerrors "github.com/Bandokii/fahrpc/internal/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	maxStackDepth   = 32
	sourceCacheSize = 64
)

// UnprintableError stands in for the message of an error value whose
// methods panic, such as a typed nil pointer.
const UnprintableError = "<unprintable error>"

// ExceptionFromError converts an error value into an Exception.
//
// The primary error is the outermost error in the chain that is not a plain
// fmt.Errorf wrapper. Its short type name becomes the exception type. The
// stack comes from the deepest error in the chain that recorded one; if
// none did, Frames is empty and the caller decides what to capture.
// Returns nil for a nil error. An error whose methods panic yields an
// Exception holding only its type and UnprintableError.
func ExceptionFromError(err error) (exc *Exception) {
	if err == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			exc = &Exception{Type: typeName(err), Message: UnprintableError}
		}
	}()

	chain := unwrapChain(err)

	primary := 0
	for i, e := range chain {
		if !isWrapper(e) {
			primary = i
			break
		}
	}

	exc = &Exception{
		Type:    typeName(chain[primary]),
		Message: ownMessage(chain[primary]),
	}

	for _, e := range chain[primary+1:] {
		if isWrapper(e) {
			continue
		}
		exc.Causes = append(exc.Causes, Cause{Type: typeName(e), Message: ownMessage(e)})
	}

	var tracer fahrpcerrors.StackTracer
	for _, e := range chain {
		if t, ok := e.(fahrpcerrors.StackTracer); ok {
			tracer = t
		}
	}
	if tracer != nil {
		for _, f := range tracer.StackFrames() {
			exc.Frames = append(exc.Frames, Frame{
				File:     f.File,
				Line:     f.Line,
				Function: frameFuncName(f.Function),
				Source:   sourceLine(f.File, f.Line),
			})
		}
	}

	return exc
}

// unwrapChain flattens an error chain. For joined errors only the first
// branch is followed.
func unwrapChain(err error) []error {
	var chain []error
	for err != nil && len(chain) < maxStackDepth {
		chain = append(chain, err)
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return chain
			}
			err = errs[0]
		default:
			err = errors.Unwrap(err)
		}
	}
	return chain
}

func isWrapper(err error) bool {
	switch fmt.Sprintf("%T", err) {
	case "*fmt.wrapError", "*fmt.wrapErrors":
		return true
	}
	return false
}

// typeName returns the dynamic type of err without pointer or package
// qualification. Generic names keep their package for readability.
func typeName(err error) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	switch name {
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors", "errors.joinError":
		return "error"
	}
	pkg, short, ok := strings.Cut(name, ".")
	if !ok {
		return name
	}
	if short == "Error" {
		return pkg + ".Error"
	}
	return short
}

// ownMessage prefers an error's message without its wrapped cause.
func ownMessage(err error) string {
	if m, ok := err.(interface{ Message() string }); ok {
		return m.Message()
	}
	return err.Error()
}

// captureFrames records the current goroutine's stack, outermost first.
// skip follows runtime.Callers, counted from the caller of captureFrames.
func captureFrames(skip int) []Frame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	var out []Frame
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if f.Function == "runtime.main" || f.Function == "runtime.goexit" {
			break
		}
		out = append(out, Frame{
			File:     f.File,
			Line:     f.Line,
			Function: frameFuncName(f.Function),
			Source:   sourceLine(f.File, f.Line),
		})
		if !more {
			break
		}
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// frameFuncName trims the import path but keeps the package name.
func frameFuncName(function string) string {
	if i := strings.LastIndexByte(function, '/'); i >= 0 {
		return function[i+1:]
	}
	return function
}

var (
	sourceCacheOnce sync.Once
	sourceCache     *lru.Cache[string, []string]
)

// sourceLine returns the trimmed text of file:line, or "" when the source is
// not available (stripped binaries, files moved since build).
func sourceLine(file string, line int) string {
	if file == "" || line <= 0 {
		return ""
	}

	sourceCacheOnce.Do(func() {
		sourceCache, _ = lru.New[string, []string](sourceCacheSize)
	})

	lines, ok := sourceCache.Get(file)
	if !ok {
		lines = readLines(file)
		sourceCache.Add(file, lines)
	}
	if line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
