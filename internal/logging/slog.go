package logging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// SlogLevelCritical is CRITICAL on the slog scale.
const SlogLevelCritical = slog.LevelError + 4

// SlogLevel maps a Level onto the slog scale.
func SlogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return SlogLevelCritical
}

// LevelFromSlog maps a slog level to the highest Level at or below it.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l >= SlogLevelCritical:
		return LevelCritical
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarning
	case l >= slog.LevelInfo:
		return LevelInfo
	}
	return LevelDebug
}

// Handler is a slog.Handler that writes through a Logger, so records from
// log/slog share the runtime log, its level and its pre-init buffer.
//
// Attributes are appended to the message as key=value pairs, qualified by
// their groups. Two top-level keys are special: "phase" becomes the phase
// tag and an error under "err" or "error" becomes the exception.
type Handler struct {
	log   *Logger
	group string
	phase Phase
	err   error
	attrs []string
}

// NewHandler returns a Handler writing to l.
func NewHandler(l *Logger) *Handler {
	return &Handler{log: l}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.log.Enabled(LevelFromSlog(level))
}

// Handle implements slog.Handler. It never returns an error.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	c := h.clone()
	r.Attrs(func(a slog.Attr) bool {
		c.add(c.group, a)
		return true
	})

	msg := r.Message
	if len(c.attrs) > 0 {
		msg += " " + strings.Join(c.attrs, " ")
	}
	if c.phase != "" {
		msg = c.phase.Tag() + " " + msg
	}

	e := Event{Time: r.Time, Level: LevelFromSlog(r.Level), Message: msg}
	var site runtime.Frame
	if r.PC != 0 {
		site, _ = runtime.CallersFrames([]uintptr{r.PC}).Next()
		e.Origin = originFromFrame(site.File, site.Function, site.Line)
	}
	if c.err != nil {
		e.Exception = ExceptionFromError(c.err)
		if len(e.Exception.Frames) == 0 && r.PC != 0 {
			e.Exception.Frames = []Frame{{
				File:     site.File,
				Line:     site.Line,
				Function: frameFuncName(site.Function),
				Source:   sourceLine(site.File, site.Line),
			}}
		}
	}
	h.log.Log(e)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		c.add(c.group, a)
	}
	return c
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.group = qualify(c.group, name)
	return c
}

func (h *Handler) clone() *Handler {
	c := *h
	c.attrs = slices.Clip(h.attrs)
	return &c
}

func (h *Handler) add(group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if group == "" {
		switch a.Key {
		case "phase":
			h.phase = Phase(strings.ToUpper(strings.Trim(a.Value.String(), "[]")))
			return
		case "err", "error":
			if err, ok := a.Value.Any().(error); ok {
				h.err = err
				return
			}
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		sub := group
		if a.Key != "" {
			sub = qualify(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.add(sub, ga)
		}
		return
	}

	h.attrs = append(h.attrs, fmt.Sprintf("%s=%s", qualify(group, a.Key), attrValue(a.Value)))
}

func qualify(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

// attrValue quotes values that would break key=value splitting.
func attrValue(v slog.Value) string {
	s := v.String()
	if s == "" || strings.ContainsAny(s, " =\"\n\t") {
		return strconv.Quote(s)
	}
	return s
}
