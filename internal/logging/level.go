package logging

import (
	"fmt"
	"strings"
)

// Level is the severity of a log event. Levels are ordered so that
// comparisons work as filters: DEBUG < INFO < WARNING < ERROR < CRITICAL.
type Level int

// Log levels supported by the logger
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

// levelWidth is the column width of the level field in a summary line.
// It fits the longest level name so columns line up across a file.
const levelWidth = len("CRITICAL")

var levelNames = [...]string{
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
}

// String returns the upper-case level name.
func (l Level) String() string {
	if l >= LevelDebug && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := LookupLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown log level %q", string(text))
	}
	*l = parsed
	return nil
}

// LookupLevel resolves a level name, case-insensitively. "warn" is accepted
// as an alias of WARNING.
func LookupLevel(name string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARNING", "WARN":
		return LevelWarning, true
	case "ERROR":
		return LevelError, true
	case "CRITICAL":
		return LevelCritical, true
	default:
		return LevelInfo, false
	}
}

// ParseLevel converts a string level to the corresponding constant.
// Returns LevelInfo if the level string is not recognized.
func ParseLevel(name string) Level {
	l, _ := LookupLevel(name)
	return l
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}
}
