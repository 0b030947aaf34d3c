// This file contains utilities for reading back, filtering and exporting
// log files for post-hoc debugging.

package logging

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// LogEntry is a parsed summary line plus any detail lines that followed it
// (exception block, multi-line message continuation, captured stderr).
type LogEntry struct {
	Timestamp time.Time `json:"time"`
	Level     string    `json:"level"`
	Origin    string    `json:"origin,omitempty"`
	Message   string    `json:"msg"`
	Detail    []string  `json:"detail,omitempty"`
	File      string    `json:"file,omitempty"`
}

// LevelValue returns the entry level as a Level.
func (e LogEntry) LevelValue() Level {
	return ParseLevel(e.Level)
}

// HasException reports whether the entry carries an exception block.
func (e LogEntry) HasException() bool {
	for _, d := range e.Detail {
		if strings.HasPrefix(d, "[EXCEPTION] ") {
			return true
		}
	}
	return false
}

// LogFilter defines criteria for filtering log entries.
type LogFilter struct {
	// Level filters to entries at or above this level.
	// Empty string means no level filtering.
	Level string

	// StartTime filters to entries at or after this time.
	// Zero value means no start time filtering.
	StartTime time.Time

	// EndTime filters to entries at or before this time.
	// Zero value means no end time filtering.
	EndTime time.Time

	// Phase filters to entries whose message carries this phase's tag.
	Phase Phase

	// MessageContains filters to entries whose message contains this substring.
	MessageContains string

	// Pattern filters to entries whose message or detail matches.
	Pattern *regexp.Regexp
}

// ReadEntries parses log text. Lines that are not summary lines are
// attached to the preceding entry; leading orphan lines are skipped.
func ReadEntries(r io.Reader, layout string) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(r)

	// Increase buffer size for potentially long log lines
	const maxScanTokenSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		s, err := ParseSummary(line, layout)
		if err != nil {
			if n := len(entries); n > 0 {
				entries[n-1].Detail = append(entries[n-1].Detail, line)
			}
			continue
		}

		entries = append(entries, LogEntry{
			Timestamp: s.Time,
			Level:     s.Level.String(),
			Origin:    s.Origin,
			Message:   s.Message,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log: %w", err)
	}
	return entries, nil
}

// ReadFile parses one log file.
func ReadFile(path, layout string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	entries, err := ReadEntries(file, layout)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].File = path
	}
	return entries, nil
}

// globMeta escapes the characters doublestar reads as pattern syntax.
var globMeta = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "{", `\{`)

// timestampBackupLayout is the time format lumberjack puts in backup names.
const timestampBackupLayout = "2006-01-02T15-04-05.000"

// Generations returns the existing files of a rotated log, oldest first.
// Numbered backups come as base.N ... base.1, and lumberjack backups
// (stem-<time>.ext) are ordered by their embedded time ahead of those; the
// active file is last. Gaps in the numbering are tolerated.
func Generations(base string) ([]string, error) {
	dir, name := filepath.Split(base)
	if dir == "" {
		dir = "."
	}
	fsys := os.DirFS(dir)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	numbered, err := doublestar.Glob(fsys, globMeta.Replace(name)+".*", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list log generations: %w", err)
	}
	stamped, err := doublestar.Glob(fsys, globMeta.Replace(stem)+"-*"+globMeta.Replace(ext), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list log generations: %w", err)
	}

	type gen struct {
		path string
		n    int
		at   time.Time
	}

	var byTime []gen
	for _, m := range stamped {
		raw := strings.TrimSuffix(strings.TrimPrefix(m, stem+"-"), ext)
		at, err := time.ParseInLocation(timestampBackupLayout, raw, time.Local)
		if err != nil {
			continue
		}
		byTime = append(byTime, gen{path: filepath.Join(dir, m), at: at})
	}
	sort.Slice(byTime, func(i, j int) bool { return byTime[i].at.Before(byTime[j].at) })

	var byNumber []gen
	for _, m := range numbered {
		n, err := strconv.Atoi(strings.TrimPrefix(m, name+"."))
		if err != nil || n <= 0 {
			continue
		}
		byNumber = append(byNumber, gen{path: filepath.Join(dir, m), n: n})
	}
	sort.Slice(byNumber, func(i, j int) bool { return byNumber[i].n > byNumber[j].n })

	paths := make([]string, 0, len(byTime)+len(byNumber)+1)
	for _, g := range byTime {
		paths = append(paths, g.path)
	}
	for _, g := range byNumber {
		paths = append(paths, g.path)
	}
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		paths = append(paths, base)
	}
	return paths, nil
}

// AggregateLogs reads a log file and, when includeBackups is set, all of its
// backups in either rotation style. Entries are returned in file order from the oldest
// generation to the active file, which is chronological for a single writer.
func AggregateLogs(base, layout string, includeBackups bool) ([]LogEntry, error) {
	paths := []string{base}
	if includeBackups {
		var err error
		paths, err = Generations(base)
		if err != nil {
			return nil, err
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no log file found at %s: %w", base, os.ErrNotExist)
	}

	var entries []LogEntry
	for _, p := range paths {
		fileEntries, err := ReadFile(p, layout)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}
	return entries, nil
}

// FilterLogs filters log entries based on the provided filter criteria.
// Multiple filter criteria are combined with AND logic.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if isEmptyFilter(filter) {
		return entries
	}

	var filtered []LogEntry
	for _, entry := range entries {
		if MatchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// isEmptyFilter checks if no filter criteria are set.
func isEmptyFilter(f LogFilter) bool {
	return f.Level == "" &&
		f.StartTime.IsZero() &&
		f.EndTime.IsZero() &&
		f.Phase == "" &&
		f.MessageContains == "" &&
		f.Pattern == nil
}

// MatchesFilter checks if an entry matches all filter criteria.
func MatchesFilter(entry LogEntry, filter LogFilter) bool {
	if filter.Level != "" {
		if min, ok := LookupLevel(filter.Level); ok && entry.LevelValue() < min {
			return false
		}
	}

	// Time range filters
	if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
		return false
	}

	if filter.Phase != "" && !filter.Phase.In(entry.Message) {
		return false
	}

	if filter.MessageContains != "" && !strings.Contains(entry.Message, filter.MessageContains) {
		return false
	}

	if filter.Pattern != nil {
		text := entry.Message
		if len(entry.Detail) > 0 {
			text += "\n" + strings.Join(entry.Detail, "\n")
		}
		if !filter.Pattern.MatchString(text) {
			return false
		}
	}

	return true
}

// ExportLogEntries writes entries to w in the specified format.
// Supported formats: "json", "text", "csv".
func ExportLogEntries(w io.Writer, entries []LogEntry, format, layout string) error {
	switch strings.ToLower(format) {
	case "json":
		return exportJSON(w, entries)
	case "text":
		return exportText(w, entries, layout)
	case "csv":
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, text, csv)", format)
	}
}

// exportJSON writes entries as a JSON array.
func exportJSON(w io.Writer, entries []LogEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if entries == nil {
		entries = []LogEntry{}
	}
	return encoder.Encode(entries)
}

// exportText writes entries back in the log file format.
func exportText(w io.Writer, entries []LogEntry, layout string) error {
	f := Formatter{TimeLayout: layout}
	for _, entry := range entries {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s] [%-*s] %s - %s\n",
			f.Timestamp(entry.Timestamp), levelWidth, entry.Level, entry.Origin, entry.Message)
		for _, d := range entry.Detail {
			sb.WriteString(d)
			sb.WriteByte('\n')
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

// exportCSV writes entries as CSV with headers.
func exportCSV(w io.Writer, entries []LogEntry) error {
	writer := csv.NewWriter(w)

	headers := []string{"timestamp", "level", "origin", "message", "detail"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		record := []string{
			entry.Timestamp.Format(time.RFC3339),
			entry.Level,
			entry.Origin,
			entry.Message,
			strings.Join(entry.Detail, "\n"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
