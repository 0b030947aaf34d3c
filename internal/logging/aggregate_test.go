package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

const sampleLog = `[2026-01-15 14:30:00] [INFO    ] main.main():10 - [STARTUP] FAHRPC starting
[2026-01-15 14:30:01] [DEBUG   ] config.Load():44 - [CONFIG] loaded config.yaml
[2026-01-15 14:30:05] [ERROR   ] app.App.loop():141 - [MAIN LOOP] FAH connection lost: Connection refused
[EXCEPTION] ConnectionError: Connection refused
[STACK TRACE]:
  File "/src/fahrpc/internal/app/app.go", line 141, in app.(*App).loop
    if err := a.tick(ctx); err != nil {
[2026-01-15 14:30:06] captured stderr text
[2026-01-15 14:31:00] [WARNING ] app.App.loop():150 - [MAIN LOOP] retrying
[2026-01-15 14:32:00] [INFO    ] app.App.Run():90 - [SHUTDOWN] Exiting
`

func sampleEntries(t *testing.T) []LogEntry {
	t.Helper()
	entries, err := ReadEntries(strings.NewReader(sampleLog), "")
	if err != nil {
		t.Fatalf("ReadEntries failed: %v", err)
	}
	return entries
}

func TestReadEntries(t *testing.T) {
	entries := sampleEntries(t)
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}

	failure := entries[2]
	if failure.Level != "ERROR" || failure.Origin != "app.App.loop():141" {
		t.Errorf("entry = %+v", failure)
	}
	if len(failure.Detail) != 5 {
		t.Fatalf("detail = %q, want exception block plus captured stderr", failure.Detail)
	}
	if !failure.HasException() {
		t.Error("HasException() = false")
	}
	if failure.LevelValue() != LevelError {
		t.Errorf("LevelValue() = %v", failure.LevelValue())
	}
	if entries[0].HasException() {
		t.Error("plain entry should not report an exception")
	}
	want := time.Date(2026, time.January, 15, 14, 30, 5, 0, time.Local)
	if !failure.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", failure.Timestamp, want)
	}
}

func TestReadEntries_SkipsLeadingOrphans(t *testing.T) {
	input := "================\nFAHRPC Logging Initialized\n[2026-01-15 14:30:00] [INFO    ]  - first\n"
	entries, err := ReadEntries(strings.NewReader(input), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || len(entries[0].Detail) != 0 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestFilterLogs(t *testing.T) {
	entries := sampleEntries(t)

	tests := []struct {
		name   string
		filter LogFilter
		want   []string
	}{
		{
			name:   "empty filter",
			filter: LogFilter{},
			want:   []string{"STARTUP", "CONFIG", "connection lost", "retrying", "Exiting"},
		},
		{
			name:   "level",
			filter: LogFilter{Level: "warning"},
			want:   []string{"connection lost", "retrying"},
		},
		{
			name:   "phase",
			filter: LogFilter{Phase: PhaseMainLoop},
			want:   []string{"connection lost", "retrying"},
		},
		{
			name:   "time range",
			filter: LogFilter{StartTime: time.Date(2026, 1, 15, 14, 30, 1, 0, time.Local), EndTime: time.Date(2026, 1, 15, 14, 31, 0, 0, time.Local)},
			want:   []string{"CONFIG", "connection lost", "retrying"},
		},
		{
			name:   "message",
			filter: LogFilter{MessageContains: "Exiting"},
			want:   []string{"Exiting"},
		},
		{
			name:   "pattern matches detail",
			filter: LogFilter{Pattern: regexp.MustCompile(`a\.tick\(ctx\)`)},
			want:   []string{"connection lost"},
		},
		{
			name:   "combined",
			filter: LogFilter{Level: "info", Phase: PhaseShutdown},
			want:   []string{"Exiting"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterLogs(entries, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i].Message, w) {
					t.Errorf("entry %d = %q, want it to contain %q", i, got[i].Message, w)
				}
			}
		})
	}
}

func TestGenerations(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "fah_error_log.txt")

	for _, name := range []string{"fah_error_log.txt", "fah_error_log.txt.1", "fah_error_log.txt.3", "fah_error_log.txt.10", "fah_error_log.txt.bak", "other.txt.1"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "fah_error_log.txt.2"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Generations(base)
	if err != nil {
		t.Fatalf("Generations failed: %v", err)
	}
	want := []string{base + ".10", base + ".3", base + ".1", base}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Generations() = %v, want %v", got, want)
	}
}

func TestGenerations_GlobCharactersInPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs [x] {y}")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(dir, "fah[1]{log}.txt")

	for _, name := range []string{"fah[1]{log}.txt", "fah[1]{log}.txt.1", "fah[1]{log}.txt.2", "fah1log.txt.3"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Generations(base)
	if err != nil {
		t.Fatalf("Generations failed: %v", err)
	}
	want := []string{base + ".2", base + ".1", base}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Generations() = %v, want %v", got, want)
	}
}

func TestGenerations_TimestampBackups(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "fah_error_log.txt")

	older := time.Date(2026, 1, 15, 9, 0, 0, 0, time.Local)
	newer := older.Add(90 * time.Minute)
	for _, name := range []string{
		"fah_error_log.txt",
		"fah_error_log-" + newer.Format(timestampBackupLayout) + ".txt",
		"fah_error_log-" + older.Format(timestampBackupLayout) + ".txt",
		"fah_error_log-notatime.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Generations(base)
	if err != nil {
		t.Fatalf("Generations failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "fah_error_log-"+older.Format(timestampBackupLayout)+".txt"),
		filepath.Join(dir, "fah_error_log-"+newer.Format(timestampBackupLayout)+".txt"),
		base,
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Generations() = %v, want %v", got, want)
	}
}

func TestAggregateLogs_TimestampStyle(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "app.log")

	sink := NewRotatingSink(base, RotationTimestamp, RotationConfig{MaxBytes: 1024 * 1024, BackupCount: 3})
	sink.Emit(Event{Time: fixedTime, Level: LevelInfo, Message: "before"})
	if err := sink.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	sink.Emit(Event{Time: fixedTime.Add(time.Second), Level: LevelInfo, Message: "after"})
	_ = sink.Close()

	all, err := AggregateLogs(base, "", true)
	if err != nil {
		t.Fatalf("AggregateLogs failed: %v", err)
	}
	var msgs []string
	for _, e := range all {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, ",") != "before,after" {
		t.Errorf("messages = %v, want the lumberjack backup first", msgs)
	}
}

func TestAggregateLogs(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "app.log")

	// Write through a rotating sink so generations are real.
	sink := NewRotatingSink(base, RotationNumbered, RotationConfig{MaxBytes: 60, BackupCount: 5})
	for i, msg := range []string{"one", "two", "three"} {
		sink.Emit(Event{Time: fixedTime.Add(time.Duration(i) * time.Second), Level: LevelInfo, Message: msg})
	}
	_ = sink.Close()

	all, err := AggregateLogs(base, "", true)
	if err != nil {
		t.Fatalf("AggregateLogs failed: %v", err)
	}
	var msgs []string
	for _, e := range all {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, ",") != "one,two,three" {
		t.Errorf("messages = %v, want chronological order", msgs)
	}
	if all[0].File != BackupPath(base, 2) {
		t.Errorf("File = %q, want %q", all[0].File, BackupPath(base, 2))
	}

	active, err := AggregateLogs(base, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Message != "three" {
		t.Errorf("active only = %+v", active)
	}

	if _, err := AggregateLogs(filepath.Join(dir, "missing.log"), "", true); err == nil {
		t.Error("missing log should be an error")
	}
}

func TestExportLogEntries(t *testing.T) {
	entries := sampleEntries(t)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExportLogEntries(&buf, entries, "json", ""); err != nil {
			t.Fatal(err)
		}
		var decoded []LogEntry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != len(entries) || decoded[2].Detail[0] != "[EXCEPTION] ConnectionError: Connection refused" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("json empty", func(t *testing.T) {
		var buf bytes.Buffer
		_ = ExportLogEntries(&buf, nil, "JSON", "")
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("output = %q, want []", buf.String())
		}
	})

	t.Run("text reproduces the log", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExportLogEntries(&buf, entries, "text", ""); err != nil {
			t.Fatal(err)
		}
		if buf.String() != sampleLog {
			t.Errorf("text export differs:\n%s\nwant\n%s", buf.String(), sampleLog)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExportLogEntries(&buf, entries, "csv", ""); err != nil {
			t.Fatal(err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != len(entries)+1 {
			t.Fatalf("got %d records, want %d", len(records), len(entries)+1)
		}
		if records[0][0] != "timestamp" || records[3][1] != "ERROR" {
			t.Errorf("records = %q", records)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if err := ExportLogEntries(&bytes.Buffer{}, entries, "xml", ""); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}
