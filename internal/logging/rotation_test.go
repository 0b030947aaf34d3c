package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name       string
		active     int64
		pending    int64
		maxBytes   int64
		backups    int
		wantRotate bool
	}{
		{"fits", 100, 100, 1000, 2, false},
		{"lands exactly on ceiling", 500, 500, 1000, 2, false},
		{"one byte over", 1000, 1, 1000, 2, true},
		{"empty active never rotates", 0, 5000, 1000, 2, false},
		{"rotation disabled", 5000, 5000, 0, 2, false},
		{"oversized single write on non-empty file", 1, 5000, 1000, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(tt.active, tt.pending, tt.maxBytes, tt.backups)
			if plan.Rotate != tt.wantRotate {
				t.Errorf("Rotate = %v, want %v", plan.Rotate, tt.wantRotate)
			}
			if !plan.Rotate && len(plan.Renames) != 0 {
				t.Errorf("no-rotate plan should carry no renames, got %v", plan.Renames)
			}
		})
	}
}

func TestPlan_RenameOrder(t *testing.T) {
	t.Run("shifts generations oldest first", func(t *testing.T) {
		plan := Plan(10, 10, 15, 3)
		want := []Rename{
			{From: 3, To: Discard},
			{From: 2, To: 3},
			{From: 1, To: 2},
			{From: 0, To: 1},
		}
		if !reflect.DeepEqual(plan.Renames, want) {
			t.Errorf("Renames = %v, want %v", plan.Renames, want)
		}
	})

	t.Run("no backups discards active", func(t *testing.T) {
		plan := Plan(10, 10, 15, 0)
		want := []Rename{{From: 0, To: Discard}}
		if !reflect.DeepEqual(plan.Renames, want) {
			t.Errorf("Renames = %v, want %v", plan.Renames, want)
		}
	})
}

func TestRotatingWriter(t *testing.T) {
	t.Run("creates log file lazily", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nested", "app.log")

		rw := NewRotatingWriter(logPath, DefaultRotationConfig())
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(logPath); !os.IsNotExist(err) {
			t.Fatal("file should not exist before the first write")
		}

		if _, err := rw.Write([]byte("hello\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if _, err := os.Stat(logPath); err != nil {
			t.Fatalf("file should exist after write: %v", err)
		}
	})

	t.Run("appends across reopen", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "app.log")

		first := NewRotatingWriter(logPath, DefaultRotationConfig())
		_, _ = first.Write([]byte("run 1\n"))
		_ = first.Close()

		second := NewRotatingWriter(logPath, DefaultRotationConfig())
		_, _ = second.Write([]byte("run 2\n"))
		if second.CurrentSize() != int64(len("run 1\nrun 2\n")) {
			t.Errorf("CurrentSize() = %d, want %d", second.CurrentSize(), len("run 1\nrun 2\n"))
		}
		_ = second.Close()

		content, _ := os.ReadFile(logPath)
		if string(content) != "run 1\nrun 2\n" {
			t.Errorf("content = %q", content)
		}
	})

	t.Run("write after close fails", func(t *testing.T) {
		rw := NewRotatingWriter(filepath.Join(t.TempDir(), "app.log"), DefaultRotationConfig())
		_ = rw.Close()
		if _, err := rw.Write([]byte("x")); !errors.Is(err, ErrWriterClosed) {
			t.Errorf("Write after Close error = %v, want ErrWriterClosed", err)
		}
		if err := rw.Close(); err != nil {
			t.Errorf("second Close should be a no-op, got %v", err)
		}
	})
}

func TestRotatingWriter_RotateEmptyIsNoop(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "app.log")
		rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: 10, BackupCount: 3})
		defer func() { _ = rw.Close() }()

		if err := rw.Rotate(); err != nil {
			t.Fatalf("Rotate failed: %v", err)
		}
		assertNoBackups(t, logPath, 3)
	})

	t.Run("empty file", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "app.log")
		if err := os.WriteFile(logPath, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: 10, BackupCount: 3})
		defer func() { _ = rw.Close() }()

		for i := 0; i < 3; i++ {
			if err := rw.Rotate(); err != nil {
				t.Fatalf("Rotate failed: %v", err)
			}
		}
		assertNoBackups(t, logPath, 3)
		if _, err := os.Stat(logPath); err != nil {
			t.Errorf("active file should still exist: %v", err)
		}
	})

	t.Run("oversized first write", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "app.log")
		rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: 10, BackupCount: 3})
		defer func() { _ = rw.Close() }()

		if _, err := rw.Write([]byte(strings.Repeat("x", 50))); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		assertNoBackups(t, logPath, 3)
	})
}

func TestRotatingWriter_Boundary(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: 10, BackupCount: 2})
	defer func() { _ = rw.Close() }()

	_, _ = rw.Write([]byte("12345"))
	_, _ = rw.Write([]byte("67890"))

	// Exactly at the ceiling: no rotation yet.
	if _, err := os.Stat(BackupPath(logPath, 1)); !os.IsNotExist(err) {
		t.Fatal("reaching the ceiling exactly must not rotate")
	}
	if rw.CurrentSize() != 10 {
		t.Fatalf("CurrentSize() = %d, want 10", rw.CurrentSize())
	}

	_, _ = rw.Write([]byte("a"))

	backup, err := os.ReadFile(BackupPath(logPath, 1))
	if err != nil {
		t.Fatalf("expected .1 after the next write: %v", err)
	}
	if string(backup) != "1234567890" {
		t.Errorf(".1 content = %q, want %q", backup, "1234567890")
	}
	active, _ := os.ReadFile(logPath)
	if string(active) != "a" {
		t.Errorf("active content = %q, want %q", active, "a")
	}
}

func TestRotatingWriter_Retention(t *testing.T) {
	const (
		backups  = 3
		maxBytes = 100
	)
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: maxBytes, BackupCount: backups})
	defer func() { _ = rw.Close() }()

	// The first write fills the file; every later write rotates once.
	writes := backups + 2 + 1
	for i := 1; i <= writes; i++ {
		payload := fmt.Sprintf("%-99s\n", fmt.Sprintf("write-%d", i))
		if _, err := rw.Write([]byte(payload)); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for n := 1; n <= backups; n++ {
		content, err := os.ReadFile(BackupPath(logPath, n))
		if err != nil {
			t.Fatalf("backup .%d missing: %v", n, err)
		}
		want := fmt.Sprintf("write-%d", writes-n)
		if !strings.HasPrefix(string(content), want+" ") {
			t.Errorf(".%d holds %q, want %s", n, strings.TrimSpace(string(content)), want)
		}
	}
	if _, err := os.Stat(BackupPath(logPath, backups+1)); !os.IsNotExist(err) {
		t.Errorf("backup .%d should not exist", backups+1)
	}

	matches, _ := filepath.Glob(logPath + ".*")
	if len(matches) != backups {
		t.Errorf("found %d backups %v, want %d", len(matches), matches, backups)
	}
}

func TestRotatingWriter_FiveHundredByteSteps(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "fah_error_log.txt")
	rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: 1000, BackupCount: 2})
	defer func() { _ = rw.Close() }()

	chunk := []byte(strings.Repeat("x", 499) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("active file missing: %v", err)
	}
	if info.Size() > 1000 {
		t.Errorf("active size = %d, want <= 1000", info.Size())
	}
	for _, n := range []int{1, 2} {
		if _, err := os.Stat(BackupPath(logPath, n)); err != nil {
			t.Errorf("backup .%d missing: %v", n, err)
		}
	}
	if _, err := os.Stat(BackupPath(logPath, 3)); !os.IsNotExist(err) {
		t.Error("backup .3 should not exist")
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: 10, BackupCount: 0})
	defer func() { _ = rw.Close() }()

	_, _ = rw.Write([]byte("0123456789"))
	_, _ = rw.Write([]byte("next"))

	assertNoBackups(t, logPath, 1)
	content, _ := os.ReadFile(logPath)
	if string(content) != "next" {
		t.Errorf("content = %q, want %q", content, "next")
	}
}

func TestRotatingWriter_BlockedRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")

	// A non-empty directory in place of the oldest generation cannot be
	// removed, so every rotation attempt is abandoned.
	blocker := BackupPath(logPath, 1)
	if err := os.MkdirAll(filepath.Join(blocker, "locked"), 0o755); err != nil {
		t.Fatal(err)
	}

	var reported []error
	rw := NewRotatingWriter(logPath, RotationConfig{
		MaxBytes:    10,
		BackupCount: 1,
		OnError:     func(err error) { reported = append(reported, err) },
	})
	defer func() { _ = rw.Close() }()

	for i := 0; i < 3; i++ {
		if _, err := rw.Write([]byte("0123456789")); err != nil {
			t.Fatalf("write %d should succeed despite blocked rotation: %v", i, err)
		}
	}

	content, _ := os.ReadFile(logPath)
	if len(content) != 30 {
		t.Errorf("active size = %d, want 30 (ceiling exceeded while rotation is blocked)", len(content))
	}
	if len(reported) != 2 {
		t.Errorf("reported %d rotation errors, want 2", len(reported))
	}

	// Once the blocker is gone the next write rotates normally.
	if err := os.RemoveAll(blocker); err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write([]byte("fresh")); err != nil {
		t.Fatalf("write after unblock failed: %v", err)
	}
	backup, err := os.ReadFile(blocker)
	if err != nil {
		t.Fatalf("expected .1 after unblocked rotation: %v", err)
	}
	if len(backup) != 30 {
		t.Errorf(".1 size = %d, want 30", len(backup))
	}
}

func assertNoBackups(t *testing.T, logPath string, upTo int) {
	t.Helper()
	for n := 1; n <= upTo; n++ {
		if _, err := os.Stat(BackupPath(logPath, n)); !os.IsNotExist(err) {
			t.Errorf("backup .%d should not exist", n)
		}
	}
}

func TestRotatingWriter_FailedShiftLeavesNoGap(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")

	for n, content := range []string{"gen0\n", "gen1\n", "gen2\n", "gen3\n"} {
		path := logPath
		if n > 0 {
			path = BackupPath(logPath, n)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rw := NewRotatingWriter(logPath, RotationConfig{MaxBytes: 1024, BackupCount: 3})
	defer func() { _ = rw.Close() }()

	// .2 -> .3 succeeds, then .1 -> .2 fails.
	rw.rename = func(oldpath, newpath string) error {
		if oldpath == BackupPath(logPath, 1) {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrPermission}
		}
		return os.Rename(oldpath, newpath)
	}
	if err := rw.Rotate(); err == nil {
		t.Fatal("Rotate should report the failed rename")
	}

	assertContent := func(path, want string) {
		t.Helper()
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", filepath.Base(path), err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", filepath.Base(path), got, want)
		}
	}

	assertContent(logPath, "gen0\n")
	assertContent(BackupPath(logPath, 1), "gen1\n")
	assertContent(BackupPath(logPath, 2), "gen2\n")
	if _, err := os.Stat(BackupPath(logPath, 3)); !os.IsNotExist(err) {
		t.Error(".3 was discarded and should stay absent")
	}

	// The next rotation shifts every surviving generation by one.
	rw.rename = os.Rename
	if err := rw.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	assertContent(BackupPath(logPath, 1), "gen0\n")
	assertContent(BackupPath(logPath, 2), "gen1\n")
	assertContent(BackupPath(logPath, 3), "gen2\n")
}
