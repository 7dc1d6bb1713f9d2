package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRollingFileRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")

	writer, err := newRollingFile(path, 1, 2, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer writer.Close()
	// Shrink the limit so a couple of writes force a rotation.
	writer.limit = 32

	first := strings.Repeat("a", 24) + "\n"
	second := strings.Repeat("b", 24) + "\n"
	if _, err := writer.Write([]byte(first)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := writer.Write([]byte(second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read active file: %v", err)
	}
	if string(active) != second {
		t.Fatalf("active file should hold the latest write, got %q", active)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("read backup file: %v", err)
	}
	if string(backup) != first {
		t.Fatalf("backup should hold the rotated write, got %q", backup)
	}
}

func TestRollingFileRequiresPath(t *testing.T) {
	if _, err := newRollingFile("", 1, 1, 1); err == nil {
		t.Fatal("expected error for empty path")
	}
}
