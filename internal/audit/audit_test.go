package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendWritesJSONLine(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(filepath.Join(dir, FileName))

	id, err := logger.Append(&Entry{Kind: "classify", Prompt: "retries amplify outages", Response: "causal"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a generated id")
	}

	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("expected one line in audit log")
	}
	var got Entry
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal audit entry: %v", err)
	}
	if got.ID != id || got.Kind != "classify" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if scanner.Scan() {
		t.Errorf("expected exactly one line, found a second: %q", scanner.Text())
	}
}

func TestAppendRejectsMissingKind(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(filepath.Join(dir, FileName))
	if _, err := logger.Append(&Entry{}); err == nil {
		t.Fatalf("expected error for missing kind")
	}
}

func TestNilLoggerAppendIsNoop(t *testing.T) {
	var logger *Logger
	if _, err := logger.Append(&Entry{Kind: "classify"}); err != nil {
		t.Fatalf("expected nil-logger append to be a no-op, got %v", err)
	}
}

func TestPathForDerivesFromDBPath(t *testing.T) {
	got := PathFor("/var/lib/memory/memory.db")
	want := filepath.Join("/var/lib/memory", FileName)
	if got != want {
		t.Errorf("PathFor(%q) = %q, want %q", "/var/lib/memory/memory.db", got, want)
	}
}
