package journal

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := New(t.TempDir(), 1, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNilLoggerIsNoOp(t *testing.T) {
	var l *Logger
	l.Event(EventSessionStarted, map[string]any{"k": "v"})
	if err := l.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if got := l.Dropped(); got != -1 {
		t.Fatalf("nil Dropped() = %d, want -1", got)
	}
	if got := l.Path(); got != "" {
		t.Fatalf("nil Path() = %q, want empty", got)
	}
}

func TestEventWritesJSONL(t *testing.T) {
	l := newTestLogger(t)
	l.Event(EventSessionStarted, map[string]any{"width": 1920})
	l.Event(EventFinalizeDecision, map[string]any{"use": "primary"})
	l.Close()

	entries := readEntries(t, l.Path())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventType != EventSessionStarted {
		t.Errorf("first eventType = %q", entries[0].EventType)
	}
	if entries[0].Timestamp == "" {
		t.Error("timestamp is empty")
	}
	if entries[1].Details["use"] != "primary" {
		t.Errorf("details = %v", entries[1].Details)
	}
	if got := l.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0", got)
	}
}

func TestRotationKeepsSentinel(t *testing.T) {
	l := newTestLogger(t)
	l.maxSize = 256 // force rotation after a few entries

	filler := strings.Repeat("x", 100)
	for i := 0; i < 10; i++ {
		l.Event(EventAdvisory, map[string]any{"text": filler})
	}
	l.Close()

	entries := readEntries(t, l.Path())
	if len(entries) == 0 {
		t.Fatal("current journal is empty after rotation")
	}
	if entries[0].EventType != EventRotated {
		t.Errorf("first entry after rotation = %q, want %q", entries[0].EventType, EventRotated)
	}

	if _, err := os.Stat(l.backupName(1)); err != nil {
		t.Errorf("backup .1 missing: %v", err)
	}
}
