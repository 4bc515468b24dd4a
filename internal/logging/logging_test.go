package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("preview")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("listening", "addr", "127.0.0.1:7763")

	out := buf.String()
	if !strings.Contains(out, "msg=listening") {
		t.Fatalf("expected plain listening message, got: %s", out)
	}
	if !strings.Contains(out, "component=preview") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "addr=127.0.0.1:7763") {
		t.Fatalf("expected addr field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("session")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)

	L("encode").Info("backend selected", "name", "openh264")

	out := buf.String()
	if !strings.Contains(out, `"component":"encode"`) {
		t.Fatalf("expected json component field, got: %s", out)
	}
	if !strings.Contains(out, `"name":"openh264"`) {
		t.Fatalf("expected json name field, got: %s", out)
	}
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	WithSession(L("record"), "abc-123").Info("started")

	out := buf.String()
	if !strings.Contains(out, "session=abc-123") {
		t.Fatalf("expected session field, got: %s", out)
	}
}

func TestFileSinkRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recorder.log")

	sink, err := NewFileSink(path, 1, 2)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	// Force a rotation by pretending the file is already at the cap.
	sink.mu.Lock()
	sink.written = sink.maxSize
	sink.mu.Unlock()

	if _, err := sink.Write([]byte("after rotation\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected rotated backup: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current log: %v", err)
	}
	if !strings.Contains(string(data), "after rotation") {
		t.Fatalf("current log missing post-rotation write: %q", data)
	}
}
