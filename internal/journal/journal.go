package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/takeonehq/recorder/internal/logging"
)

var log = logging.L("journal")

// Event types written over a session's life.
const (
	EventSessionStarted   = "session_started"
	EventPreviewStarted   = "preview_started"
	EventRecordingStarted = "recording_started"
	EventRecordingFailed  = "recording_failed"
	EventPaused           = "paused"
	EventResumed          = "resumed"
	EventSourceSwitched   = "source_switched"
	EventPathDegraded     = "path_degraded"
	EventAdvisory         = "advisory"
	EventFinalizeDecision = "finalize_decision"
	EventOutputWritten    = "output_written"
	EventSessionEnded     = "session_ended"
	EventRotated          = "journal_rotated"
)

// criticalEvents are fsynced after writing: these are the records that
// explain what happened to a recording, so they must survive a crash.
var criticalEvents = map[string]bool{
	EventRecordingStarted: true,
	EventFinalizeDecision: true,
	EventOutputWritten:    true,
	EventSessionEnded:     true,
}

// Entry is one journal record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"eventType"`
	Details   map[string]any `json:"details,omitempty"`
}

// Logger writes the session journal as JSONL with size-based rotation.
// Writes never fail the caller; a journal problem is logged and counted,
// the session continues.
type Logger struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	written    int64
	dropped    atomic.Int64
}

// New creates a journal logger writing to {dir}/journal.jsonl.
func New(dir string, maxSizeMB, maxBackups int) (*Logger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	if maxBackups <= 0 {
		maxBackups = 2
	}

	l := &Logger{
		filePath:   filepath.Join(dir, "journal.jsonl"),
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := l.openFile(); err != nil {
		return nil, err
	}

	log.Info("journal started", "path", l.filePath)
	return l, nil
}

// Event appends one record. Safe on a nil receiver (no-op), so callers
// can run journal-less.
func (l *Logger) Event(eventType string, details map[string]any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: eventType,
		Details:   details,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("journal marshal failed", "eventType", eventType, logging.KeyError, err)
		l.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	if l.written+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			log.Error("journal rotation failed", logging.KeyError, err)
			l.dropped.Add(1)
			return
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		log.Error("journal write failed", "eventType", eventType, logging.KeyError, err)
		l.dropped.Add(1)
		return
	}
	l.written += int64(n)

	if criticalEvents[eventType] {
		if err := l.file.Sync(); err != nil {
			log.Error("journal fsync failed", "eventType", eventType, logging.KeyError, err)
		}
	}
}

// Path returns the journal file path for status reporting.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Dropped returns the count of records that failed to write, or -1 on a
// nil logger.
func (l *Logger) Dropped() int64 {
	if l == nil {
		return -1
	}
	return l.dropped.Load()
}

// Close flushes and closes the journal file. Safe on a nil receiver.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat journal: %w", err)
	}
	l.file = f
	l.written = info.Size()
	return nil
}

func (l *Logger) rotate() error {
	if l.file != nil {
		l.file.Close()
	}

	// Shift backups upward, oldest falls off.
	for i := l.maxBackups; i >= 2; i-- {
		src := l.backupName(i - 1)
		dst := l.backupName(i)
		if i == l.maxBackups {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				log.Warn("journal rotation: remove oldest backup", "path", dst, logging.KeyError, err)
			}
		}
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			log.Warn("journal rotation: rename backup", "src", src, "dst", dst, logging.KeyError, err)
		}
	}
	if err := os.Rename(l.filePath, l.backupName(1)); err != nil && !os.IsNotExist(err) {
		log.Warn("journal rotation: rename current", logging.KeyError, err)
	}

	if err := l.openFile(); err != nil {
		return err
	}

	// First record of the new file points at where the trail continues.
	sentinel := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: EventRotated,
		Details:   map[string]any{"previousFile": l.backupName(1)},
	}
	data, err := json.Marshal(sentinel)
	if err != nil {
		return nil
	}
	data = append(data, '\n')
	if n, err := l.file.Write(data); err == nil {
		l.written += int64(n)
	}
	return nil
}

func (l *Logger) backupName(index int) string {
	if index == 0 {
		return l.filePath
	}
	return fmt.Sprintf("%s.%d", l.filePath, index)
}
