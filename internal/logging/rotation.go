package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileSink is a size-based rotating log file.
// It implements io.Writer and is safe for concurrent use.
type FileSink struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	maxSize int64
	keep    int
	written int64
}

// NewFileSink opens (creating if needed) a log file that rotates once
// maxSizeMB is exceeded, keeping up to `keep` rotated backups.
func NewFileSink(path string, maxSizeMB, keep int) (*FileSink, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	if keep <= 0 {
		keep = 2
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	s := &FileSink{
		path:    path,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		keep:    keep,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Write implements io.Writer, rotating first when the write would exceed maxSize.
func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.written+int64(len(p)) > s.maxSize {
		if err := s.rotate(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}

	n, err := s.file.Write(p)
	s.written += int64(n)
	return n, err
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// TeeWriter returns an io.Writer that writes to both w1 and w2.
func TeeWriter(w1, w2 io.Writer) io.Writer {
	return io.MultiWriter(w1, w2)
}

func (s *FileSink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	s.file = f
	s.written = info.Size()
	return nil
}

// rotate shifts backups (.keep is discarded, .1 is the newest) and reopens.
func (s *FileSink) rotate() error {
	if s.file != nil {
		s.file.Close()
	}

	for i := s.keep; i >= 2; i-- {
		src := s.backupName(i - 1)
		dst := s.backupName(i)
		if i == s.keep {
			os.Remove(dst)
		}
		os.Rename(src, dst)
	}
	os.Rename(s.path, s.backupName(1))

	return s.open()
}

func (s *FileSink) backupName(index int) string {
	return fmt.Sprintf("%s.%d", s.path, index)
}
