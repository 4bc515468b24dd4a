//go:build !windows

package control

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// DefaultSocketPath places the control socket next to the journal in
// the per-run data directory.
func DefaultSocketPath(dataDir string) string {
	return filepath.Join(dataDir, "control.sock")
}

func listenControl(socketPath string) (net.Listener, error) {
	// Remove a stale socket from a previous run.
	os.Remove(socketPath)

	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("control: mkdir %s: %w", dir, err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("control: listen %s: %w", socketPath, err)
	}

	// Owner-only: the per-run key plus these permissions scope the
	// socket to the recording user.
	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("control: chmod %s: %w", socketPath, err)
	}
	return ln, nil
}

func dialControl(socketPath string) (net.Conn, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w", socketPath, err)
	}
	return conn, nil
}
