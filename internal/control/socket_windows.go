//go:build windows

package control

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeSecurity limits the pipe to SYSTEM and interactive users; the
// per-run key narrows it further to whoever can read the key file.
const pipeSecurity = "D:P(A;;GA;;;SY)(A;;GRGW;;;IU)"

// DefaultSocketPath names the control pipe. dataDir is unused on
// Windows; named pipes live in their own namespace.
func DefaultSocketPath(dataDir string) string {
	return `\\.\pipe\takeone-recorder-control`
}

func listenControl(socketPath string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		SecurityDescriptor: pipeSecurity,
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   64 * 1024,
	}
	ln, err := winio.ListenPipe(socketPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("control: listen pipe %s: %w", socketPath, err)
	}
	return ln, nil
}

func dialControl(socketPath string) (net.Conn, error) {
	timeout := 5 * time.Second
	conn, err := winio.DialPipe(socketPath, &timeout)
	if err != nil {
		return nil, fmt.Errorf("control: dial pipe %s: %w", socketPath, err)
	}
	return conn, nil
}
