//go:build linux

package control

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// peerIdentity returns the kernel-verified UID of a unix-socket peer
// via SO_PEERCRED, used as the rate-limit identity.
func peerIdentity(conn net.Conn) (string, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return "", fmt.Errorf("control: not a unix connection")
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return "", fmt.Errorf("control: syscall conn: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return "", fmt.Errorf("control: control: %w", err)
	}
	if credErr != nil {
		return "", fmt.Errorf("control: getsockopt SO_PEERCRED: %w", credErr)
	}
	return strconv.FormatUint(uint64(cred.Uid), 10), nil
}
