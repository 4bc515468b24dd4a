//go:build !linux

package control

import "net"

// peerIdentity has no kernel peer-credential source on this platform;
// the socket permissions and per-run key carry the authorization.
func peerIdentity(conn net.Conn) (string, error) {
	return "", nil
}
