package control

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Message types on the control socket.
const (
	TypeCommand = "command"
	TypeResult  = "result"
)

// MaxMessageSize bounds one control message. Status payloads are small;
// anything larger is a protocol violation.
const MaxMessageSize = 1 * 1024 * 1024

// Envelope is the wire-format wrapper for control messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	HMAC    string          `json:"hmac"`
}

// Command is a verb posted into the session loop.
type Command struct {
	Verb string          `json:"verb"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Conn wraps a net.Conn with length-prefixed JSON framing, HMAC signing
// under the per-run key, and strictly increasing sequence validation.
type Conn struct {
	conn    net.Conn
	key     []byte
	sendSeq atomic.Uint64
	recvSeq atomic.Uint64
	mu      sync.Mutex // serializes writes
}

func NewConn(conn net.Conn, key []byte) *Conn {
	return &Conn{conn: conn, key: key}
}

func (c *Conn) Close() error                      { return c.conn.Close() }
func (c *Conn) SetDeadline(t time.Time) error     { return c.conn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// Send marshals an Envelope as [4-byte BE length][JSON], assigning the
// sequence number and HMAC.
func (c *Conn) Send(env *Envelope) error {
	env.Seq = c.sendSeq.Add(1)
	env.HMAC = c.computeHMAC(env)

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("control: marshal envelope: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("control: message too large: %d > %d", len(data), MaxMessageSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	if _, err := c.conn.Write(header); err != nil {
		return fmt.Errorf("control: write header: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("control: write payload: %w", err)
	}
	return nil
}

// Recv reads one message and validates HMAC and sequence.
func (c *Conn) Recv() (*Envelope, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, fmt.Errorf("control: read header: %w", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > uint32(MaxMessageSize) {
		return nil, fmt.Errorf("control: message too large: %d > %d", length, MaxMessageSize)
	}
	if length == 0 {
		return nil, fmt.Errorf("control: zero-length message")
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(c.conn, data); err != nil {
		return nil, fmt.Errorf("control: read payload: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("control: unmarshal envelope: %w", err)
	}

	if env.HMAC != c.computeHMAC(&env) {
		return nil, fmt.Errorf("control: HMAC mismatch")
	}

	prev := c.recvSeq.Load()
	if env.Seq <= prev && prev > 0 {
		return nil, fmt.Errorf("control: sequence %d <= last %d (replay/duplicate)", env.Seq, prev)
	}
	c.recvSeq.Store(env.Seq)

	return &env, nil
}

// computeHMAC is HMAC-SHA256(key, id||seq||type||payload||error).
func (c *Conn) computeHMAC(env *Envelope) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(env.ID))
	mac.Write([]byte(strconv.FormatUint(env.Seq, 10)))
	mac.Write([]byte(env.Type))
	mac.Write(env.Payload)
	mac.Write([]byte(env.Error))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateKey creates the per-run 256-bit control key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("control: generate key: %w", err)
	}
	return key, nil
}

// WriteKeyFile persists the per-run key, readable only by the owner. The
// ctl client reads the same file; sharing the file is the authorization.
func WriteKeyFile(dir string, key []byte) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("control: key dir: %w", err)
	}
	path := filepath.Join(dir, "control.key")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return "", fmt.Errorf("control: write key: %w", err)
	}
	return path, nil
}

// ReadKeyFile loads the per-run key written by the recording process.
func ReadKeyFile(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, "control.key"))
	if err != nil {
		return nil, fmt.Errorf("control: read key: %w", err)
	}
	key, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("control: decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("control: key length %d, want 32", len(key))
	}
	return key, nil
}
