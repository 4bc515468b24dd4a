package control

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/takeonehq/recorder/internal/logging"
)

// Handler executes one control verb and returns its result payload.
type Handler func(verb string, args json.RawMessage) (any, error)

// Server accepts local control connections and dispatches verbs. One
// command per round trip; connections may stay open for several.
type Server struct {
	log     *slog.Logger
	key     []byte
	handler Handler
	limiter *RateLimiter

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer wires a server around the per-run key and verb handler.
func NewServer(key []byte, handler Handler) *Server {
	return &Server{
		log:     logging.L("control"),
		key:     key,
		handler: handler,
		limiter: NewRateLimiter(10, time.Minute),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve listens on the platform control endpoint (unix socket or named
// pipe) and handles connections until Close.
func (s *Server) Serve(socketPath string) error {
	ln, err := listenControl(socketPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("control: server closed")
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("control socket listening", "path", socketPath)

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			s.log.Warn("control accept", logging.KeyError, err)
			continue
		}
		if !s.admit(conn) {
			conn.Close()
			continue
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
			s.mu.Lock()
			delete(s.conns, conn)
			s.mu.Unlock()
		}()
	}
}

// admit applies the kernel peer-credential check and per-peer rate
// limit. Platforms without peer credentials fall back to the socket's
// own permissions and a single shared bucket.
func (s *Server) admit(conn net.Conn) bool {
	identity := "local"
	if creds, err := peerIdentity(conn); err == nil && creds != "" {
		identity = creds
	}
	if !s.limiter.Allow(identity) {
		s.log.Warn("control connection rate limited", "peer", identity)
		return false
	}
	return true
}

func (s *Server) handleConn(raw net.Conn) {
	conn := NewConn(raw, s.key)
	defer conn.Close()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(2 * time.Minute)); err != nil {
			return
		}
		env, err := conn.Recv()
		if err != nil {
			return
		}
		if env.Type != TypeCommand {
			_ = conn.Send(&Envelope{ID: env.ID, Type: TypeResult, Error: "unexpected message type"})
			continue
		}

		var cmd Command
		if err := json.Unmarshal(env.Payload, &cmd); err != nil {
			_ = conn.Send(&Envelope{ID: env.ID, Type: TypeResult, Error: "malformed command"})
			continue
		}

		result, err := s.handler(cmd.Verb, cmd.Args)
		reply := &Envelope{ID: env.ID, Type: TypeResult}
		if err != nil {
			reply.Error = err.Error()
		} else if result != nil {
			payload, merr := json.Marshal(result)
			if merr != nil {
				reply.Error = "result marshal failed"
			} else {
				reply.Payload = payload
			}
		}
		if err := conn.Send(reply); err != nil {
			return
		}
	}
}

// Close stops accepting, severs open connections and waits for their
// handlers to drain.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	open := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		open = append(open, c)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range open {
		c.Close()
	}
	s.wg.Wait()
}

// Client is the ctl side of the control socket.
type Client struct {
	conn *Conn
}

// Dial connects to a running recorder's control endpoint.
func Dial(socketPath string, key []byte) (*Client, error) {
	raw, err := dialControl(socketPath)
	if err != nil {
		return nil, err
	}
	return &Client{conn: NewConn(raw, key)}, nil
}

// Call executes one verb and unmarshals the reply into out (out may be
// nil for verbs without a result).
func (c *Client) Call(verb string, args any, out any) error {
	var rawArgs json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return err
		}
		rawArgs = data
	}
	payload, err := json.Marshal(Command{Verb: verb, Args: rawArgs})
	if err != nil {
		return err
	}

	env := &Envelope{ID: uuid.NewString(), Type: TypeCommand, Payload: payload}
	if err := c.conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := c.conn.Send(env); err != nil {
		return err
	}

	reply, err := c.conn.Recv()
	if err != nil {
		return err
	}
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	if out != nil && reply.Payload != nil {
		return json.Unmarshal(reply.Payload, out)
	}
	return nil
}

func (c *Client) Close() error { return c.conn.Close() }
