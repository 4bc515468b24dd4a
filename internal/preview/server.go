package preview

import (
	"context"
	"fmt"
	"hash/crc32"
	"image"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/takeonehq/recorder/internal/logging"
	"github.com/takeonehq/recorder/internal/media"
)

// Options configures the localhost preview stream.
type Options struct {
	Addr        string // listen address, loopback only
	MaxClients  int
	BaseQuality int
	MaxFPS      int
}

// Server streams JPEG snapshots of the composite surface to local
// websocket viewers so the operator can frame the shot. It previews the
// surface; the finalized recording never passes through here.
type Server struct {
	log      *slog.Logger
	opts     Options
	snapshot func() *image.RGBA

	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu      sync.Mutex
	clients int
	closed  bool
}

// NewServer wires a preview server around a snapshot source (typically
// Compositor.Snapshot). Nothing listens until Serve.
func NewServer(opts Options, snapshot func() *image.RGBA) *Server {
	if opts.MaxClients <= 0 {
		opts.MaxClients = 4
	}
	if opts.BaseQuality <= 0 {
		opts.BaseQuality = 60
	}
	if opts.MaxFPS <= 0 || opts.MaxFPS > 30 {
		opts.MaxFPS = 15
	}
	s := &Server{
		log:      logging.L("preview"),
		opts:     opts,
		snapshot: snapshot,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin admits same-host pages and clients without an Origin
// header (native tooling); the listener is loopback-bound anyway.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return strings.Contains(origin, "127.0.0.1") || strings.Contains(origin, "localhost")
}

// Serve listens and blocks until Close. The client cap is enforced at
// the listener so excess connections are refused before the upgrade.
func (s *Server) Serve() error {
	host, _, err := net.SplitHostPort(s.opts.Addr)
	if err != nil || !isLoopback(host) {
		return fmt.Errorf("preview: refusing non-loopback address %q", s.opts.Addr)
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("preview: listen %s: %w", s.opts.Addr, err)
	}
	// +1 so the over-limit connection gets queued, not instantly reset.
	ln = netutil.LimitListener(ln, s.opts.MaxClients+1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.httpSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.mu.Unlock()

	s.log.Info("preview listening", "addr", s.opts.Addr)
	if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Close shuts the listener and lets in-flight streams unwind.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	srv := s.httpSrv
	s.mu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

const indexPage = `<!doctype html>
<html><head><title>TakeOne preview</title><style>
body{margin:0;background:#111;display:flex;align-items:center;justify-content:center;height:100vh}
img{max-width:100%;max-height:100%}
</style></head><body><img id="f" alt="preview">
<script>
const img = document.getElementById("f");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.binaryType = "blob";
let url = null;
ws.onmessage = (e) => {
  if (url) URL.revokeObjectURL(url);
  url = URL.createObjectURL(e.data);
  img.src = url;
};
</script></body></html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.clients >= s.opts.MaxClients {
		s.mu.Unlock()
		http.Error(w, "too many preview clients", http.StatusServiceUnavailable)
		return
	}
	s.clients++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.clients--
		s.mu.Unlock()
	}()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("preview upgrade failed", logging.KeyError, err)
		return
	}
	defer conn.Close()
	s.log.Info("preview client connected", "remote", conn.RemoteAddr().String())

	// Reader goroutine: drain control frames, detect disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.streamTo(conn, gone)
	s.log.Info("preview client disconnected", "remote", conn.RemoteAddr().String())
}

// streamTo runs one client's frame loop: snapshot, diff, encode at the
// adaptive quality, send. Unchanged frames are skipped entirely.
func (s *Server) streamTo(conn *websocket.Conn, gone <-chan struct{}) {
	adaptive := newAdaptiveQuality(s.opts.BaseQuality)
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.MaxFPS))
	defer ticker.Stop()

	var lastHash uint32
	var hasLast bool

	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
		}

		img := s.snapshot()
		if img == nil {
			continue
		}
		h := crc32.ChecksumIEEE(img.Pix)
		if hasLast && h == lastHash {
			continue
		}

		t0 := time.Now()
		jpeg, err := media.EncodeJPEG(img, adaptive.Quality())
		encodeTime := time.Since(t0)
		if err != nil {
			s.log.Warn("preview encode failed", logging.KeyError, err)
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(time.Second))
		err = conn.WriteMessage(websocket.BinaryMessage, jpeg)
		adaptive.RecordFrame(encodeTime, len(jpeg), err != nil)
		adaptive.Adjust()
		if err != nil {
			return
		}
		lastHash = h
		hasLast = true
	}
}
