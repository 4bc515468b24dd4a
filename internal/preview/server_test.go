package preview

import (
	"fmt"
	"image"
	"image/color"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testSnapshot() func() *image.RGBA {
	var mu sync.Mutex
	tint := uint8(0)
	return func() *image.RGBA {
		mu.Lock()
		tint += 16 // every snapshot differs so the differ never skips
		c := tint
		mu.Unlock()
		img := image.NewRGBA(image.Rect(0, 0, 64, 36))
		for i := range img.Pix {
			img.Pix[i] = c
		}
		img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
		return img
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probe listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	srv := NewServer(opts, testSnapshot())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Close()
		if err := <-errCh; err != nil {
			t.Errorf("serve: %v", err)
		}
	})
	return srv
}

func dialWS(addr string) (*websocket.Conn, error) {
	var conn *websocket.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, _, err = websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
		if err == nil {
			return conn, nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil, err
}

func TestStreamDeliversJPEGFrames(t *testing.T) {
	addr := freeAddr(t)
	startServer(t, Options{Addr: addr, MaxFPS: 30})

	conn, err := dialWS(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", kind)
	}
	// JPEG SOI marker.
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("frame does not start with JPEG SOI: % x", data[:min(4, len(data))])
	}
}

func TestClientCapRejectsExtraViewer(t *testing.T) {
	addr := freeAddr(t)
	startServer(t, Options{Addr: addr, MaxClients: 1, MaxFPS: 30})

	first, err := dialWS(addr)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	// Make sure the first stream is established before probing the cap.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err != nil {
		t.Fatalf("first stream: %v", err)
	}

	if _, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil); err == nil {
		t.Fatal("second viewer should have been refused")
	} else if resp != nil && resp.StatusCode != 503 {
		t.Errorf("refusal status = %d, want 503", resp.StatusCode)
	}
}

func TestRefusesNonLoopbackAddr(t *testing.T) {
	srv := NewServer(Options{Addr: "0.0.0.0:7763"}, testSnapshot())
	if err := srv.Serve(); err == nil {
		t.Fatal("expected refusal of non-loopback address")
	}
}

func TestAdaptiveQualityDegradesUnderPressure(t *testing.T) {
	a := newAdaptiveQuality(60)
	if got := a.Quality(); got != 60 {
		t.Fatalf("initial quality = %d, want 60", got)
	}

	for i := 0; i < 10; i++ {
		a.RecordFrame(50*time.Millisecond, 120*1024, true)
	}
	a.lastAdjust = time.Time{} // bypass cooldown
	a.Adjust()
	if got := a.Quality(); got >= 60 {
		t.Errorf("quality after pressure = %d, want < 60", got)
	}

	for i := 0; i < 30; i++ {
		a.RecordFrame(2*time.Millisecond, 8*1024, false)
	}
	before := a.Quality()
	a.lastAdjust = time.Time{}
	a.Adjust()
	if got := a.Quality(); got <= before {
		t.Errorf("quality after recovery = %d, want > %d", got, before)
	}
}

func TestQualityStaysInBounds(t *testing.T) {
	a := newAdaptiveQuality(25)
	for round := 0; round < 50; round++ {
		for i := 0; i < 10; i++ {
			a.RecordFrame(100*time.Millisecond, 200*1024, true)
		}
		a.lastAdjust = time.Time{}
		a.Adjust()
	}
	if got := a.Quality(); got < a.minQuality {
		t.Errorf("quality fell below floor: %d < %d", got, a.minQuality)
	}

	b := newAdaptiveQuality(90)
	for round := 0; round < 50; round++ {
		for i := 0; i < 10; i++ {
			b.RecordFrame(time.Millisecond, 1024, false)
		}
		b.lastAdjust = time.Time{}
		b.Adjust()
	}
	if got := b.Quality(); got > b.maxQuality {
		t.Errorf("quality rose above ceiling: %d > %d", got, b.maxQuality)
	}
}
