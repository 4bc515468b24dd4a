package source

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/takeonehq/recorder/internal/logging"
)

// Consecutive failed captures before the source declares itself ended.
// At the nominal tick rate this is about one second of darkness.
const endedFailureStreak = 30

const (
	probeAttempts = 10
	probeInterval = 30 * time.Millisecond
)

// DisplaySource adapts a ScreenCapturer to the VisualSource contract.
// When capture fails for a sustained stretch (display unplugged,
// session revoked) it fires onEnded exactly once so the owner can fall
// back to the canvas. The callback runs on its own goroutine; owners
// are expected to turn it into a message, not mutate state inside it.
type DisplaySource struct {
	log     *slog.Logger
	cap     ScreenCapturer
	bounds  image.Rectangle
	onEnded func()

	mu         sync.Mutex
	last       *image.RGBA
	failStreak int
	ended      bool
	closed     bool
}

// NewDisplaySource acquires the platform capturer and probes for a
// first frame. Acquisition failures and a frameless probe both return
// ErrDeviceUnavailable.
func NewDisplaySource(displayIndex int, onEnded func()) (*DisplaySource, error) {
	cap, err := NewScreenCapturer(displayIndex)
	if err != nil {
		return nil, err
	}
	return newDisplaySourceWith(cap, onEnded)
}

func newDisplaySourceWith(cap ScreenCapturer, onEnded func()) (*DisplaySource, error) {
	w, h, err := cap.ScreenBounds()
	if err != nil || w <= 0 || h <= 0 {
		cap.Close()
		return nil, fmt.Errorf("display bounds: %w", ErrDeviceUnavailable)
	}

	d := &DisplaySource{
		log:     logging.L("display"),
		cap:     cap,
		bounds:  image.Rect(0, 0, w, h),
		onEnded: onEnded,
	}

	// A capturer that opens but never produces frames is as useless as
	// one that fails to open. Probe briefly before accepting it.
	for i := 0; i < probeAttempts; i++ {
		img, err := cap.Capture()
		if err == nil && img != nil {
			d.last = img
			return d, nil
		}
		time.Sleep(probeInterval)
	}
	cap.Close()
	return nil, fmt.Errorf("display produced no frames: %w", ErrDeviceUnavailable)
}

func (d *DisplaySource) Kind() Kind { return KindDisplay }

func (d *DisplaySource) Bounds() image.Rectangle { return d.bounds }

func (d *DisplaySource) Frame() (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.ended {
		return nil, nil
	}

	img, err := d.cap.Capture()
	if err == nil && img != nil {
		d.failStreak = 0
		d.last = img
		return img, nil
	}

	d.failStreak++
	if err != nil && d.failStreak == 1 {
		d.log.Warn("display capture failed", logging.KeyError, err)
	}
	if d.failStreak >= endedFailureStreak {
		d.ended = true
		d.log.Info("display source ended", "streak", d.failStreak)
		if d.onEnded != nil {
			go d.onEnded()
		}
	}
	return nil, nil
}

func (d *DisplaySource) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	return d.cap.Close()
}
