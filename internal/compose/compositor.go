package compose

import (
	"errors"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/takeonehq/recorder/internal/config"
	"github.com/takeonehq/recorder/internal/logging"
	"github.com/takeonehq/recorder/internal/source"
)

// Options fixes the output geometry and decoration for one session.
type Options struct {
	Width        int
	Height       int
	FPS          int
	Padding      int
	CornerRadius int

	Background  *Background
	Title       string
	TitleCorner string

	PointerEnabled bool
	PointerColor   color.RGBA

	BubbleSize   int
	BubbleMirror bool
}

// OptionsFromConfig maps the user configuration onto compositor
// options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Width:          cfg.Width,
		Height:         cfg.Height,
		FPS:            cfg.FPS,
		Padding:        cfg.Padding,
		CornerRadius:   cfg.CornerRadius,
		Background:     NewBackground(cfg.Background, cfg.BackgroundColor, cfg.BackgroundColor2, cfg.BackgroundImage),
		Title:          cfg.TitleText,
		TitleCorner:    cfg.TitleCorner,
		PointerEnabled: cfg.CursorHighlight,
		PointerColor:   ParseHexColorDefault(cfg.CursorColor, color.RGBA{R: 0xfa, G: 0xcc, B: 0x15, A: 0xff}),
		BubbleSize:     cfg.BubbleSize,
		BubbleMirror:   cfg.BubbleMirror,
	}
}

// Compositor renders one output frame per accepted tick onto a shared
// surface: backdrop, the active source inside a rounded content card,
// then overlays. The session loop drives RenderTick; the preview
// server reads copies via Snapshot.
type Compositor struct {
	log  *slog.Logger
	opts Options

	mu        sync.RWMutex
	surface   *image.RGBA
	dc        *gg.Context
	src       source.VisualSource
	camera    source.CameraSource
	pointer   source.PointerProvider
	recFrame  image.Rectangle
	bubblePos image.Point
	recording bool
	paused    bool
	lastTick  time.Time
	sink      func(*image.RGBA)

	contentBuf *image.RGBA
	bubbleBuf  *image.RGBA
}

func New(opts Options) *Compositor {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Background == nil {
		opts.Background = NewBackground("solid", "", "", "")
	}
	return &Compositor{
		log:  logging.L("compose"),
		opts: opts,
	}
}

// Allocate creates the composite surface at target dimensions. Ticks
// before Allocate are no-ops.
func (c *Compositor) Allocate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface != nil {
		return
	}
	c.surface = image.NewRGBA(image.Rect(0, 0, c.opts.Width, c.opts.Height))
	c.dc = gg.NewContextForRGBA(c.surface)
	c.lastTick = time.Time{}
}

// Release drops the surface and scratch buffers.
func (c *Compositor) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = nil
	c.dc = nil
	c.contentBuf = nil
	c.bubbleBuf = nil
}

// SetSource swaps the active visual source. Display sources default
// their recording frame to the full capture bounds.
func (c *Compositor) SetSource(src source.VisualSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.src = src
	c.contentBuf = nil
	if src != nil && src.Kind() == source.KindDisplay {
		c.recFrame = src.Bounds()
	}
}

func (c *Compositor) Source() source.VisualSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.src
}

func (c *Compositor) SetCamera(cam source.CameraSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera = cam
}

func (c *Compositor) SetPointerProvider(p source.PointerProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointer = p
}

// SetRecordingFrame fixes the source subregion that maps onto the
// content region.
func (c *Compositor) SetRecordingFrame(r image.Rectangle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recFrame = r
	c.contentBuf = nil
}

func (c *Compositor) RecordingFrame() image.Rectangle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recFrame
}

// SetBubblePosition places the camera bubble center, in source
// coordinates, snapped inside the recording frame.
func (c *Compositor) SetBubblePosition(p image.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bubblePos = SnapBubble(p, c.opts.BubbleSize/2, 8, c.recFrame)
}

// SetFrameSink wires the primary encoder submission hook.
func (c *Compositor) SetFrameSink(fn func(*image.RGBA)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = fn
}

func (c *Compositor) SetRecording(rec bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = rec
	if !rec {
		c.paused = false
	}
}

func (c *Compositor) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

// Snapshot returns a copy of the current composite for preview
// encoding, or nil before Allocate.
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.surface == nil {
		return nil
	}
	cp := image.NewRGBA(c.surface.Bounds())
	copy(cp.Pix, c.surface.Pix)
	return cp
}

func (c *Compositor) tickInterval() time.Duration {
	return time.Second / time.Duration(c.opts.FPS)
}

func (c *Compositor) contentRegion() image.Rectangle {
	p := c.opts.Padding
	return image.Rect(p, p, c.opts.Width-p, c.opts.Height-p)
}

// RenderTick composites one frame. Without a surface it is a no-op;
// while recording, ticks arriving faster than the target frame
// interval are skipped.
func (c *Compositor) RenderTick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surface == nil || c.dc == nil {
		return
	}
	if c.recording && !c.lastTick.IsZero() && now.Sub(c.lastTick) < c.tickInterval() {
		return
	}
	c.lastTick = now

	dc := c.dc
	w, h := c.opts.Width, c.opts.Height

	c.opts.Background.Draw(dc, w, h)

	content := c.contentRegion()
	radius := float64(c.opts.CornerRadius)
	if c.opts.Padding > 0 {
		c.drawContentShadow(content, radius, c.recording)
	}

	dc.DrawRoundedRectangle(float64(content.Min.X), float64(content.Min.Y),
		float64(content.Dx()), float64(content.Dy()), radius)
	dc.Clip()

	dc.SetRGB(0.05, 0.05, 0.06)
	dc.DrawRectangle(float64(content.Min.X), float64(content.Min.Y),
		float64(content.Dx()), float64(content.Dy()))
	dc.Fill()

	dst := content
	if c.src != nil && c.src.Kind() == source.KindDisplay {
		b := c.src.Bounds()
		dst = FitRect(b.Dx(), b.Dy(), content)
	}
	fm := NewFrameMap(c.recFrame, dst)

	var frame *image.RGBA
	if c.src != nil {
		var err error
		frame, err = c.src.Frame()
		if err != nil && !errors.Is(err, source.ErrDeviceUnavailable) {
			c.log.Debug("source frame failed", logging.KeyError, err)
		}
		if frame != nil {
			c.drawSourceFrame(frame, dst)
		}
	}

	if ed, ok := c.src.(source.TextEditor); ok && frame != nil {
		if text, anchor, pending := ed.PendingText(); pending && text != "" {
			c.drawPendingText(text, anchor, fm, content, now)
		}
	}

	dc.ResetClip()

	if c.camera != nil {
		if cam, err := c.camera.Frame(); err == nil && cam != nil {
			cx, cy := fm.Point(float64(c.bubblePos.X), float64(c.bubblePos.Y))
			c.drawCameraBubble(cam, cx, cy, c.opts.BubbleSize, c.opts.BubbleMirror)
		}
	}

	if c.opts.PointerEnabled && c.pointer != nil {
		c.drawPointer(c.pointer.Pointer(), fm)
	}

	if c.opts.Title != "" {
		c.drawTitleBanner(c.opts.Title, c.opts.TitleCorner)
	}

	if c.recording && !c.paused && c.sink != nil {
		c.sink(c.surface)
	}
}
