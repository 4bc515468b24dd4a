package source

import (
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
)

const (
	canvasOrbitPeriod  = 8 * time.Second
	canvasTypeCharsSec = 12
	canvasLineHold     = 2 * time.Second
)

var canvasScript = []string{
	"welcome to the live canvas",
	"shapes and clock animate every tick",
	"this line is typed as you watch",
	"switch to a display whenever you like",
}

// Canvas is the built-in animated drawing surface. It renders moving
// shapes and a clock sweep, reports a simulated in-progress text edit,
// and provides an orbiting pointer so a fresh install records something
// visually alive without any device setup.
type Canvas struct {
	mu     sync.Mutex
	width  int
	height int
	start  time.Time
	now    func() time.Time
	img    *image.RGBA
	dc     *gg.Context
}

func NewCanvas(width, height int) *Canvas {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	return &Canvas{
		width:  width,
		height: height,
		start:  time.Now(),
		now:    time.Now,
		img:    img,
		dc:     gg.NewContextForRGBA(img),
	}
}

func (c *Canvas) Kind() Kind { return KindCanvas }

func (c *Canvas) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

func (c *Canvas) Close() error { return nil }

// Frame redraws the animation for the current instant and returns the
// internal buffer. The buffer is reused on the next call.
func (c *Canvas) Frame() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().Sub(c.start).Seconds()
	dc := c.dc
	w := float64(c.width)
	h := float64(c.height)

	dc.SetRGB(0.96, 0.96, 0.94)
	dc.Clear()

	// Card row.
	cardW := w * 0.24
	cardH := h * 0.3
	cardY := h * 0.12
	colors := []color.RGBA{
		{R: 0x4c, G: 0x9f, B: 0x70, A: 0xff},
		{R: 0xe0, G: 0x8e, B: 0x45, A: 0xff},
		{R: 0x5b, G: 0x7f, B: 0xc7, A: 0xff},
	}
	for i, col := range colors {
		x := w*0.06 + float64(i)*(cardW+w*0.04)
		bob := math.Sin(t*1.3+float64(i)) * h * 0.015
		dc.SetColor(col)
		dc.DrawRoundedRectangle(x, cardY+bob, cardW, cardH, 14)
		dc.Fill()
	}

	// Bouncing accent disk.
	bx := w*0.5 + math.Cos(t*0.9)*w*0.32
	by := h*0.62 + math.Sin(t*1.7)*h*0.1
	dc.SetRGBA(0.85, 0.3, 0.35, 0.9)
	dc.DrawCircle(bx, by, math.Min(w, h)*0.045)
	dc.Fill()

	// Clock dial with a sweeping hand, one revolution per minute.
	cx := w * 0.86
	cy := h * 0.72
	r := math.Min(w, h) * 0.12
	dc.SetRGB(1, 1, 1)
	dc.DrawCircle(cx, cy, r)
	dc.Fill()
	dc.SetRGB(0.25, 0.25, 0.28)
	dc.SetLineWidth(3)
	dc.DrawCircle(cx, cy, r)
	dc.Stroke()
	ang := t/60*2*math.Pi - math.Pi/2
	dc.SetLineWidth(2)
	dc.DrawLine(cx, cy, cx+math.Cos(ang)*r*0.85, cy+math.Sin(ang)*r*0.85)
	dc.Stroke()

	return c.img, nil
}

// PendingText cycles through a short script, revealing characters over
// time. The text stays pending so the compositor keeps drawing it.
func (c *Canvas) PendingText() (string, image.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.now().Sub(c.start)
	anchor := image.Pt(int(float64(c.width)*0.06), int(float64(c.height)*0.58))

	idx, reveal := canvasScriptAt(elapsed)
	line := canvasScript[idx]
	if reveal <= 0 {
		return "", anchor, false
	}
	if reveal > len(line) {
		reveal = len(line)
	}
	return line[:reveal], anchor, true
}

// canvasScriptAt maps elapsed time to (line index, revealed chars).
func canvasScriptAt(elapsed time.Duration) (int, int) {
	pos := elapsed
	for i := 0; ; i = (i + 1) % len(canvasScript) {
		line := canvasScript[i]
		typing := time.Duration(len(line)) * time.Second / canvasTypeCharsSec
		if pos < typing {
			return i, 1 + int(pos*canvasTypeCharsSec/time.Second)
		}
		pos -= typing
		if pos < canvasLineHold {
			return i, len(line)
		}
		pos -= canvasLineHold
	}
}

// Pointer orbits the canvas center. Velocity is the analytic derivative
// of the orbit so prediction overlays have something real to work with.
func (c *Canvas) Pointer() PointerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().Sub(c.start).Seconds()
	w := float64(c.width)
	h := float64(c.height)
	r := math.Min(w, h) * 0.3
	omega := 2 * math.Pi / canvasOrbitPeriod.Seconds()
	theta := omega * t
	return PointerState{
		X:     w/2 + r*math.Cos(theta),
		Y:     h/2 + r*math.Sin(theta),
		VX:    -r * omega * math.Sin(theta),
		VY:    r * omega * math.Cos(theta),
		Valid: true,
	}
}
