package source

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sync"
	"time"

	"github.com/fogleman/gg"
)

// NewCamera resolves a camera spec from configuration. "" and "none"
// disable the camera, "test" yields the animated test pattern, and
// anything else is treated as a still image path standing in for a
// device feed.
func NewCamera(spec string) (CameraSource, error) {
	switch spec {
	case "", "none":
		return nil, nil
	case "test":
		return NewTestPatternCamera(320), nil
	default:
		return NewFileCamera(spec)
	}
}

// testPatternCamera renders a moving disk over a gradient so the
// camera bubble visibly animates without hardware.
type testPatternCamera struct {
	mu    sync.Mutex
	size  int
	start time.Time
	now   func() time.Time
	img   *image.RGBA
	dc    *gg.Context
}

func NewTestPatternCamera(size int) CameraSource {
	if size <= 0 {
		size = 320
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	return &testPatternCamera{
		size:  size,
		start: time.Now(),
		now:   time.Now,
		img:   img,
		dc:    gg.NewContextForRGBA(img),
	}
}

func (c *testPatternCamera) Frame() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().Sub(c.start).Seconds()
	s := float64(c.size)

	grad := gg.NewLinearGradient(0, 0, s, s)
	grad.AddColorStop(0, colorFromHSV(math.Mod(t*20, 360)))
	grad.AddColorStop(1, colorFromHSV(math.Mod(t*20+120, 360)))
	c.dc.SetFillStyle(grad)
	c.dc.DrawRectangle(0, 0, s, s)
	c.dc.Fill()

	c.dc.SetRGBA(1, 1, 1, 0.85)
	c.dc.DrawCircle(s/2+math.Cos(t*2)*s*0.25, s/2+math.Sin(t*2)*s*0.25, s*0.12)
	c.dc.Fill()

	return c.img, nil
}

func (c *testPatternCamera) Close() error { return nil }

// fileCamera serves one decoded image forever. Useful for demos and
// for exercising the bubble pipeline in tests.
type fileCamera struct {
	img *image.RGBA
}

func NewFileCamera(path string) (CameraSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("camera image %s: %w", path, ErrDeviceUnavailable)
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("camera image %s: decode: %w", path, err)
	}
	rgba, ok := decoded.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(decoded.Bounds())
		draw.Draw(rgba, rgba.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	}
	return &fileCamera{img: rgba}, nil
}

func (c *fileCamera) Frame() (*image.RGBA, error) { return c.img, nil }

func (c *fileCamera) Close() error { return nil }

// colorFromHSV maps a hue in degrees to an RGB color at full
// saturation and value.
func colorFromHSV(hue float64) color.RGBA {
	h := hue / 60
	x := 1 - math.Abs(math.Mod(h, 2)-1)
	var r, g, b float64
	switch {
	case h < 1:
		r, g, b = 1, x, 0
	case h < 2:
		r, g, b = x, 1, 0
	case h < 3:
		r, g, b = 0, 1, x
	case h < 4:
		r, g, b = 0, x, 1
	case h < 5:
		r, g, b = x, 0, 1
	default:
		r, g, b = 1, 0, x
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
