package source

import (
	"image"
	"math"
	"testing"
	"time"
)

func canvasAt(t *testing.T, w, h int, elapsed time.Duration) *Canvas {
	t.Helper()
	c := NewCanvas(w, h)
	base := c.start
	c.now = func() time.Time { return base.Add(elapsed) }
	return c
}

func TestCanvasFrameRendersContent(t *testing.T) {
	c := canvasAt(t, 320, 240, 0)

	img, err := c.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if img == nil {
		t.Fatal("Frame returned nil image")
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 320, 240) {
		t.Fatalf("bounds = %v", got)
	}

	seen := map[[4]uint8]bool{}
	for y := 0; y < 240; y += 8 {
		for x := 0; x < 320; x += 8 {
			o := img.PixOffset(x, y)
			seen[[4]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3]}] = true
		}
	}
	if len(seen) < 3 {
		t.Fatalf("expected a multi-color render, saw %d distinct colors", len(seen))
	}
}

func TestCanvasFrameReusesBuffer(t *testing.T) {
	c := canvasAt(t, 64, 64, 0)
	a, _ := c.Frame()
	b, _ := c.Frame()
	if a != b {
		t.Fatal("Frame should reuse its internal buffer")
	}
}

func TestCanvasScriptAt(t *testing.T) {
	line0 := canvasScript[0]
	typing0 := time.Duration(len(line0)) * time.Second / canvasTypeCharsSec

	cases := []struct {
		elapsed    time.Duration
		wantLine   int
		wantReveal int
	}{
		{0, 0, 1},
		{time.Second, 0, 1 + canvasTypeCharsSec},
		{typing0 + time.Second, 0, len(line0)},
		{typing0 + canvasLineHold + time.Millisecond, 1, 1},
	}
	for _, tc := range cases {
		line, reveal := canvasScriptAt(tc.elapsed)
		if line != tc.wantLine || reveal != tc.wantReveal {
			t.Errorf("canvasScriptAt(%v) = (%d, %d), want (%d, %d)",
				tc.elapsed, line, reveal, tc.wantLine, tc.wantReveal)
		}
	}
}

func TestCanvasPendingTextAdvances(t *testing.T) {
	c := canvasAt(t, 320, 240, time.Second)
	text, anchor, ok := c.PendingText()
	if !ok {
		t.Fatal("expected pending text")
	}
	want := canvasScript[0][:1+canvasTypeCharsSec]
	if text != want {
		t.Fatalf("text = %q, want %q", text, want)
	}
	if anchor.X <= 0 || anchor.Y <= 0 {
		t.Fatalf("anchor = %v", anchor)
	}
}

func TestCanvasPointerOrbit(t *testing.T) {
	c := canvasAt(t, 320, 240, 0)

	st := c.Pointer()
	if !st.Valid {
		t.Fatal("pointer should be valid")
	}
	if math.Abs(st.X-(160+72)) > 1e-9 || math.Abs(st.Y-120) > 1e-9 {
		t.Fatalf("pointer at t=0 = (%v, %v)", st.X, st.Y)
	}

	wantSpeed := 72 * 2 * math.Pi / canvasOrbitPeriod.Seconds()
	if got := math.Hypot(st.VX, st.VY); math.Abs(got-wantSpeed) > 1e-9 {
		t.Fatalf("speed = %v, want %v", got, wantSpeed)
	}

	base := c.start
	c.now = func() time.Time { return base.Add(canvasOrbitPeriod / 4) }
	st2 := c.Pointer()
	if st2.X == st.X && st2.Y == st.Y {
		t.Fatal("pointer should move over time")
	}
}
