package record

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/takeonehq/recorder/internal/compose"
	"github.com/takeonehq/recorder/internal/source"
)

type canvasStub struct{ bounds image.Rectangle }

func (c *canvasStub) Kind() source.Kind          { return source.KindCanvas }
func (c *canvasStub) Frame() (*image.RGBA, error) { return nil, nil }
func (c *canvasStub) Bounds() image.Rectangle    { return c.bounds }
func (c *canvasStub) Close() error               { return nil }

type fakeDisplaySource struct {
	bounds image.Rectangle
	closes int
}

func (f *fakeDisplaySource) Kind() source.Kind           { return source.KindDisplay }
func (f *fakeDisplaySource) Frame() (*image.RGBA, error) { return nil, nil }
func (f *fakeDisplaySource) Bounds() image.Rectangle     { return f.bounds }
func (f *fakeDisplaySource) Close() error                { f.closes++; return nil }

type displayOpenerStub struct {
	fail   bool
	opened []*fakeDisplaySource
	ended  []func()
}

func (o *displayOpenerStub) install(t *testing.T) {
	t.Helper()
	prev := openDisplaySource
	openDisplaySource = func(index int, onEnded func()) (source.VisualSource, error) {
		if o.fail {
			return nil, source.ErrDeviceUnavailable
		}
		d := &fakeDisplaySource{bounds: image.Rect(0, 0, 640, 480)}
		o.opened = append(o.opened, d)
		o.ended = append(o.ended, onEnded)
		return d, nil
	}
	t.Cleanup(func() { openDisplaySource = prev })
}

func newSwitcherHarness(t *testing.T) (*SourceSwitcher, *compose.Compositor, *canvasStub, *[]string, *[]int) {
	t.Helper()
	canvas := &canvasStub{bounds: image.Rect(0, 0, 1280, 720)}
	canvasFrame := image.Rect(100, 60, 1180, 660)

	comp := compose.New(compose.Options{
		Width: 1920, Height: 1080, FPS: 30,
		Background: compose.NewBackground("solid", "#000000", "", ""),
		PointerColor: color.RGBA{A: 255},
	})
	comp.SetSource(canvas)
	comp.SetRecordingFrame(canvasFrame)

	advisories := &[]string{}
	gens := &[]int{}
	sw := NewSourceSwitcher(SwitcherConfig{
		Compositor:  comp,
		Canvas:      canvas,
		CanvasFrame: canvasFrame,
		PostEnded:   func(gen int) { *gens = append(*gens, gen) },
		Advise:      func(text string) { *advisories = append(*advisories, text) },
	})
	return sw, comp, canvas, advisories, gens
}

func TestFailedSwitchLeavesSourceUnchanged(t *testing.T) {
	sw, comp, canvas, _, _ := newSwitcherHarness(t)
	opener := &displayOpenerStub{fail: true}
	opener.install(t)

	err := sw.SwitchToDisplay(0)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if comp.Source() != source.VisualSource(canvas) {
		t.Fatal("active source changed after a failed switch")
	}
	if sw.ActiveKind() != source.KindCanvas {
		t.Fatalf("ActiveKind = %v", sw.ActiveKind())
	}
	if comp.RecordingFrame() != image.Rect(100, 60, 1180, 660) {
		t.Fatalf("recording frame disturbed: %v", comp.RecordingFrame())
	}
}

func TestSwitchActivatesDisplayAndReleasesPrevious(t *testing.T) {
	sw, comp, _, _, _ := newSwitcherHarness(t)
	opener := &displayOpenerStub{}
	opener.install(t)

	if err := sw.SwitchToDisplay(0); err != nil {
		t.Fatalf("SwitchToDisplay: %v", err)
	}
	if sw.ActiveKind() != source.KindDisplay {
		t.Fatalf("ActiveKind = %v", sw.ActiveKind())
	}
	if comp.Source() != source.VisualSource(opener.opened[0]) {
		t.Fatal("compositor not reading the new display")
	}
	if comp.RecordingFrame() != image.Rect(0, 0, 640, 480) {
		t.Fatalf("recording frame = %v, want display bounds", comp.RecordingFrame())
	}

	// A second switch replaces and releases the first capture.
	if err := sw.SwitchToDisplay(1); err != nil {
		t.Fatalf("second SwitchToDisplay: %v", err)
	}
	if opener.opened[0].closes != 1 {
		t.Fatalf("first display closed %d times, want 1", opener.opened[0].closes)
	}
	if opener.opened[1].closes != 0 {
		t.Fatal("second display should still be open")
	}
}

func TestStaleEndedEventIsIgnored(t *testing.T) {
	sw, comp, _, _, gens := newSwitcherHarness(t)
	opener := &displayOpenerStub{}
	opener.install(t)

	if err := sw.SwitchToDisplay(0); err != nil {
		t.Fatalf("switch 1: %v", err)
	}
	if err := sw.SwitchToDisplay(0); err != nil {
		t.Fatalf("switch 2: %v", err)
	}

	// The replaced display fires its ended callback late.
	opener.ended[0]()
	if len(*gens) != 1 {
		t.Fatalf("posted gens = %v", *gens)
	}
	if sw.HandleDisplayEnded((*gens)[0]) {
		t.Fatal("stale generation must not revert")
	}
	if sw.ActiveKind() != source.KindDisplay {
		t.Fatal("stale event tore down the live display")
	}

	// The live display ends for real.
	opener.ended[1]()
	if !sw.HandleDisplayEnded((*gens)[1]) {
		t.Fatal("live generation should revert")
	}
	if sw.ActiveKind() != source.KindCanvas {
		t.Fatal("not back on canvas")
	}
	if comp.RecordingFrame() != image.Rect(100, 60, 1180, 660) {
		t.Fatalf("canvas frame not restored: %v", comp.RecordingFrame())
	}
	if opener.opened[1].closes != 1 {
		t.Fatalf("live display closed %d times, want 1", opener.opened[1].closes)
	}
}

func TestEndedRevertEmitsAdvisory(t *testing.T) {
	sw, _, _, advisories, gens := newSwitcherHarness(t)
	opener := &displayOpenerStub{}
	opener.install(t)

	if err := sw.SwitchToDisplay(0); err != nil {
		t.Fatalf("switch: %v", err)
	}
	opener.ended[0]()
	sw.HandleDisplayEnded((*gens)[0])

	if len(*advisories) != 1 {
		t.Fatalf("advisories = %v", *advisories)
	}
}

func TestSystemAudioAbsenceIsAdvisory(t *testing.T) {
	canvas := &canvasStub{bounds: image.Rect(0, 0, 1280, 720)}
	comp := compose.New(compose.Options{
		Width: 1920, Height: 1080,
		Background: compose.NewBackground("solid", "#000000", "", ""),
	})
	comp.SetSource(canvas)

	advisories := []string{}
	sw := NewSourceSwitcher(SwitcherConfig{
		Compositor:      comp,
		Canvas:          canvas,
		CanvasFrame:     canvas.Bounds(),
		WantSystemAudio: true, // requested, but no mix graph exists
		Advise:          func(text string) { advisories = append(advisories, text) },
	})
	opener := &displayOpenerStub{}
	opener.install(t)

	if err := sw.SwitchToDisplay(0); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if len(advisories) != 1 {
		t.Fatalf("advisories = %v, want one system-audio notice", advisories)
	}
}

func TestCloseReleasesDisplay(t *testing.T) {
	sw, _, _, _, _ := newSwitcherHarness(t)
	opener := &displayOpenerStub{}
	opener.install(t)

	if err := sw.SwitchToDisplay(0); err != nil {
		t.Fatalf("switch: %v", err)
	}
	sw.Close()
	if opener.opened[0].closes != 1 {
		t.Fatalf("closes = %d", opener.opened[0].closes)
	}
	if sw.ActiveKind() != source.KindCanvas {
		t.Fatal("Close should leave the canvas active")
	}
}
