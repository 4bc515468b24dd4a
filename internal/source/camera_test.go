package source

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewCameraDisabled(t *testing.T) {
	for _, spec := range []string{"", "none"} {
		cam, err := NewCamera(spec)
		if cam != nil || err != nil {
			t.Fatalf("NewCamera(%q) = (%v, %v), want (nil, nil)", spec, cam, err)
		}
	}
}

func TestTestPatternCameraAnimates(t *testing.T) {
	cam := NewTestPatternCamera(64).(*testPatternCamera)
	base := cam.start
	cam.now = func() time.Time { return base }

	first, err := cam.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	snapshot := make([]byte, len(first.Pix))
	copy(snapshot, first.Pix)

	cam.now = func() time.Time { return base.Add(500 * time.Millisecond) }
	second, err := cam.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if bytes.Equal(snapshot, second.Pix) {
		t.Fatal("test pattern should change between instants")
	}
}

func TestFileCameraLoadsImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	src.SetRGBA(2, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "cam.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	cam, err := NewCamera(path)
	if err != nil {
		t.Fatalf("NewCamera: %v", err)
	}
	defer cam.Close()

	img, err := cam.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if img.Bounds() != src.Bounds() {
		t.Fatalf("bounds = %v, want %v", img.Bounds(), src.Bounds())
	}
	if got := img.RGBAAt(2, 3); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("pixel = %v", got)
	}
}

func TestNewCameraMissingFile(t *testing.T) {
	_, err := NewCamera(filepath.Join(t.TempDir(), "absent.png"))
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}
