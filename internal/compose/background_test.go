package compose

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
)

func TestBackgroundSolid(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	dc := gg.NewContextForRGBA(img)

	NewBackground("solid", "#112233", "", "").Draw(dc, 10, 10)
	if got := img.RGBAAt(5, 5); got != (color.RGBA{0x11, 0x22, 0x33, 0xff}) {
		t.Fatalf("solid pixel = %v", got)
	}
}

func TestBackgroundGradientSpansStops(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	dc := gg.NewContextForRGBA(img)

	NewBackground("gradient", "#000000", "#ffffff", "").Draw(dc, 20, 20)
	near := img.RGBAAt(1, 1)
	far := img.RGBAAt(18, 18)
	if near.R >= far.R {
		t.Fatalf("gradient not increasing: near %v, far %v", near, far)
	}
}

func TestBackgroundImageCoverFit(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "bg.png")
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i] = 0xc8
		src.Pix[i+3] = 0xff
	}
	f, err := os.Create(srcPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	dc := gg.NewContextForRGBA(img)
	NewBackground("image", "#000000", "", srcPath).Draw(dc, 10, 10)

	if got := img.RGBAAt(5, 5); got.R < 0xc0 {
		t.Fatalf("cover-fit center = %v, want red-ish", got)
	}
}

func TestBackgroundMissingImageFallsBack(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	dc := gg.NewContextForRGBA(img)

	b := NewBackground("image", "#112233", "", filepath.Join(t.TempDir(), "absent.png"))
	b.Draw(dc, 10, 10)
	if got := img.RGBAAt(5, 5); got != (color.RGBA{0x11, 0x22, 0x33, 0xff}) {
		t.Fatalf("fallback pixel = %v", got)
	}
}
