package compose

import (
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/takeonehq/recorder/internal/logging"
)

var defaultBackdrop = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}

// Background paints the backdrop behind the content region: a solid
// color, a two-stop linear gradient, or an image cover-fit to the
// surface. The image wins only if it decoded successfully at
// construction; otherwise the color modes take over.
type Background struct {
	mode string
	c1   color.RGBA
	c2   color.RGBA
	img  *image.RGBA

	scaled *image.RGBA
}

func NewBackground(mode, color1, color2, imagePath string) *Background {
	b := &Background{
		mode: mode,
		c1:   ParseHexColorDefault(color1, defaultBackdrop),
		c2:   ParseHexColorDefault(color2, defaultBackdrop),
	}
	if mode == "image" && imagePath != "" {
		img, err := loadRGBA(imagePath)
		if err != nil {
			logging.L("compose").Warn("background image unavailable, using colors",
				"path", imagePath, logging.KeyError, err)
		} else {
			b.img = img
		}
	}
	return b
}

func (b *Background) Draw(dc *gg.Context, w, h int) {
	if b.img != nil {
		b.ensureScaled(w, h)
		dc.DrawImage(b.scaled, 0, 0)
		return
	}
	if b.mode == "gradient" {
		grad := gg.NewLinearGradient(0, 0, float64(w), float64(h))
		grad.AddColorStop(0, b.c1)
		grad.AddColorStop(1, b.c2)
		dc.SetFillStyle(grad)
		dc.DrawRectangle(0, 0, float64(w), float64(h))
		dc.Fill()
		return
	}
	dc.SetColor(b.c1)
	dc.Clear()
}

// ensureScaled cover-fits the source image to the surface size. The
// result is cached; surfaces change size only between sessions.
func (b *Background) ensureScaled(w, h int) {
	if b.scaled != nil && b.scaled.Bounds().Dx() == w && b.scaled.Bounds().Dy() == h {
		return
	}
	crop := CoverCrop(b.img.Bounds().Dx(), b.img.Bounds().Dy(), w, h)
	b.scaled = image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(b.scaled, b.scaled.Bounds(), b.img, crop, xdraw.Src, nil)
}

func loadRGBA(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	if rgba, ok := decoded.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(decoded.Bounds())
	stddraw.Draw(rgba, rgba.Bounds(), decoded, decoded.Bounds().Min, stddraw.Src)
	return rgba, nil
}
