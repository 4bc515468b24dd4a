package media

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
)

// jpegBufPool pools encode buffers; fallback and preview both encode at
// frame cadence.
var jpegBufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 64*1024))
	},
}

// EncodeJPEG encodes an image as JPEG with the specified quality (1-100).
// The returned slice is the caller's; the internal buffer is pooled.
func EncodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	buf := jpegBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		if buf.Cap() <= 512*1024 {
			jpegBufPool.Put(buf)
		}
	}()

	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// ScaleImage scales an image by the given factor (0.0-1.0) with
// nearest-neighbor sampling. Factors >= 1 return the input unchanged.
func ScaleImage(img *image.RGBA, factor float64) *image.RGBA {
	if factor >= 1.0 {
		return img
	}
	if factor <= 0 {
		factor = 0.1
	}

	bounds := img.Bounds()
	newWidth := max(int(float64(bounds.Dx())*factor), 1)
	newHeight := max(int(float64(bounds.Dy())*factor), 1)

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	xRatio := float64(bounds.Dx()) / float64(newWidth)
	yRatio := float64(bounds.Dy()) / float64(newHeight)

	for y := 0; y < newHeight; y++ {
		srcY := bounds.Min.Y + int(float64(y)*yRatio)
		for x := 0; x < newWidth; x++ {
			srcX := bounds.Min.X + int(float64(x)*xRatio)
			si := img.PixOffset(srcX, srcY)
			di := scaled.PixOffset(x, y)
			copy(scaled.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return scaled
}
