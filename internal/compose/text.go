package compose

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	fontOnce   sync.Once
	fontParsed *opentype.Font
	fontErr    error

	faceMu    sync.Mutex
	faceCache = map[float64]font.Face{}
)

// Face returns a cached Go Regular face at the given point size. Faces
// are shared; font.Face drawing is serialized by the compositor lock.
func Face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontParsed, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}

	faceMu.Lock()
	defer faceMu.Unlock()
	if f, ok := faceCache[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(fontParsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	faceCache[size] = f
	return f, nil
}
