package encode

import "sync"

// i420Pool pools I420 buffers for a fixed resolution.
var i420Pool = struct {
	pool sync.Pool
	w, h int
	mu   sync.Mutex
}{}

func getI420Buffer(w, h int) []byte {
	size := w*h + w*h/2 // Y + U + V
	i420Pool.mu.Lock()
	i420Pool.w = w
	i420Pool.h = h
	i420Pool.mu.Unlock()

	for {
		v := i420Pool.pool.Get()
		if v == nil {
			break
		}
		buf := v.([]byte)
		// Verify pooled buffer is correct size. The pool can be contaminated
		// if callers convert different resolutions concurrently.
		if len(buf) == size {
			return buf
		}
	}
	return make([]byte, size)
}

func putI420Buffer(buf []byte) {
	// Best-effort: only pool buffers for the current resolution.
	i420Pool.mu.Lock()
	w, h := i420Pool.w, i420Pool.h
	i420Pool.mu.Unlock()
	if w > 0 && h > 0 {
		expected := w*h + w*h/2
		if len(buf) != expected {
			return
		}
	}
	i420Pool.pool.Put(buf)
}

// rgbaToI420 converts RGBA pixel data to planar I420 for H264 encoding.
// I420 layout: [Y plane: w*h] [U plane: w*h/4] [V plane: w*h/4].
// Dimensions must be even; the config validator enforces that.
//
// Uses BT.601 coefficients with fixed-point integer arithmetic.
// For 0-255 RGB input, Y is provably in [16,235] and U/V in [16,240],
// so no clamping is needed.
//
// Split into two passes (Y-only, then chroma-only) for better cache
// locality and to eliminate the per-pixel chroma branch from the hot
// Y loop.
func rgbaToI420(rgba []byte, width, height, stride int) []byte {
	expectedSize := height * stride
	if len(rgba) < expectedSize {
		i420 := getI420Buffer(width, height)
		clear(i420) // return zeroed buffer on short input
		return i420
	}

	i420 := getI420Buffer(width, height)
	yPlane := i420[:width*height]
	uPlane := i420[width*height : width*height+width*height/4]
	vPlane := i420[width*height+width*height/4:]

	// Pass 1: Y plane — tight loop, no chroma branch, no clamping needed.
	// Process 4 pixels per iteration to reduce loop overhead.
	w4 := width &^ 3 // round down to multiple of 4
	for y := 0; y < height; y++ {
		rowStart := y * stride
		row := rgba[rowStart : rowStart+width*4]
		yOff := y * width
		yRow := yPlane[yOff : yOff+width]

		x := 0
		for ; x < w4; x += 4 {
			pi := x * 4
			yRow[x] = byte((66*int(row[pi])+129*int(row[pi+1])+25*int(row[pi+2])+128)>>8 + 16)
			yRow[x+1] = byte((66*int(row[pi+4])+129*int(row[pi+5])+25*int(row[pi+6])+128)>>8 + 16)
			yRow[x+2] = byte((66*int(row[pi+8])+129*int(row[pi+9])+25*int(row[pi+10])+128)>>8 + 16)
			yRow[x+3] = byte((66*int(row[pi+12])+129*int(row[pi+13])+25*int(row[pi+14])+128)>>8 + 16)
		}
		for ; x < width; x++ {
			pi := x * 4
			yRow[x] = byte((66*int(row[pi])+129*int(row[pi+1])+25*int(row[pi+2])+128)>>8 + 16)
		}
	}

	// Pass 2: chroma planes — even rows only, top-left sample per 2x2 block.
	cw := width / 2
	for y := 0; y < height; y += 2 {
		rowStart := y * stride
		row := rgba[rowStart : rowStart+width*4]
		cOff := (y / 2) * cw
		uRow := uPlane[cOff : cOff+cw]
		vRow := vPlane[cOff : cOff+cw]

		for x := 0; x < width; x += 2 {
			pi := x * 4
			r := int(row[pi])
			g := int(row[pi+1])
			b := int(row[pi+2])

			uRow[x/2] = byte((-38*r-74*g+112*b+128)>>8 + 128)
			vRow[x/2] = byte((112*r-94*g-18*b+128)>>8 + 128)
		}
	}
	return i420
}
