package compose

import "image"

// BestFitFrame returns the largest aspectW:aspectH rectangle that fits
// inside avail, centered. This is the recording frame the operator
// positions during preview.
func BestFitFrame(avail image.Rectangle, aspectW, aspectH int) image.Rectangle {
	if aspectW <= 0 || aspectH <= 0 || avail.Dx() <= 0 || avail.Dy() <= 0 {
		return avail
	}
	w := avail.Dx()
	h := w * aspectH / aspectW
	if h > avail.Dy() {
		h = avail.Dy()
		w = h * aspectW / aspectH
	}
	x := avail.Min.X + (avail.Dx()-w)/2
	y := avail.Min.Y + (avail.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// FitRect returns the largest rectangle with the source aspect that
// fits inside dst, centered. Used to letterbox display captures.
func FitRect(srcW, srcH int, dst image.Rectangle) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dst.Dx() <= 0 || dst.Dy() <= 0 {
		return dst
	}
	w := dst.Dx()
	h := w * srcH / srcW
	if h > dst.Dy() {
		h = dst.Dy()
		w = h * srcW / srcH
	}
	x := dst.Min.X + (dst.Dx()-w)/2
	y := dst.Min.Y + (dst.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// CoverCrop returns the centered subrectangle of a srcW×srcH image
// whose aspect matches dstW:dstH. Used to fill the camera bubble
// without distortion.
func CoverCrop(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rect(0, 0, srcW, srcH)
	}
	w := srcW
	h := w * dstH / dstW
	if h > srcH {
		h = srcH
		w = h * dstW / dstH
	}
	x := (srcW - w) / 2
	y := (srcH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// SnapBubble clamps a bubble center so the full circle of radius r
// (plus margin) stays inside frame. Frames smaller than the bubble
// collapse to the frame center.
func SnapBubble(center image.Point, r, margin int, frame image.Rectangle) image.Point {
	reach := r + margin
	minX := frame.Min.X + reach
	maxX := frame.Max.X - reach
	minY := frame.Min.Y + reach
	maxY := frame.Max.Y - reach
	if minX > maxX {
		center.X = frame.Min.X + frame.Dx()/2
	} else {
		center.X = clampInt(center.X, minX, maxX)
	}
	if minY > maxY {
		center.Y = frame.Min.Y + frame.Dy()/2
	} else {
		center.Y = clampInt(center.Y, minY, maxY)
	}
	return center
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FrameMap is the affine mapping from recording-frame coordinates in
// the source onto an output rectangle.
type FrameMap struct {
	srcMin image.Point
	dstMin image.Point
	sx, sy float64
}

func NewFrameMap(src, dst image.Rectangle) FrameMap {
	m := FrameMap{srcMin: src.Min, dstMin: dst.Min, sx: 1, sy: 1}
	if src.Dx() > 0 {
		m.sx = float64(dst.Dx()) / float64(src.Dx())
	}
	if src.Dy() > 0 {
		m.sy = float64(dst.Dy()) / float64(src.Dy())
	}
	return m
}

// Point maps a source coordinate into output space.
func (m FrameMap) Point(x, y float64) (float64, float64) {
	return float64(m.dstMin.X) + (x-float64(m.srcMin.X))*m.sx,
		float64(m.dstMin.Y) + (y-float64(m.srcMin.Y))*m.sy
}

// Scale reports the horizontal scale factor, used to size overlays
// drawn in source units.
func (m FrameMap) Scale() float64 { return m.sx }
