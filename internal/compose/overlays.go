package compose

import (
	"image"
	"time"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/takeonehq/recorder/internal/source"
)

// Pointer prediction lead. Rendering lags sampling by roughly one
// tick; extrapolating keeps the highlight under the cursor.
const pointerLead = 18 * time.Millisecond

const pointerRadius = 16.0

// drawContentShadow paints stacked translucent rounded rects under the
// content card. Recording uses fewer, tighter layers than previewing.
func (c *Compositor) drawContentShadow(content image.Rectangle, radius float64, recording bool) {
	layers, offset, alpha := 4, 5.0, 0.09
	if recording {
		layers, offset, alpha = 2, 3.0, 0.12
	}
	for i := layers; i >= 1; i-- {
		grow := float64(i) * 2
		c.dc.SetRGBA(0, 0, 0, alpha)
		c.dc.DrawRoundedRectangle(
			float64(content.Min.X)-grow,
			float64(content.Min.Y)-grow+offset,
			float64(content.Dx())+2*grow,
			float64(content.Dy())+2*grow,
			radius+grow)
		c.dc.Fill()
	}
}

// drawSourceFrame scales the recording-frame subregion of frame into
// dst. Aspect ratios of the two rectangles match by construction, so
// nothing stretches.
func (c *Compositor) drawSourceFrame(frame *image.RGBA, dst image.Rectangle) {
	srcRect := c.recFrame.Intersect(frame.Bounds())
	if srcRect.Empty() || dst.Empty() {
		return
	}
	if c.contentBuf == nil ||
		c.contentBuf.Bounds().Dx() != dst.Dx() || c.contentBuf.Bounds().Dy() != dst.Dy() {
		c.contentBuf = image.NewRGBA(image.Rect(0, 0, dst.Dx(), dst.Dy()))
	}
	xdraw.ApproxBiLinear.Scale(c.contentBuf, c.contentBuf.Bounds(), frame, srcRect, xdraw.Src, nil)
	c.dc.DrawImage(c.contentBuf, dst.Min.X, dst.Min.Y)
}

// drawPendingText renders an in-progress edit the surface has not
// rasterized yet, wrapped at the content width. The rounded clip from
// the content pass is still active, which handles vertical overflow.
func (c *Compositor) drawPendingText(text string, anchor image.Point, fm FrameMap, content image.Rectangle, now time.Time) {
	size := 22 * fm.Scale()
	if size < 8 {
		size = 8
	}
	face, err := Face(size)
	if err != nil {
		return
	}
	dc := c.dc
	dc.SetFontFace(face)

	ox, oy := fm.Point(float64(anchor.X), float64(anchor.Y))
	width := float64(content.Max.X) - ox - 12
	if width < 40 {
		return
	}

	dc.SetRGB(0.13, 0.14, 0.18)
	dc.DrawStringWrapped(text, ox, oy, 0, 0, width, 1.4, gg.AlignLeft)

	if (now.UnixMilli()/500)%2 == 0 {
		lines := dc.WordWrap(text, width)
		if len(lines) == 0 {
			return
		}
		lw, _ := dc.MeasureString(lines[len(lines)-1])
		lh := dc.FontHeight()
		cy := oy + float64(len(lines)-1)*lh*1.4
		dc.DrawRectangle(ox+lw+2, cy, 2.5, lh)
		dc.Fill()
	}
}

// drawCameraBubble draws the circular webcam inset centered at
// (cx, cy) in output coordinates.
func (c *Compositor) drawCameraBubble(cam *image.RGBA, cx, cy float64, size int, mirror bool) {
	if size <= 0 {
		return
	}
	crop := CoverCrop(cam.Bounds().Dx(), cam.Bounds().Dy(), size, size)
	if c.bubbleBuf == nil || c.bubbleBuf.Bounds().Dx() != size {
		c.bubbleBuf = image.NewRGBA(image.Rect(0, 0, size, size))
	}
	xdraw.ApproxBiLinear.Scale(c.bubbleBuf, c.bubbleBuf.Bounds(), cam, crop, xdraw.Src, nil)

	dc := c.dc
	r := float64(size) / 2

	dc.SetRGBA(0, 0, 0, 0.25)
	dc.DrawCircle(cx, cy+2, r+3)
	dc.Fill()

	dc.DrawCircle(cx, cy, r)
	dc.Clip()
	x0 := int(cx - r)
	y0 := int(cy - r)
	if mirror {
		dc.Push()
		dc.ScaleAbout(-1, 1, cx, cy)
		dc.DrawImage(c.bubbleBuf, x0, y0)
		dc.Pop()
	} else {
		dc.DrawImage(c.bubbleBuf, x0, y0)
	}
	dc.ResetClip()

	dc.SetRGBA(1, 1, 1, 0.9)
	dc.SetLineWidth(2.5)
	dc.DrawCircle(cx, cy, r)
	dc.Stroke()
}

// drawPointer extrapolates the pointer by the prediction lead and
// draws the highlight if the predicted point is inside the recording
// frame.
func (c *Compositor) drawPointer(st source.PointerState, fm FrameMap) {
	if !st.Valid {
		return
	}
	lead := pointerLead.Seconds()
	px := st.X + st.VX*lead
	py := st.Y + st.VY*lead
	if px < float64(c.recFrame.Min.X) || px >= float64(c.recFrame.Max.X) ||
		py < float64(c.recFrame.Min.Y) || py >= float64(c.recFrame.Max.Y) {
		return
	}

	ox, oy := fm.Point(px, py)
	col := c.opts.PointerColor
	dc := c.dc
	dc.SetRGBA255(int(col.R), int(col.G), int(col.B), 90)
	dc.DrawCircle(ox, oy, pointerRadius)
	dc.Fill()
	dc.SetRGBA255(int(col.R), int(col.G), int(col.B), 220)
	dc.DrawCircle(ox, oy, 4)
	dc.Fill()
}

// drawTitleBanner measures the title and draws a pill banner in the
// configured corner.
func (c *Compositor) drawTitleBanner(text, corner string) {
	face, err := Face(20)
	if err != nil {
		return
	}
	dc := c.dc
	dc.SetFontFace(face)

	tw, th := dc.MeasureString(text)
	padX, padY := 16.0, 9.0
	bw, bh := tw+2*padX, th+2*padY
	margin := 24.0
	w := float64(c.opts.Width)
	h := float64(c.opts.Height)

	var x, y float64
	switch corner {
	case "top-left":
		x, y = margin, margin
	case "top-right":
		x, y = w-margin-bw, margin
	case "bottom-right":
		x, y = w-margin-bw, h-margin-bh
	default: // bottom-left
		x, y = margin, h-margin-bh
	}

	dc.SetRGBA(0, 0, 0, 0.3)
	dc.DrawRoundedRectangle(x+2, y+3, bw, bh, bh/2)
	dc.Fill()
	dc.SetRGBA(0.07, 0.09, 0.16, 0.85)
	dc.DrawRoundedRectangle(x, y, bw, bh, bh/2)
	dc.Fill()
	dc.SetRGBA(1, 1, 1, 0.22)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, bw, bh, bh/2)
	dc.Stroke()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, x+bw/2, y+bh/2, 0.5, 0.5)
}
