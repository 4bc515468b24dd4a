package source

import (
	"errors"
	"image"
)

// ErrDeviceUnavailable is returned when a display, camera or similar
// capture device is denied or absent. It degrades a feature, never the
// whole session.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Kind names the active visual source family.
type Kind string

const (
	KindCanvas  Kind = "canvas"
	KindDisplay Kind = "display"
)

// VisualSource is a live visual input the compositor reads every
// accepted tick. Frame returns the most recent frame; a nil image with
// a nil error means no frame is available right now and the tick skips
// drawing the source. The returned image is valid until the next Frame
// call.
type VisualSource interface {
	Kind() Kind
	Frame() (*image.RGBA, error)
	Bounds() image.Rectangle
	Close() error
}

// TextEditor is implemented by drawing surfaces that carry an
// in-progress text edit not yet rasterized into their own pixels. The
// compositor draws such text manually.
type TextEditor interface {
	PendingText() (text string, anchor image.Point, ok bool)
}

// CameraSource supplies webcam frames for the bubble overlay.
type CameraSource interface {
	Frame() (*image.RGBA, error)
	Close() error
}

// PointerState is one pointer sample. Velocity is in pixels per second,
// in source coordinates.
type PointerState struct {
	X, Y   float64
	VX, VY float64
	Valid  bool
}

// PointerProvider samples the pointer for the highlight overlay.
type PointerProvider interface {
	Pointer() PointerState
}
