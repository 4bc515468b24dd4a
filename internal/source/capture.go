package source

import "image"

// ScreenCapturer grabs raw frames from a physical display. A nil image
// with a nil error means no frame was available at this instant; the
// caller tries again on the next tick.
type ScreenCapturer interface {
	Capture() (*image.RGBA, error)
	ScreenBounds() (width, height int, err error)
	Close() error
}

// NewScreenCapturer opens the platform capturer for the given display
// index. Platforms without an implementation return
// ErrDeviceUnavailable.
func NewScreenCapturer(displayIndex int) (ScreenCapturer, error) {
	return newPlatformCapturer(displayIndex)
}
