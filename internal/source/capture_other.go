//go:build !windows

package source

import "fmt"

func newPlatformCapturer(displayIndex int) (ScreenCapturer, error) {
	return nil, fmt.Errorf("screen capture not supported on this platform: %w", ErrDeviceUnavailable)
}
