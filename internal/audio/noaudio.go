//go:build !cgo || noaudio

package audio

import (
	"context"
	"time"
)

func init() {
	newAudioContext = func() (audioContext, error) {
		return nil, ErrAudioDisabled
	}
}

func ListDevices() (Devices, error) {
	return Devices{}, ErrAudioDisabled
}

func MicCheck(ctx context.Context, deviceID string, d time.Duration) ([]byte, float64, error) {
	return nil, 0, ErrAudioDisabled
}
