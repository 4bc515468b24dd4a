//go:build !cgo || noaudio

package encode

import "errors"

func init() {
	newAudioEncoder = func(sampleRate, channels int) (audioEncoder, error) {
		return nil, errors.New("opus encoder not compiled in")
	}
}
