//go:build cgo && !noaudio

package encode

import (
	"github.com/companyzero/gopus"
)

func init() {
	newAudioEncoder = newGopusEncoder
}

type gopusEncoder struct {
	enc *gopus.Encoder
	buf []byte
}

func newGopusEncoder(sampleRate, channels int) (audioEncoder, error) {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, err
	}
	enc.SetBitrate(audioBitrateBps)
	return &gopusEncoder{
		enc: enc,
		buf: make([]byte, 4096),
	}, nil
}

func (g *gopusEncoder) Encode(pcm []int16) ([]byte, error) {
	return g.enc.Encode(pcm, len(pcm), g.buf)
}
