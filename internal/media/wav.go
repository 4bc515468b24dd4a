package media

import (
	"bytes"
	"fmt"
	"io"
)

// WriteWAV writes interleaved s16 little-endian PCM as a RIFF/WAVE file.
// Used by the device check to give the operator something to listen to.
func WriteWAV(w io.Writer, pcm []byte, channels, sampleRate int) error {
	if channels <= 0 {
		return fmt.Errorf("wav: channels must be positive, got %d", channels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("wav: sample rate must be positive, got %d", sampleRate)
	}

	blockAlign := channels * 2
	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	le32(&hdr, uint32(36+len(pcm)))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	le32(&hdr, 16)
	le16(&hdr, 1) // WAVE_FORMAT_PCM
	le16(&hdr, uint16(channels))
	le32(&hdr, uint32(sampleRate))
	le32(&hdr, uint32(sampleRate*blockAlign))
	le16(&hdr, uint16(blockAlign))
	le16(&hdr, 16)
	hdr.WriteString("data")
	le32(&hdr, uint32(len(pcm)))

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
