package media

import "encoding/binary"

// BuildOpusHead assembles the OpusHead identification header (RFC 7845
// §5.1) carried as Matroska CodecPrivate for A_OPUS tracks. Pre-skip is
// zero, which is what ffmpeg and libopus handle best in practice.
func BuildOpusHead(channels int, sampleRate uint32) []byte {
	b := make([]byte, 19)
	copy(b, "OpusHead")
	b[8] = 1 // version
	b[9] = byte(channels)
	binary.LittleEndian.PutUint16(b[10:], 0)          // pre-skip
	binary.LittleEndian.PutUint32(b[12:], sampleRate) // original sample rate
	binary.LittleEndian.PutUint16(b[16:], 0)          // output gain
	b[18] = 0 // mapping family: mono/stereo
	return b
}
