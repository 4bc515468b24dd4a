package encode

// audioBitrateBps is the Opus target for the mixed mono track.
const audioBitrateBps = 96_000

// audioEncoder turns one PCM chunk into one Opus packet. The encoder owns
// its scratch buffer; the returned slice is valid until the next Encode.
type audioEncoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// newAudioEncoder is set by the build-selected Opus implementation. Builds
// without one leave the primary path video-only.
var newAudioEncoder func(sampleRate, channels int) (audioEncoder, error)
