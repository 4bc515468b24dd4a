package encode

import "github.com/takeonehq/recorder/internal/audio"

// ProbeVideoSupport walks the candidate list against the registered
// backends the way Start does, reporting the first accepted candidate.
// Used by preflight; the opened backend is closed immediately.
func ProbeVideoSupport(width, height, fps, bitrateBps int) (string, bool) {
	if bitrateBps <= 0 {
		bitrateBps = DeriveBitrate(width, height)
	}
	for _, cand := range h264Candidates() {
		backend, err := probeRegistered(BackendConfig{
			Candidate:  cand,
			Width:      width,
			Height:     height,
			FPS:        fps,
			BitrateBps: bitrateBps,
		})
		if err != nil || backend == nil {
			continue
		}
		name := backend.Name()
		_ = backend.Close()
		return cand.String() + " via " + name, true
	}
	return "", false
}

// AudioEncoderAvailable reports whether this build carries an Opus
// encoder for the primary path. Builds without one stub the constructor
// to fail, so availability means actually constructing one.
func AudioEncoderAvailable() bool {
	if newAudioEncoder == nil {
		return false
	}
	_, err := newAudioEncoder(audio.SampleRate, audio.Channels)
	return err == nil
}
