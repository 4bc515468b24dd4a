package encode

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnsupportedCodec means no candidate configuration was accepted
	// by any registered video backend. The session continues fallback-only.
	ErrUnsupportedCodec = errors.New("no supported codec configuration")

	// ErrEncoderRuntime wraps encode or mux failures after a successful
	// start. The fallback path is kept at stop.
	ErrEncoderRuntime = errors.New("encoder runtime failure")

	// ErrNoOutputProduced means the encoder was never started or muxed
	// zero usable frames. An empty blob is never returned.
	ErrNoOutputProduced = errors.New("no output produced")
)

// Candidate is one codec configuration tried during Start, in order of
// decreasing preference.
type Candidate struct {
	Codec   string
	Profile string
	Level   string
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %s@L%s", c.Codec, c.Profile, c.Level)
}

// BackendConfig is a candidate bound to the session's actual dimensions,
// frame rate and bitrate. Backends reject configs they cannot honor.
type BackendConfig struct {
	Candidate
	Width      int
	Height     int
	FPS        int
	BitrateBps int
}

// VideoBackend encodes I420 frames to Annex-B H.264. Implementations are
// single-stream; Encode is called from one goroutine in submission order.
type VideoBackend interface {
	// Encode returns the Annex-B bitstream for one frame, or nil with a
	// nil error when the backend skipped the frame.
	Encode(i420 []byte, forceKeyframe bool) ([]byte, error)
	Close() error
	Name() string
}

// CapabilityProbe opens a backend for one candidate configuration. A nil
// backend or an error rejects the candidate and the next one is tried.
type CapabilityProbe func(cfg BackendConfig) (VideoBackend, error)

type backendFactory func(cfg BackendConfig) (VideoBackend, error)

var (
	videoFactoriesMu sync.Mutex
	videoFactories   []backendFactory
)

// registerVideoFactory is called from init() in build-selected backend
// files. The default build registers nothing and the probe reports no
// candidate, which is the supported fallback-only mode.
func registerVideoFactory(factory backendFactory) {
	videoFactoriesMu.Lock()
	defer videoFactoriesMu.Unlock()
	videoFactories = append(videoFactories, factory)
}

// probeRegistered is the default CapabilityProbe: first registered
// factory that accepts the config wins.
func probeRegistered(cfg BackendConfig) (VideoBackend, error) {
	videoFactoriesMu.Lock()
	factories := append([]backendFactory(nil), videoFactories...)
	videoFactoriesMu.Unlock()

	var lastErr error
	for _, factory := range factories {
		backend, err := factory(cfg)
		if err == nil && backend != nil {
			return backend, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no video backend compiled in")
}
