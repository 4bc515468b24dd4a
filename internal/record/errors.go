package record

import (
	"github.com/takeonehq/recorder/internal/encode"
	"github.com/takeonehq/recorder/internal/source"
)

// Sentinels are declared in the packages that raise them; this package
// re-exports the same values so session policy reads against one
// vocabulary. errors.Is works across both names.
var (
	// ErrUnsupportedCodec: no video backend accepted any candidate
	// configuration. The session continues fallback-only.
	ErrUnsupportedCodec = encode.ErrUnsupportedCodec

	// ErrDeviceUnavailable: camera, microphone or display denied or
	// absent. Degrades the feature, never the session.
	ErrDeviceUnavailable = source.ErrDeviceUnavailable

	// ErrEncoderRuntime: mid-session encode or mux failure. The
	// fallback output is kept at stop.
	ErrEncoderRuntime = encode.ErrEncoderRuntime

	// ErrNoOutputProduced: both paths failed or produced nothing.
	// Terminal and user-visible.
	ErrNoOutputProduced = encode.ErrNoOutputProduced
)
