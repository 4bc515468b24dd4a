package audio

import "errors"

// The canonical mix format. Every track entering the graph and every
// chunk leaving it uses this format; conversion happens at the edges.
const (
	SampleRate      = 48000
	Channels        = 1
	PeriodMS        = 20
	SamplesPerChunk = SampleRate / 1000 * PeriodMS
)

// ErrAudioDisabled is returned by device operations in builds compiled
// without cgo or with the noaudio tag.
var ErrAudioDisabled = errors.New("audio was disabled during compilation")

type DeviceType string

const (
	DeviceTypeCapture  DeviceType = "capture"
	DeviceTypePlayback DeviceType = "playback"
)

type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	IsMonitor bool   `json:"is_monitor,omitempty"`
}

type Devices struct {
	Capture  []Device `json:"capture"`
	Playback []Device `json:"playback"`
}

// Track is a live source of 20 ms mono s16 chunks. Start delivers every
// chunk to onChunk from the track's own delivery goroutine; the callback
// must only append to buffers, never block for long, and never drive
// state transitions.
type Track interface {
	Start(onChunk func(chunk []int16)) error
	Stop()
}
