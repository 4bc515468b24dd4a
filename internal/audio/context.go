package audio

import (
	"fmt"
	"sync"
)

// dataProc receives raw device frames. Mirrors the malgo callback shape
// so the real context can pass it through unchanged.
type dataProc func(outSamples, inSamples []byte, frameCount uint32)

type captureDevice interface {
	Start() error
	Stop() error
	Uninit()
}

// audioContext abstracts the audio backend so the mix graph can be
// exercised without hardware. The real implementation is selected at
// build time via newAudioContext.
type audioContext interface {
	name() string
	initCapture(deviceID string, cb dataProc) (captureDevice, error)
	initLoopback(deviceID string, cb dataProc) (captureDevice, error)
	free() error
}

// newAudioContext is set by an init() in the build-selected context
// implementation (malgo, or the stub for noaudio builds).
var newAudioContext func() (audioContext, error)

// deviceTrack adapts a captureDevice into a Track, re-chunking whatever
// frame counts the device delivers into exact 20 ms chunks.
type deviceTrack struct {
	dev captureDevice

	mu      sync.Mutex
	pending []int16
	emit    func([]int16)
	stopped bool
}

func openCaptureTrack(actx audioContext, loopback bool, deviceID string) (*deviceTrack, error) {
	t := &deviceTrack{pending: make([]int16, 0, SamplesPerChunk*2)}

	var (
		dev captureDevice
		err error
	)
	if loopback {
		dev, err = actx.initLoopback(deviceID, t.onFrames)
	} else {
		dev, err = actx.initCapture(deviceID, t.onFrames)
	}
	if err != nil {
		return nil, err
	}
	t.dev = dev
	return t, nil
}

func (t *deviceTrack) onFrames(_, inSamples []byte, frameCount uint32) {
	readSize := int(frameCount) * 2 * Channels
	if len(inSamples) < readSize {
		readSize = len(inSamples)
	}

	t.mu.Lock()
	t.pending = BytesToS16(inSamples[:readSize], t.pending)
	var full [][]int16
	for len(t.pending) >= SamplesPerChunk {
		chunk := make([]int16, SamplesPerChunk)
		copy(chunk, t.pending[:SamplesPerChunk])
		t.pending = t.pending[:copy(t.pending, t.pending[SamplesPerChunk:])]
		full = append(full, chunk)
	}
	emit := t.emit
	t.mu.Unlock()

	if emit == nil {
		return
	}
	for _, chunk := range full {
		emit(chunk)
	}
}

func (t *deviceTrack) Start(onChunk func([]int16)) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return fmt.Errorf("audio: track already stopped")
	}
	t.emit = onChunk
	t.mu.Unlock()
	return t.dev.Start()
}

func (t *deviceTrack) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.emit = nil
	t.mu.Unlock()

	_ = t.dev.Stop()
	t.dev.Uninit()
}
