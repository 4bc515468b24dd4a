package encode

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"golang.org/x/sync/errgroup"

	"github.com/takeonehq/recorder/internal/audio"
	"github.com/takeonehq/recorder/internal/logging"
	container "github.com/takeonehq/recorder/internal/media"
)

// PrimaryConfig configures the fast path for one session.
type PrimaryConfig struct {
	Width      int
	Height     int
	FPS        int
	BitrateBps int // 0 derives from dimensions

	// Audio is the encoder's own mixer subscription, or nil for
	// video-only. The encoder owns it from Start on and closes it at
	// Stop (or immediately, when audio encoding is unavailable).
	Audio *audio.Subscription

	WritingApp string

	// Probe overrides backend selection; nil walks the registered
	// factories.
	Probe CapabilityProbe
}

// Output is one finalized recording container.
type Output struct {
	Format      string // "mkv" or "avi"
	Data        []byte
	Codec       string
	Backend     string
	VideoFrames int
	AudioChunks int
	HasAudio    bool
	Duration    time.Duration
}

// containerWriter receives encoded samples. Satisfied by the Matroska
// writer through mkvContainer; tests substitute their own recorder.
type containerWriter interface {
	WriteVideo(s media.Sample, keyframe bool, tsMicros int64) error
	WriteAudio(s media.Sample, tsMicros int64) error
	Close() error
	Bytes() []byte
}

type mkvContainer struct {
	*container.MKVWriter
}

func (m mkvContainer) WriteVideo(s media.Sample, keyframe bool, tsMicros int64) error {
	return m.MKVWriter.WriteVideo(keyframe, tsMicros, s.Data)
}

func (m mkvContainer) WriteAudio(s media.Sample, tsMicros int64) error {
	return m.MKVWriter.WriteAudio(tsMicros, s.Data)
}

// newContainerWriter is a seam for tests.
var newContainerWriter = func(cfg container.MKVConfig) (containerWriter, error) {
	w, err := container.NewMKVWriter(cfg)
	if err != nil {
		return nil, err
	}
	return mkvContainer{w}, nil
}

// PrimaryEncoder owns the fast path: composed RGBA frames in, an
// in-memory Matroska container out. Frames are encoded strictly in
// submission order and timestamps strictly increase; the first muxed
// frame is timestamp zero.
type PrimaryEncoder struct {
	log *slog.Logger
	cfg PrimaryConfig

	backend   VideoBackend
	candidate Candidate
	aenc      audioEncoder
	frameDur  time.Duration

	mu          sync.Mutex
	mux         containerWriter
	started     bool
	closed      bool
	paused      bool
	fed         int // frames submitted to the backend, warmup included
	muxed       int
	audioTS     int64
	audioChunks int

	done chan struct{}
	g    errgroup.Group
}

func NewPrimaryEncoder(cfg PrimaryConfig) *PrimaryEncoder {
	return &PrimaryEncoder{
		log:  logging.L("encode"),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start probes candidate configurations in decreasing preference order
// and locks in the first backend that accepts one. No candidate means
// ErrUnsupportedCodec and the session continues fallback-only. Audio
// encoder failure is not fatal; it downgrades the path to video-only.
func (p *PrimaryEncoder) Start() error {
	if p.cfg.Width <= 0 || p.cfg.Height <= 0 || p.cfg.FPS <= 0 {
		return fmt.Errorf("invalid primary config: %dx%d@%d", p.cfg.Width, p.cfg.Height, p.cfg.FPS)
	}

	probe := p.cfg.Probe
	if probe == nil {
		probe = probeRegistered
	}
	bitrate := p.cfg.BitrateBps
	if bitrate == 0 {
		bitrate = DeriveBitrate(p.cfg.Width, p.cfg.Height)
	}

	var lastErr error
	for _, cand := range h264Candidates() {
		bc := BackendConfig{
			Candidate:  cand,
			Width:      p.cfg.Width,
			Height:     p.cfg.Height,
			FPS:        p.cfg.FPS,
			BitrateBps: bitrate,
		}
		backend, err := probe(bc)
		if err != nil {
			lastErr = err
			continue
		}
		if backend == nil {
			continue
		}
		p.backend = backend
		p.candidate = cand
		break
	}
	if p.backend == nil {
		p.log.Warn("no codec candidate accepted", "error", lastErr)
		return ErrUnsupportedCodec
	}

	if p.cfg.Audio != nil {
		aenc, err := newAudioEncoder(audio.SampleRate, audio.Channels)
		if err != nil {
			p.log.Warn("audio encoder unavailable, primary is video-only", "error", err)
			p.cfg.Audio.Close()
			p.cfg.Audio = nil
		} else {
			p.aenc = aenc
		}
	}

	p.frameDur = time.Second / time.Duration(p.cfg.FPS)
	p.started = true
	if p.cfg.Audio != nil {
		p.g.Go(p.audioLoop)
	}

	p.log.Info("primary encoder started",
		"codec", p.candidate.String(),
		"backend", p.backend.Name(),
		"bitrate", bitrate,
		"audio", p.aenc != nil)
	return nil
}

// SubmitFrame encodes one composed frame. The first warmupFrames
// submissions feed the backend but are never muxed and do not advance
// timestamps. While paused the frame is dropped, not buffered.
func (p *PrimaryEncoder) SubmitFrame(img *image.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.closed {
		return fmt.Errorf("%w: encoder not running", ErrEncoderRuntime)
	}
	if p.paused {
		return nil
	}

	b := img.Bounds()
	i420 := rgbaToI420(img.Pix, b.Dx(), b.Dy(), img.Stride)
	defer putI420Buffer(i420)

	rel := p.fed - warmupFrames
	forceKey := rel == 0 || (rel > 0 && rel%(gopSeconds*p.cfg.FPS) == 0)

	annexb, err := p.backend.Encode(i420, forceKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderRuntime, err)
	}
	p.fed++

	// The muxer needs SPS/PPS before it can exist; harvest them from any
	// output, warmup included.
	if p.mux == nil && len(annexb) > 0 {
		if err := p.initMux(annexb); err != nil {
			return err
		}
	}

	if rel < 0 || annexb == nil {
		return nil
	}
	if p.mux == nil {
		p.log.Warn("dropping frame, no parameter sets yet", "frame", p.fed-1)
		return nil
	}

	ts := int64(rel) * 1_000_000 / int64(p.cfg.FPS)
	sample := media.Sample{
		Data:     container.AnnexBToLengthPrefixed(annexb),
		Duration: p.frameDur,
	}
	if err := p.mux.WriteVideo(sample, container.ContainsIDR(annexb), ts); err != nil {
		return fmt.Errorf("%w: mux write: %v", ErrEncoderRuntime, err)
	}
	p.muxed++
	return nil
}

func (p *PrimaryEncoder) initMux(annexb []byte) error {
	sps, pps := container.ExtractParameterSets(annexb)
	if sps == nil || pps == nil {
		return nil
	}
	channels := 0
	if p.aenc != nil {
		channels = audio.Channels
	}
	mux, err := newContainerWriter(container.MKVConfig{
		Width:         p.cfg.Width,
		Height:        p.cfg.Height,
		FPS:           p.cfg.FPS,
		SPS:           sps,
		PPS:           pps,
		AudioChannels: channels,
		WritingApp:    p.cfg.WritingApp,
	})
	if err != nil {
		return fmt.Errorf("%w: mux init: %v", ErrEncoderRuntime, err)
	}
	p.mux = mux
	return nil
}

func (p *PrimaryEncoder) audioLoop() error {
	for {
		select {
		case <-p.done:
			return nil
		case chunk, ok := <-p.cfg.Audio.C:
			if !ok {
				return nil
			}
			p.consumeChunk(chunk)
		}
	}
}

// consumeChunk opus-encodes one mixed chunk and muxes it. Audio
// timestamps advance only for chunks actually written; paused chunks
// are dropped so the recorded timeline shrinks by the paused time on
// both tracks alike.
func (p *PrimaryEncoder) consumeChunk(chunk []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused || p.closed || p.mux == nil {
		return
	}
	pkt, err := p.aenc.Encode(chunk)
	if err != nil {
		p.log.Warn("opus encode failed", "error", err)
		return
	}
	sample := media.Sample{
		Data:     pkt,
		Duration: time.Duration(len(chunk)) * time.Second / audio.SampleRate,
	}
	if err := p.mux.WriteAudio(sample, p.audioTS); err != nil {
		p.log.Warn("audio mux write failed", "error", err)
		return
	}
	p.audioTS += int64(len(chunk)) * 1_000_000 / audio.SampleRate
	p.audioChunks++
}

// Pause suppresses both frame submission and the audio callback.
// Idempotent.
func (p *PrimaryEncoder) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || !p.started {
		return
	}
	p.paused = true
	p.log.Info("primary encoder paused")
}

func (p *PrimaryEncoder) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	p.log.Info("primary encoder resumed")
}

// Stop drains the audio loop, releases the subscription and backend, and
// finalizes the container. Zero muxed frames is ErrNoOutputProduced —
// an empty blob is never returned.
func (p *PrimaryEncoder) Stop() (*Output, error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: encoder never started", ErrNoOutputProduced)
	}
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: encoder already stopped", ErrNoOutputProduced)
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	_ = p.g.Wait()
	if p.cfg.Audio != nil {
		p.cfg.Audio.Close()
	}
	if err := p.backend.Close(); err != nil {
		p.log.Warn("video backend close", "error", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mux == nil || p.muxed == 0 {
		if p.mux != nil {
			_ = p.mux.Close()
		}
		return nil, fmt.Errorf("%w: %d frames muxed", ErrNoOutputProduced, p.muxed)
	}
	if err := p.mux.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalize: %v", ErrEncoderRuntime, err)
	}

	out := &Output{
		Format:      "mkv",
		Data:        p.mux.Bytes(),
		Codec:       p.candidate.String(),
		Backend:     p.backend.Name(),
		VideoFrames: p.muxed,
		AudioChunks: p.audioChunks,
		HasAudio:    p.aenc != nil && p.audioChunks > 0,
		Duration:    time.Duration(p.muxed) * p.frameDur,
	}
	p.log.Info("primary encoder stopped",
		"frames", out.VideoFrames,
		"audio_chunks", out.AudioChunks,
		"bytes", len(out.Data),
		"duration", out.Duration)
	return out, nil
}
