package record

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/takeonehq/recorder/internal/audio"
	"github.com/takeonehq/recorder/internal/encode"
	"github.com/takeonehq/recorder/internal/logging"
	"github.com/takeonehq/recorder/internal/media"
)

// fallbackContainer is the writer contract for the compatibility path.
// The AVI writer satisfies it; the preference list below leaves room
// for richer container-native pairs.
type fallbackContainer interface {
	WriteVideoFrame(jpeg []byte) error
	WriteRepeatFrame() error
	WriteAudio(pcm []byte) error
	Frames() int
	Close() error
	Bytes() []byte
}

// fallbackFormats is the ordered preference list of container/codec
// pairs. MJPEG in AVI is the always-supported floor: pure Go, no
// encoder hardware, every player opens it.
var fallbackFormats = []struct {
	codec  string
	format string
	build  func(cfg media.AVIConfig) fallbackContainer
}{
	{codec: "mjpeg", format: "avi", build: func(cfg media.AVIConfig) fallbackContainer {
		return media.NewAVIWriter(cfg)
	}},
}

// FallbackConfig fixes the sampling geometry of the fallback path.
type FallbackConfig struct {
	Width  int
	Height int
	FPS    int
}

// FallbackPath independently samples the shared composite surface on
// its own ticker and assembles a container-native recording. It runs
// whether or not the primary started: primary failures are often
// discovered only at stop time, and by then it is too late to begin
// capturing.
type FallbackPath struct {
	log     *slog.Logger
	cfg     FallbackConfig
	metrics *SessionMetrics
	differ  *frameDiffer

	surface func() *image.RGBA
	track   *audio.Subscription
	quality int
	codec   string
	format  string

	mu          sync.Mutex
	writer      fallbackContainer
	started     bool
	stopped     bool
	paused      bool
	audioChunks int
	encodeFails int
	pcmBuf      []byte

	done chan struct{}
	wg   sync.WaitGroup
}

func NewFallbackPath(cfg FallbackConfig, metrics *SessionMetrics) *FallbackPath {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if metrics == nil {
		metrics = newSessionMetrics()
	}
	return &FallbackPath{
		log:     logging.L("fallback"),
		cfg:     cfg,
		metrics: metrics,
		differ:  newFrameDiffer(),
		done:    make(chan struct{}),
	}
}

// Start begins sampling. surface returns the current composite (a
// copy the path may hash and encode); track is the path's own mixer
// subscription, never shared with the primary. Returns false when the
// path cannot start; it never returns an error because the fallback
// failing is itself only an advisory.
func (f *FallbackPath) Start(surface func() *image.RGBA, track *audio.Subscription, bitrateBps int) bool {
	if !f.begin(surface, track, bitrateBps) {
		return false
	}
	f.wg.Add(1)
	go f.videoLoop()
	if track != nil {
		f.wg.Add(1)
		go f.audioLoop()
	}
	return true
}

// begin prepares the writer without launching the loops, so tests can
// drive ticks deterministically.
func (f *FallbackPath) begin(surface func() *image.RGBA, track *audio.Subscription, bitrateBps int) bool {
	if surface == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.stopped {
		return false
	}

	pick := fallbackFormats[0]
	channels := 0
	if track != nil {
		channels = audio.Channels
	}
	f.writer = pick.build(media.AVIConfig{
		Width:         f.cfg.Width,
		Height:        f.cfg.Height,
		FPS:           f.cfg.FPS,
		AudioChannels: channels,
		SampleRate:    audio.SampleRate,
	})
	f.codec = pick.codec
	f.format = pick.format
	f.surface = surface
	f.track = track
	f.quality = jpegQualityFor(bitrateBps, f.cfg.Width, f.cfg.Height, f.cfg.FPS)
	f.started = true

	f.log.Info("fallback path started",
		"codec", f.codec, "format", f.format,
		"quality", f.quality, "audio", track != nil)
	return true
}

func (f *FallbackPath) videoLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(time.Second / time.Duration(f.cfg.FPS))
	defer ticker.Stop()
	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.tickOnce()
		}
	}
}

// tickOnce samples and stores one frame. Unchanged composites become
// zero-length repeat markers; paused ticks are dropped outright so the
// recorded timeline shrinks in lockstep with the primary.
func (f *FallbackPath) tickOnce() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started || f.stopped || f.paused {
		return
	}
	img := f.surface()
	if img == nil {
		return
	}

	if !f.differ.HasChanged(img.Pix) && f.writer.Frames() > 0 {
		if err := f.writer.WriteRepeatFrame(); err == nil {
			f.metrics.RecordFallbackFrame(true)
		}
		return
	}

	jpeg, err := media.EncodeJPEG(img, f.quality)
	if err != nil {
		f.encodeFails++
		if f.encodeFails == 1 {
			f.log.Warn("fallback jpeg encode failed", logging.KeyError, err)
		}
		return
	}
	if err := f.writer.WriteVideoFrame(jpeg); err != nil {
		f.encodeFails++
		return
	}
	f.metrics.RecordFallbackFrame(false)
}

func (f *FallbackPath) audioLoop() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case chunk, ok := <-f.track.C:
			if !ok {
				return
			}
			f.consumeAudio(chunk)
		}
	}
}

func (f *FallbackPath) consumeAudio(chunk []int16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started || f.stopped || f.paused {
		return
	}
	f.pcmBuf = audio.S16ToBytes(chunk, f.pcmBuf)
	if err := f.writer.WriteAudio(f.pcmBuf); err != nil {
		return
	}
	f.audioChunks++
	f.metrics.RecordFallbackAudio()
}

// Pause drops ticks and audio chunks until Resume. Idempotent.
func (f *FallbackPath) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused || !f.started {
		return
	}
	f.paused = true
	f.log.Info("fallback paused")
}

func (f *FallbackPath) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paused {
		return
	}
	f.paused = false
	f.log.Info("fallback resumed")
}

// Stop waits for the in-flight tick, releases the audio subscription
// and returns the assembled container. A path that never produced a
// frame returns (nil, nil): having nothing is not an error here, the
// reconciliation policy decides what it means.
func (f *FallbackPath) Stop() (*encode.Output, error) {
	f.mu.Lock()
	if !f.started || f.stopped {
		f.mu.Unlock()
		return nil, nil
	}
	f.stopped = true
	f.mu.Unlock()

	close(f.done)
	f.wg.Wait()

	if f.track != nil {
		f.track.Close()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	frames := f.writer.Frames()
	if frames == 0 {
		f.log.Info("fallback produced no frames")
		return nil, nil
	}
	if err := f.writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: fallback finalize: %v", ErrEncoderRuntime, err)
	}

	out := &encode.Output{
		Format:      f.format,
		Codec:       f.codec,
		Backend:     "software",
		Data:        f.writer.Bytes(),
		VideoFrames: frames,
		AudioChunks: f.audioChunks,
		HasAudio:    f.audioChunks > 0,
		Duration:    time.Duration(frames) * (time.Second / time.Duration(f.cfg.FPS)),
	}
	f.log.Info("fallback path stopped",
		"frames", frames, "audioChunks", f.audioChunks, "bytes", len(out.Data))
	return out, nil
}

// jpegQualityFor maps the session bitrate onto an MJPEG quality step.
// The mapping is a hint, monotonic in the per-pixel byte budget, and
// stays within a range that keeps the fallback watchable.
func jpegQualityFor(bitrateBps, width, height, fps int) int {
	if bitrateBps <= 0 || width <= 0 || height <= 0 || fps <= 0 {
		return 80
	}
	budget := float64(bitrateBps) / 8 / float64(fps)
	perPixel := budget / float64(width*height)
	switch {
	case perPixel >= 0.25:
		return 90
	case perPixel >= 0.12:
		return 85
	case perPixel >= 0.05:
		return 80
	case perPixel >= 0.02:
		return 75
	default:
		return 70
	}
}
