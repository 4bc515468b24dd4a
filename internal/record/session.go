package record

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/takeonehq/recorder/internal/audio"
	"github.com/takeonehq/recorder/internal/compose"
	"github.com/takeonehq/recorder/internal/config"
	"github.com/takeonehq/recorder/internal/encode"
	"github.com/takeonehq/recorder/internal/logging"
	"github.com/takeonehq/recorder/internal/source"
)

// State is the session lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StatePreviewing State = "previewing"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
	StateFinalizing State = "finalizing"
)

// EventSink receives session lifecycle events for the journal. A nil
// sink is allowed.
type EventSink interface {
	Event(eventType string, details map[string]any)
}

// primaryPath is the session's view of the fast-path encoder; the
// concrete type is encode.PrimaryEncoder, tests substitute fakes.
type primaryPath interface {
	Start() error
	SubmitFrame(img *image.RGBA) error
	Pause()
	Resume()
	Stop() (*encode.Output, error)
}

// fallbackPath mirrors FallbackPath for the same reason.
type fallbackPath interface {
	Start(surface func() *image.RGBA, track *audio.Subscription, bitrateBps int) bool
	Pause()
	Resume()
	Stop() (*encode.Output, error)
}

var (
	newPrimaryPath = func(cfg encode.PrimaryConfig) primaryPath {
		return encode.NewPrimaryEncoder(cfg)
	}
	newFallbackPath = func(cfg FallbackConfig, m *SessionMetrics) fallbackPath {
		return NewFallbackPath(cfg, m)
	}
	newMixGraph = func(opts audio.MixOptions) (*audio.MixGraph, error) {
		return audio.NewMixGraph(opts)
	}
)

// SessionConfig assembles one session's collaborators.
type SessionConfig struct {
	Config *config.Config

	// Canvas is the drawing surface; nil installs the built-in animated
	// canvas sized to the output.
	Canvas source.VisualSource
	Camera source.CameraSource

	Journal EventSink

	// Advise surfaces one-line degradation notices to the operator.
	Advise func(text string)
}

// Result is what a finished session hands back to the caller.
type Result struct {
	Output   *encode.Output
	Decision Decision
	Metrics  MetricsSnapshot

	// Advisories collected over the session, reconciliation reason
	// included.
	Advisories []string
}

// StatusInfo is the status verb's payload.
type StatusInfo struct {
	SessionID string          `json:"sessionId"`
	State     State           `json:"state"`
	Source    source.Kind     `json:"source"`
	StartedAt time.Time       `json:"startedAt"`
	Metrics   MetricsSnapshot `json:"metrics"`
	Audio     *audio.MixStats `json:"audio,omitempty"`
}

type msgKind int

const (
	msgConfirm msgKind = iota
	msgPause
	msgResume
	msgStop
	msgSwitchDisplay
	msgSwitchCanvas
	msgDisplayEnded
)

type stopResult struct {
	result *Result
	err    error
}

type message struct {
	kind    msgKind
	gen     int // display-ended generation
	display int // switch target index
	reply   chan error
	stop    chan stopResult
}

// Session owns one recording lifecycle end to end: the compositor, the
// mix graph, both encoder paths and the source switcher. All state
// transitions run on the session goroutine; public methods and external
// callbacks only post messages.
type Session struct {
	ID  string
	log *slog.Logger
	cfg SessionConfig

	comp     *compose.Compositor
	canvas   source.VisualSource
	switcher *SourceSwitcher
	metrics  *SessionMetrics

	mix      *audio.MixGraph
	primary  primaryPath
	fallback fallbackPath

	fps        int
	bitrateBps int

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	advisories []string

	msgs     chan message
	loopDone chan struct{}
}

// NewSession wires a session in Idle. Nothing is captured or encoded
// until Start.
func NewSession(cfg SessionConfig) (*Session, error) {
	c := cfg.Config
	if c == nil {
		return nil, fmt.Errorf("session: nil config")
	}

	id := uuid.NewString()[:8]
	log := logging.WithSession(logging.L("session"), id)

	canvas := cfg.Canvas
	if canvas == nil {
		canvas = source.NewCanvas(c.Width, c.Height)
	}

	bitrate := c.BitrateBps
	if bitrate == 0 {
		bitrate = encode.DeriveBitrate(c.Width, c.Height)
	}

	comp := compose.New(compose.OptionsFromConfig(c))
	comp.SetSource(canvas)
	comp.SetCamera(cfg.Camera)
	if p, ok := canvas.(source.PointerProvider); ok {
		comp.SetPointerProvider(p)
	}

	s := &Session{
		ID:         id,
		log:        log,
		cfg:        cfg,
		comp:       comp,
		canvas:     canvas,
		metrics:    newSessionMetrics(),
		fps:        c.FPS,
		bitrateBps: bitrate,
		state:      StateIdle,
		msgs:       make(chan message, 16),
		loopDone:   make(chan struct{}),
	}

	// The best-fit recording frame for the output aspect ratio inside
	// the canvas, with the camera bubble snapped into its corner.
	frame := compose.BestFitFrame(canvas.Bounds(), c.Width, c.Height)
	comp.SetRecordingFrame(frame)
	comp.SetBubblePosition(frame.Max)

	s.switcher = NewSourceSwitcher(SwitcherConfig{
		Compositor:      comp,
		Canvas:          canvas,
		CanvasFrame:     frame,
		WantSystemAudio: c.SystemAudio,
		SystemDevice:    c.SystemDevice,
		PostEnded:       func(gen int) { s.post(message{kind: msgDisplayEnded, gen: gen}) },
		Advise:          s.advise,
	})

	return s, nil
}

// Start launches the session loop. Canvas mode enters Previewing so the
// operator can frame the shot before confirming; display mode acquires
// the capture and goes straight to Recording.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session: already started (state %s)", s.state)
	}
	s.state = StatePreviewing
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.comp.Allocate()
	go s.run()

	s.event("session_started", map[string]any{
		"width": s.cfg.Config.Width, "height": s.cfg.Config.Height,
		"fps": s.fps, "bitrate": s.bitrateBps,
	})

	if s.cfg.Config.Source == "display" {
		if err := s.SwitchToDisplay(s.cfg.Config.DisplayIndex); err != nil {
			s.advise("display capture unavailable; previewing the canvas instead")
		}
		return s.Confirm()
	}

	s.log.Info("previewing", "frame", s.comp.RecordingFrame())
	s.event("preview_started", nil)
	return nil
}

// Confirm commits Previewing into Recording.
func (s *Session) Confirm() error { return s.ask(message{kind: msgConfirm}) }

// Pause suppresses submission on both paths. Idempotent.
func (s *Session) Pause() error { return s.ask(message{kind: msgPause}) }

// Resume reverses Pause. Idempotent.
func (s *Session) Resume() error { return s.ask(message{kind: msgResume}) }

// SwitchToDisplay makes a display capture the active source.
func (s *Session) SwitchToDisplay(index int) error {
	return s.ask(message{kind: msgSwitchDisplay, display: index})
}

// SwitchToCanvas reverts to the drawing surface.
func (s *Session) SwitchToCanvas() error { return s.ask(message{kind: msgSwitchCanvas}) }

// Stop finalizes the session and returns the reconciled output. The only
// awaited operation; everything else is post-and-return.
func (s *Session) Stop() (*Result, error) {
	reply := make(chan stopResult, 1)
	if !s.post(message{kind: msgStop, stop: reply}) {
		return nil, fmt.Errorf("session: not running")
	}
	r := <-reply
	return r.result, r.err
}

// Status reads without entering the loop; safe in any state.
func (s *Session) Status() StatusInfo {
	s.mu.Lock()
	st := s.state
	started := s.startedAt
	s.mu.Unlock()

	info := StatusInfo{
		SessionID: s.ID,
		State:     st,
		Source:    s.switcher.ActiveKind(),
		StartedAt: started,
		Metrics:   s.metrics.Snapshot(),
	}
	if s.mix != nil {
		stats := s.mix.Stats()
		info.Audio = &stats
	}
	return info
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the current composite surface, nil before
// Start. Feeds the preview server.
func (s *Session) Snapshot() *image.RGBA {
	return s.comp.Snapshot()
}

// Advisories returns the degradation notices collected so far.
func (s *Session) Advisories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.advisories...)
}

// post delivers a message to the loop; false once the loop has exited.
func (s *Session) post(m message) bool {
	select {
	case <-s.loopDone:
		return false
	case s.msgs <- m:
		return true
	}
}

// ask posts a message carrying an error reply and waits for it.
func (s *Session) ask(m message) error {
	m.reply = make(chan error, 1)
	if !s.post(m) {
		return fmt.Errorf("session: not running")
	}
	select {
	case err := <-m.reply:
		return err
	case <-s.loopDone:
		return fmt.Errorf("session: ended")
	}
}

// run is the session goroutine: the compositing tick loop plus every
// state transition. The ticker fires at twice the target rate; the
// compositor's gate brings accepted ticks down to the target.
func (s *Session) run() {
	defer close(s.loopDone)

	ticker := time.NewTicker(time.Second / time.Duration(2*s.fps))
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.tick(now)
		case m := <-s.msgs:
			if m.kind == msgStop {
				res, err := s.finalize()
				m.stop <- stopResult{result: res, err: err}
				return
			}
			s.handle(m)
		}
	}
}

func (s *Session) tick(now time.Time) {
	t0 := time.Now()
	s.comp.RenderTick(now)
	s.metrics.RecordTick(time.Since(t0))
}

func (s *Session) handle(m message) {
	var err error
	switch m.kind {
	case msgConfirm:
		err = s.beginRecording()
	case msgPause:
		s.pauseBoth()
	case msgResume:
		s.resumeBoth()
	case msgSwitchDisplay:
		err = s.switchDisplay(m.display)
	case msgSwitchCanvas:
		s.switcher.RevertToCanvas()
		s.event("source_switched", map[string]any{"source": string(source.KindCanvas)})
	case msgDisplayEnded:
		if s.switcher.HandleDisplayEnded(m.gen) {
			s.event("source_switched", map[string]any{
				"source": string(source.KindCanvas), "cause": "display ended",
			})
		}
	}
	if m.reply != nil {
		m.reply <- err
	}
}

// beginRecording is the Previewing → Recording transition: mix graph
// up, both paths started, compositor armed. Both paths failing aborts
// back to Idle; a failed primary alone degrades to fallback-only.
func (s *Session) beginRecording() error {
	s.mu.Lock()
	if s.state != StatePreviewing {
		st := s.state
		s.mu.Unlock()
		if st == StateRecording || st == StatePaused {
			return nil
		}
		return fmt.Errorf("session: cannot confirm from %s", st)
	}
	s.mu.Unlock()

	c := s.cfg.Config
	s.comp.Allocate()

	mix, err := newMixGraph(audio.MixOptions{
		Mic:          c.MicEnabled,
		MicDevice:    c.MicDevice,
		MicGainDB:    c.MicGainDB,
		System:       c.SystemAudio,
		SystemDevice: c.SystemDevice,
		SystemGainDB: c.SystemGainDB,
	})
	if err != nil {
		s.log.Warn("mix graph failed, recording without audio", logging.KeyError, err)
		mix = nil
	}
	s.mix = mix
	s.switcher.cfg.Mix = mix
	if (c.MicEnabled || c.SystemAudio) && mix == nil {
		s.advise("audio is unavailable; recording video only")
	}

	var primarySub, fallbackSub *audio.Subscription
	if mix != nil {
		primarySub = mix.Subscribe()
		fallbackSub = mix.Subscribe()
	}

	primary := newPrimaryPath(encode.PrimaryConfig{
		Width:      c.Width,
		Height:     c.Height,
		FPS:        s.fps,
		BitrateBps: s.bitrateBps,
		Audio:      primarySub,
		WritingApp: "takeone-recorder",
	})
	primaryErr := primary.Start()
	if primaryErr != nil {
		s.log.Warn("primary path did not start", logging.KeyError, primaryErr)
		primary = nil
	}

	fb := newFallbackPath(FallbackConfig{Width: c.Width, Height: c.Height, FPS: s.fps}, s.metrics)
	if !fb.Start(s.comp.Snapshot, fallbackSub, s.bitrateBps) {
		fb = nil
		if fallbackSub != nil {
			fallbackSub.Close()
		}
	}

	if primary == nil && fb == nil {
		if mix != nil {
			mix.Teardown()
			s.mix = nil
			s.switcher.cfg.Mix = nil
		}
		s.comp.Release()
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.event("recording_failed", map[string]any{"error": fmt.Sprint(primaryErr)})
		return fmt.Errorf("%w: neither recording path could start", ErrNoOutputProduced)
	}
	if primary == nil {
		s.advise("preferred encoder unavailable; this recording will be saved in a compatibility format")
		s.event("path_degraded", map[string]any{"path": "primary", "error": fmt.Sprint(primaryErr)})
	}

	s.primary = primary
	s.fallback = fb

	if primary != nil {
		s.comp.SetFrameSink(func(img *image.RGBA) {
			t0 := time.Now()
			if err := s.primary.SubmitFrame(img); err != nil {
				s.metrics.RecordPrimaryError()
				return
			}
			s.metrics.RecordPrimary(time.Since(t0))
		})
	}
	s.comp.SetRecording(true)

	s.mu.Lock()
	s.state = StateRecording
	s.mu.Unlock()

	s.log.Info("recording", "primary", primary != nil, "fallback", fb != nil, "audio", mix != nil)
	s.event("recording_started", map[string]any{
		"primary": primary != nil, "fallback": fb != nil, "audio": mix != nil,
	})
	return nil
}

func (s *Session) pauseBoth() {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	already := s.state == StatePaused
	s.state = StatePaused
	s.mu.Unlock()
	if already {
		return
	}

	s.comp.SetPaused(true)
	if s.primary != nil {
		s.primary.Pause()
	}
	if s.fallback != nil {
		s.fallback.Pause()
	}
	s.log.Info("paused")
	s.event("paused", nil)
}

func (s *Session) resumeBoth() {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	s.state = StateRecording
	s.mu.Unlock()

	s.comp.SetPaused(false)
	if s.primary != nil {
		s.primary.Resume()
	}
	if s.fallback != nil {
		s.fallback.Resume()
	}
	s.log.Info("resumed")
	s.event("resumed", nil)
}

func (s *Session) switchDisplay(index int) error {
	if err := s.switcher.SwitchToDisplay(index); err != nil {
		return err
	}
	s.event("source_switched", map[string]any{
		"source": string(source.KindDisplay), "display": index,
	})
	return nil
}

// finalize stops both paths concurrently, applies the reconciliation
// policy and releases everything. Every release step runs regardless of
// the others failing.
func (s *Session) finalize() (*Result, error) {
	s.mu.Lock()
	wasRecording := s.state == StateRecording || s.state == StatePaused
	s.state = StateFinalizing
	s.mu.Unlock()
	s.log.Info("finalizing")

	s.comp.SetRecording(false)
	s.comp.SetFrameSink(nil)

	var (
		wg          sync.WaitGroup
		primaryOut  *encode.Output
		primaryErr  error
		fallbackOut *encode.Output
		fallbackErr error
	)
	if s.primary != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			primaryOut, primaryErr = s.primary.Stop()
		}()
	}
	if s.fallback != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fallbackOut, fallbackErr = s.fallback.Stop()
		}()
	}
	wg.Wait()

	if primaryErr != nil {
		s.log.Warn("primary stop", logging.KeyError, primaryErr)
	}
	if fallbackErr != nil {
		s.log.Warn("fallback stop", logging.KeyError, fallbackErr)
	}

	// Release order: display capture, mix graph, surface. Each step is
	// independent of the others.
	s.switcher.Close()
	if s.mix != nil {
		s.mix.Teardown()
		s.mix = nil
	}
	s.comp.Release()

	c := s.cfg.Config
	audioRequired := c.MicEnabled || c.SystemAudio
	primaryOK := primaryErr == nil && primaryOut != nil
	fallbackOK := fallbackErr == nil && fallbackOut != nil

	decision := Reconcile(ReconcileInput{
		PrimaryOK:  primaryOK,
		FallbackOK: fallbackOK,
		AudioRequiredButMissingFromPrimary: audioRequired &&
			primaryOK && !primaryOut.HasAudio &&
			fallbackOK && fallbackOut.HasAudio,
	})
	if decision.Reason != "" {
		s.advise(decision.Reason)
	}
	s.event("finalize_decision", map[string]any{
		"use": string(decision.Use), "reason": decision.Reason,
		"primary_ok": primaryOK, "fallback_ok": fallbackOK,
	})

	s.mu.Lock()
	s.state = StateIdle
	advisories := append([]string(nil), s.advisories...)
	s.mu.Unlock()

	res := &Result{
		Decision:   decision,
		Metrics:    s.metrics.Snapshot(),
		Advisories: advisories,
	}
	switch decision.Use {
	case ChoosePrimary:
		res.Output = primaryOut
	case ChooseFallback:
		res.Output = fallbackOut
	default:
		if !wasRecording {
			s.event("session_ended", map[string]any{"output": false})
			return nil, fmt.Errorf("session: stopped before recording")
		}
		s.event("session_ended", map[string]any{"output": false})
		return nil, fmt.Errorf("%w: both recording paths came back empty", ErrNoOutputProduced)
	}

	s.event("session_ended", map[string]any{
		"output": true, "format": res.Output.Format,
		"frames": res.Output.VideoFrames, "bytes": len(res.Output.Data),
	})
	s.log.Info("session ended",
		"use", string(decision.Use),
		"format", res.Output.Format,
		"frames", res.Output.VideoFrames,
		"duration", res.Output.Duration)
	return res, nil
}

func (s *Session) advise(text string) {
	s.mu.Lock()
	s.advisories = append(s.advisories, text)
	s.mu.Unlock()
	s.log.Info("advisory", "text", text)
	s.event("advisory", map[string]any{"text": text})
	if s.cfg.Advise != nil {
		s.cfg.Advise(text)
	}
}

func (s *Session) event(eventType string, details map[string]any) {
	if s.cfg.Journal == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	details["session"] = s.ID
	s.cfg.Journal.Event(eventType, details)
}
