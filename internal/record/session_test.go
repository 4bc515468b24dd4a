package record

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/takeonehq/recorder/internal/audio"
	"github.com/takeonehq/recorder/internal/config"
	"github.com/takeonehq/recorder/internal/encode"
	"github.com/takeonehq/recorder/internal/source"
)

type fakePrimary struct {
	mu       sync.Mutex
	startErr error
	paused   bool
	frames   int
	stopped  bool
	out      *encode.Output
	stopErr  error
}

func (f *fakePrimary) Start() error { return f.startErr }

func (f *fakePrimary) SubmitFrame(img *image.RGBA) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paused {
		f.frames++
	}
	return nil
}

func (f *fakePrimary) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakePrimary) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakePrimary) Stop() (*encode.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.out != nil {
		f.out.VideoFrames = f.frames
	}
	return f.out, f.stopErr
}

func (f *fakePrimary) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

type fakeFallback struct {
	mu      sync.Mutex
	startOK bool
	started bool
	paused  bool
	frames  int
	out     *encode.Output
}

func (f *fakeFallback) Start(surface func() *image.RGBA, track *audio.Subscription, bitrateBps int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.startOK {
		return false
	}
	f.started = true
	return true
}

func (f *fakeFallback) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeFallback) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeFallback) Stop() (*encode.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out, nil
}

func installPaths(t *testing.T, p *fakePrimary, fb *fakeFallback) {
	t.Helper()
	prevPrimary, prevFallback, prevMix := newPrimaryPath, newFallbackPath, newMixGraph
	newPrimaryPath = func(cfg encode.PrimaryConfig) primaryPath { return p }
	newFallbackPath = func(cfg FallbackConfig, m *SessionMetrics) fallbackPath { return fb }
	newMixGraph = func(opts audio.MixOptions) (*audio.MixGraph, error) { return nil, nil }
	t.Cleanup(func() {
		newPrimaryPath, newFallbackPath, newMixGraph = prevPrimary, prevFallback, prevMix
	})
}

func sessionConfig() *config.Config {
	cfg := config.Default()
	cfg.Source = "canvas"
	cfg.Width = 320
	cfg.Height = 180
	cfg.FPS = 30
	cfg.Padding = 8
	cfg.BubbleSize = 0
	cfg.MicEnabled = false
	cfg.SystemAudio = false
	cfg.TitleText = ""
	return cfg
}

func TestPrimaryFailureContinuesFallbackOnly(t *testing.T) {
	p := &fakePrimary{startErr: encode.ErrUnsupportedCodec}
	fb := &fakeFallback{
		startOK: true,
		out:     &encode.Output{Format: "avi", Codec: "mjpeg", Data: []byte("riff"), VideoFrames: 3},
	}
	installPaths(t, p, fb)

	s, err := NewSession(SessionConfig{Config: sessionConfig()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Confirm(); err != nil {
		t.Fatalf("Confirm should degrade, not fail: %v", err)
	}
	if got := s.State(); got != StateRecording {
		t.Fatalf("state = %s, want %s", got, StateRecording)
	}

	res, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.Decision.Use != ChooseFallback {
		t.Errorf("decision = %s, want %s", res.Decision.Use, ChooseFallback)
	}
	if res.Output == nil || res.Output.Format != "avi" {
		t.Errorf("output = %+v, want avi fallback", res.Output)
	}

	found := false
	for _, a := range res.Advisories {
		if a == "preferred encoder unavailable; this recording will be saved in a compatibility format" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing compatibility advisory, got %v", res.Advisories)
	}
}

func TestBothPathsFailingAbortsToIdle(t *testing.T) {
	p := &fakePrimary{startErr: encode.ErrUnsupportedCodec}
	fb := &fakeFallback{startOK: false}
	installPaths(t, p, fb)

	s, err := NewSession(SessionConfig{Config: sessionConfig()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err = s.Confirm()
	if !errors.Is(err, ErrNoOutputProduced) {
		t.Fatalf("Confirm error = %v, want ErrNoOutputProduced", err)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("state = %s, want %s", got, StateIdle)
	}
}

func TestDisplayEndedRevertsAndRecordingContinues(t *testing.T) {
	p := &fakePrimary{out: &encode.Output{Format: "mkv", Data: []byte("ebml")}}
	fb := &fakeFallback{startOK: true}
	installPaths(t, p, fb)

	opener := &displayOpenerStub{}
	opener.install(t)

	s, err := NewSession(SessionConfig{Config: sessionConfig()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := s.SwitchToDisplay(0); err != nil {
		t.Fatalf("SwitchToDisplay: %v", err)
	}
	if got := s.Status().Source; got != source.KindDisplay {
		t.Fatalf("active source = %s, want display", got)
	}

	// Operator clicks "stop sharing": the ended callback fires from an
	// arbitrary goroutine and must come back through the session loop.
	if len(opener.ended) != 1 {
		t.Fatalf("expected one ended callback, got %d", len(opener.ended))
	}
	go opener.ended[0]()

	deadline := time.Now().Add(2 * time.Second)
	for s.Status().Source != source.KindCanvas {
		if time.Now().After(deadline) {
			t.Fatal("source never reverted to canvas")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := s.State(); got != StateRecording {
		t.Errorf("state after revert = %s, want %s", got, StateRecording)
	}

	res, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.Decision.Use != ChoosePrimary {
		t.Errorf("decision = %s, want primary", res.Decision.Use)
	}
	if opener.opened[0].closes == 0 {
		t.Errorf("display source never released")
	}
}

// Twenty accepted ticks around a five-tick pause must yield exactly
// twenty submitted frames: paused time is dropped, not represented.
func TestPausedTicksAreDropped(t *testing.T) {
	p := &fakePrimary{out: &encode.Output{Format: "mkv", Data: []byte("ebml")}}
	fb := &fakeFallback{startOK: true}
	installPaths(t, p, fb)

	s, err := NewSession(SessionConfig{Config: sessionConfig()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// Drive transitions and ticks directly instead of through the loop
	// so tick spacing is exact.
	s.mu.Lock()
	s.state = StatePreviewing
	s.mu.Unlock()
	if err := s.beginRecording(); err != nil {
		t.Fatalf("beginRecording: %v", err)
	}

	now := time.Now()
	step := time.Second / 30
	for i := 0; i < 10; i++ {
		now = now.Add(step)
		s.tick(now)
	}
	s.pauseBoth()
	s.pauseBoth() // pause is idempotent
	for i := 0; i < 5; i++ {
		now = now.Add(step)
		s.tick(now)
	}
	s.resumeBoth()
	for i := 0; i < 10; i++ {
		now = now.Add(step)
		s.tick(now)
	}

	if got := p.frameCount(); got != 20 {
		t.Fatalf("submitted frames = %d, want 20", got)
	}

	res, err := s.finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Output.VideoFrames != 20 {
		t.Errorf("output frames = %d, want 20", res.Output.VideoFrames)
	}
}

func TestStopBeforeConfirmFails(t *testing.T) {
	p := &fakePrimary{}
	fb := &fakeFallback{startOK: true}
	installPaths(t, p, fb)

	s, err := NewSession(SessionConfig{Config: sessionConfig()})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Stop(); err == nil {
		t.Fatal("Stop before recording should fail")
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("state = %s, want %s", got, StateIdle)
	}
}

func TestJournalReceivesLifecycleEvents(t *testing.T) {
	p := &fakePrimary{out: &encode.Output{Format: "mkv", Data: []byte("ebml")}}
	fb := &fakeFallback{startOK: true}
	installPaths(t, p, fb)

	sink := &recordingSink{}
	s, err := NewSession(SessionConfig{Config: sessionConfig(), Journal: sink})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Confirm(); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for _, want := range []string{
		"session_started", "preview_started", "recording_started",
		"paused", "resumed", "finalize_decision", "session_ended",
	} {
		if !sink.has(want) {
			t.Errorf("journal missing %q event; got %v", want, sink.names())
		}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Event(eventType string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingSink) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == name {
			return true
		}
	}
	return false
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
