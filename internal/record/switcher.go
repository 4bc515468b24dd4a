package record

import (
	"image"
	"log/slog"
	"sync"

	"github.com/takeonehq/recorder/internal/audio"
	"github.com/takeonehq/recorder/internal/compose"
	"github.com/takeonehq/recorder/internal/logging"
	"github.com/takeonehq/recorder/internal/source"
)

// openDisplaySource is the display acquisition seam; tests substitute
// fakes.
var openDisplaySource = func(index int, onEnded func()) (source.VisualSource, error) {
	return source.NewDisplaySource(index, onEnded)
}

// SwitcherConfig wires the switcher into one session.
type SwitcherConfig struct {
	Compositor  *compose.Compositor
	Mix         *audio.MixGraph // nil when the session records no audio
	Canvas      source.VisualSource
	CanvasFrame image.Rectangle

	WantSystemAudio bool
	SystemDevice    string

	// PostEnded delivers a display-ended event into the session loop.
	// It must not mutate session state directly.
	PostEnded func(gen int)

	// Advise surfaces a one-line degradation notice to the operator.
	Advise func(text string)
}

// SourceSwitcher swaps the active visual source between the canvas and
// a display capture. Switch and revert are invoked from the session
// goroutine; the generation counter exists because ended callbacks
// arrive from anywhere and stale ones (from a display that has since
// been replaced) must not revert the wrong source.
type SourceSwitcher struct {
	log *slog.Logger
	cfg SwitcherConfig

	mu      sync.Mutex
	gen     int
	display source.VisualSource
}

func NewSourceSwitcher(cfg SwitcherConfig) *SourceSwitcher {
	if cfg.PostEnded == nil {
		cfg.PostEnded = func(int) {}
	}
	if cfg.Advise == nil {
		cfg.Advise = func(string) {}
	}
	return &SourceSwitcher{
		log: logging.L("switch"),
		cfg: cfg,
	}
}

func (s *SourceSwitcher) ActiveKind() source.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.display != nil {
		return source.KindDisplay
	}
	return source.KindCanvas
}

// SwitchToDisplay acquires a new display capture and makes it the
// active source. Acquisition happens before anything mutates, so a
// failed switch leaves the previous source untouched.
func (s *SourceSwitcher) SwitchToDisplay(index int) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	d, err := openDisplaySource(index, func() { s.cfg.PostEnded(gen) })
	if err != nil {
		s.log.Warn("display switch failed, keeping current source",
			"display", index, logging.KeyError, err)
		return err
	}

	s.mu.Lock()
	old := s.display
	s.display = d
	s.mu.Unlock()

	comp := s.cfg.Compositor
	comp.SetSource(d) // display sources reset the recording frame to their bounds
	comp.SetPointerProvider(source.NewSystemPointer())
	comp.SetBubblePosition(d.Bounds().Max)

	if old != nil {
		old.Close()
	}

	s.attachSystemAudio()
	s.log.Info("switched to display", "display", index, "gen", gen,
		"width", d.Bounds().Dx(), "height", d.Bounds().Dy())
	return nil
}

// HandleDisplayEnded processes an ended event routed through the
// session loop. Returns true when it reverted to the canvas; stale
// generations are ignored.
func (s *SourceSwitcher) HandleDisplayEnded(gen int) bool {
	s.mu.Lock()
	stale := gen != s.gen || s.display == nil
	s.mu.Unlock()
	if stale {
		s.log.Debug("ignoring stale display-ended event", "gen", gen)
		return false
	}
	s.RevertToCanvas()
	s.cfg.Advise("display capture ended; recording continues on the canvas")
	return true
}

// RevertToCanvas releases the display capture and restores the canvas
// source with its recording-frame geometry.
func (s *SourceSwitcher) RevertToCanvas() {
	s.mu.Lock()
	old := s.display
	s.display = nil
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if s.cfg.Mix != nil {
		s.cfg.Mix.DetachSystem()
	}

	comp := s.cfg.Compositor
	comp.SetSource(s.cfg.Canvas)
	comp.SetRecordingFrame(s.cfg.CanvasFrame)
	comp.SetBubblePosition(s.cfg.CanvasFrame.Max)
	if p, ok := s.cfg.Canvas.(source.PointerProvider); ok {
		comp.SetPointerProvider(p)
	} else {
		comp.SetPointerProvider(nil)
	}
	s.log.Info("reverted to canvas")
}

// attachSystemAudio connects the display's system audio into the mix
// graph's system slot when configuration permits. Every shortfall is
// an advisory, never an error: the switch itself already succeeded.
func (s *SourceSwitcher) attachSystemAudio() {
	if !s.cfg.WantSystemAudio {
		return
	}
	if s.cfg.Mix == nil || !s.cfg.Mix.SystemPermitted() {
		s.cfg.Advise("system audio was requested but is unavailable; display records without it")
		return
	}
	if err := s.cfg.Mix.AttachSystemDevice(s.cfg.SystemDevice); err != nil {
		s.cfg.Advise("system audio could not be captured for this display: " + err.Error())
	}
}

// Close releases any held display capture and orphans in-flight ended
// callbacks.
func (s *SourceSwitcher) Close() {
	s.mu.Lock()
	old := s.display
	s.display = nil
	s.gen++
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}
