package audio

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/takeonehq/recorder/internal/logging"
)

// MixOptions selects the graph's inputs. The microphone connects at
// construction; the system slot is attached later, when a display
// capture brings its audio along.
type MixOptions struct {
	Mic          bool
	MicDevice    string
	MicGainDB    float64
	System       bool
	SystemDevice string
	SystemGainDB float64
}

// connection is one occupied input slot.
type connection struct {
	track   Track
	ring    *Ring
	gain    float64
	scratch []int16
}

func (c *connection) mixInto(mix []int16) {
	n := c.ring.Read(c.scratch)
	if n == 0 {
		return
	}
	ApplyGain(c.scratch[:n], c.gain)
	AddSaturating(mix, c.scratch[:n])
}

// Subscription is one consumer of the mixed output. Every subscriber
// receives its own copy of every chunk; a slow consumer drops chunks
// rather than stalling the pump or its sibling subscribers.
type Subscription struct {
	C <-chan []int16

	ch      chan []int16
	id      int
	g       *MixGraph
	dropped atomic.Uint64
}

// Close removes the subscription from the graph. The channel is left
// open; it is closed by Teardown once the pump has stopped.
func (s *Subscription) Close() {
	if s.g != nil {
		s.g.unsubscribe(s.id)
	}
}

func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// MixGraph combines at most one microphone and one system-audio
// connection into a single mono 48 kHz stream, fanned out to any number
// of subscribers. All delivery is push-based; device callbacks only
// write into per-connection rings and never touch graph state.
type MixGraph struct {
	log  *slog.Logger
	actx audioContext

	micGain      float64
	sysGain      float64
	sysPermitted bool
	sysDevice    string

	mu      sync.Mutex
	mic     *connection
	system  *connection
	subs    map[int]*Subscription
	nextSub int
	chunks  uint64

	done        chan struct{}
	pumpDone    chan struct{}
	pumpStarted bool
	closeOnce   sync.Once
}

// NewMixGraph builds the graph for the requested sources. A nil graph
// with a nil error means mixing is unavailable for this session: nothing
// was requested, no backend is compiled in, or no source could ever
// connect. Individual device failures are logged and recovered from.
func NewMixGraph(opts MixOptions) (*MixGraph, error) {
	log := logging.L("audio")
	if !opts.Mic && !opts.System {
		return nil, nil
	}

	actx, err := newAudioContext()
	if err != nil {
		log.Warn("audio backend unavailable, recording without audio", "error", err)
		return nil, nil
	}

	g := newMixGraph(actx, opts)
	if g.mic == nil && !opts.System {
		// The only requested source failed; a graph that can only
		// ever produce silence is worse than no audio track.
		_ = actx.free()
		return nil, nil
	}

	g.pumpStarted = true
	go g.pump()
	log.Info("mix graph started",
		"backend", actx.name(),
		"mic", g.MicConnected(),
		"system_permitted", opts.System)
	return g, nil
}

// newMixGraph wires the graph without starting the pump, so tests can
// drive mixOnce deterministically.
func newMixGraph(actx audioContext, opts MixOptions) *MixGraph {
	g := &MixGraph{
		log:          logging.L("audio"),
		actx:         actx,
		micGain:      GainFactor(opts.MicGainDB),
		sysGain:      GainFactor(opts.SystemGainDB),
		sysPermitted: opts.System,
		sysDevice:    opts.SystemDevice,
		subs:         make(map[int]*Subscription),
		done:         make(chan struct{}),
		pumpDone:     make(chan struct{}),
	}

	if opts.Mic {
		track, err := openCaptureTrack(actx, false, opts.MicDevice)
		if err != nil {
			g.log.Warn("microphone unavailable, continuing without it",
				"device", opts.MicDevice, "error", err)
		} else if conn, err := g.connect(track, g.micGain); err != nil {
			g.log.Warn("microphone start failed, continuing without it", "error", err)
			track.Stop()
		} else {
			g.mic = conn
		}
	}
	return g
}

func (g *MixGraph) connect(track Track, gain float64) (*connection, error) {
	conn := &connection{
		track:   track,
		ring:    NewRing(SamplesPerChunk * 8),
		gain:    gain,
		scratch: make([]int16, SamplesPerChunk),
	}
	if err := track.Start(func(chunk []int16) { conn.ring.Write(chunk) }); err != nil {
		return nil, err
	}
	return conn, nil
}

// SystemPermitted reports whether the session config allows system
// audio to join the mix.
func (g *MixGraph) SystemPermitted() bool { return g.sysPermitted }

func (g *MixGraph) MicConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mic != nil
}

func (g *MixGraph) SystemConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.system != nil
}

// AttachSystem occupies the system slot with the given track, detaching
// any prior occupant first. The microphone is untouched either way.
func (g *MixGraph) AttachSystem(track Track) error {
	g.DetachSystem()

	conn, err := g.connect(track, g.sysGain)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.system = conn
	g.mu.Unlock()
	g.log.Info("system audio attached")
	return nil
}

// AttachSystemDevice opens a loopback/monitor capture for the given
// playback device (empty selects the configured or default one) and
// attaches it to the system slot.
func (g *MixGraph) AttachSystemDevice(deviceID string) error {
	if deviceID == "" {
		deviceID = g.sysDevice
	}
	track, err := openCaptureTrack(g.actx, true, deviceID)
	if err != nil {
		return err
	}
	if err := g.AttachSystem(track); err != nil {
		track.Stop()
		return err
	}
	return nil
}

// DetachSystem releases the system slot. Safe to call when empty.
func (g *MixGraph) DetachSystem() {
	g.mu.Lock()
	prev := g.system
	g.system = nil
	g.mu.Unlock()

	if prev != nil {
		prev.track.Stop()
		g.log.Info("system audio detached")
	}
}

// Subscribe registers a new consumer of the mixed output.
func (g *MixGraph) Subscribe() *Subscription {
	ch := make(chan []int16, 16)
	s := &Subscription{C: ch, ch: ch, g: g}

	g.mu.Lock()
	g.nextSub++
	s.id = g.nextSub
	g.subs[s.id] = s
	g.mu.Unlock()
	return s
}

func (g *MixGraph) unsubscribe(id int) {
	g.mu.Lock()
	delete(g.subs, id)
	g.mu.Unlock()
}

func (g *MixGraph) pump() {
	defer close(g.pumpDone)
	ticker := time.NewTicker(PeriodMS * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.mixOnce()
		}
	}
}

// mixOnce produces one 20 ms chunk. Sources that delivered nothing since
// the last pump contribute silence; the cadence never stalls.
func (g *MixGraph) mixOnce() {
	mix := make([]int16, SamplesPerChunk)

	g.mu.Lock()
	if c := g.mic; c != nil {
		c.mixInto(mix)
	}
	if c := g.system; c != nil {
		c.mixInto(mix)
	}
	subs := make([]*Subscription, 0, len(g.subs))
	for _, s := range g.subs {
		subs = append(subs, s)
	}
	g.chunks++
	g.mu.Unlock()

	for _, s := range subs {
		out := make([]int16, SamplesPerChunk)
		copy(out, mix)
		select {
		case s.ch <- out:
		default:
			s.dropped.Add(1)
		}
	}
}

// MixStats is a point-in-time snapshot for status reporting.
type MixStats struct {
	Chunks          uint64 `json:"chunks"`
	MicConnected    bool   `json:"mic_connected"`
	SystemConnected bool   `json:"system_connected"`
	MicOverruns     uint64 `json:"mic_overruns"`
	SystemOverruns  uint64 `json:"system_overruns"`
}

func (g *MixGraph) Stats() MixStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := MixStats{
		Chunks:          g.chunks,
		MicConnected:    g.mic != nil,
		SystemConnected: g.system != nil,
	}
	if g.mic != nil {
		st.MicOverruns = g.mic.ring.Overruns()
	}
	if g.system != nil {
		st.SystemOverruns = g.system.ring.Overruns()
	}
	return st
}

// Teardown stops the pump, disconnects all inputs and subscribers, and
// only then closes the audio context. Idempotent.
func (g *MixGraph) Teardown() {
	g.closeOnce.Do(func() {
		close(g.done)
		if g.pumpStarted {
			<-g.pumpDone
		}

		g.mu.Lock()
		mic, sys := g.mic, g.system
		g.mic, g.system = nil, nil
		subs := make([]*Subscription, 0, len(g.subs))
		for _, s := range g.subs {
			subs = append(subs, s)
		}
		g.subs = make(map[int]*Subscription)
		chunks := g.chunks
		g.mu.Unlock()

		if mic != nil {
			mic.track.Stop()
		}
		if sys != nil {
			sys.track.Stop()
		}
		for _, s := range subs {
			close(s.ch)
		}
		if err := g.actx.free(); err != nil {
			g.log.Warn("audio context close", "error", err)
		}
		g.log.Info("mix graph torn down", "chunks", chunks)
	})
}
