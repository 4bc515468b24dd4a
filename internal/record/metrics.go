package record

import (
	"sync"
	"time"
)

// SessionMetrics tracks live counters for one recording session. The
// session loop and the fallback ticker both write; the status verb and
// periodic logging read snapshots.
type SessionMetrics struct {
	mu sync.RWMutex

	TicksAccepted   uint64
	PrimaryFrames   uint64
	PrimaryErrors   uint64
	FallbackFrames  uint64
	FallbackRepeats uint64
	FallbackAudio   uint64

	LastComposeTime time.Duration
	LastEncodeTime  time.Duration
	encodeEwmaMs    float64
	FallbackBytes   uint64

	startTime time.Time
}

func newSessionMetrics() *SessionMetrics {
	return &SessionMetrics{startTime: time.Now()}
}

func (m *SessionMetrics) RecordTick(compose time.Duration) {
	m.mu.Lock()
	m.TicksAccepted++
	m.LastComposeTime = compose
	m.mu.Unlock()
}

func (m *SessionMetrics) RecordPrimary(encode time.Duration) {
	m.mu.Lock()
	m.PrimaryFrames++
	m.LastEncodeTime = encode
	m.mu.Unlock()
}

func (m *SessionMetrics) RecordPrimaryError() {
	m.mu.Lock()
	m.PrimaryErrors++
	m.mu.Unlock()
}

func (m *SessionMetrics) RecordFallbackFrame(repeat bool) {
	m.mu.Lock()
	if repeat {
		m.FallbackRepeats++
	} else {
		m.FallbackFrames++
	}
	m.mu.Unlock()
}

func (m *SessionMetrics) RecordFallbackAudio() {
	m.mu.Lock()
	m.FallbackAudio++
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy for logging and the status
// verb.
type MetricsSnapshot struct {
	TicksAccepted   uint64        `json:"ticksAccepted"`
	PrimaryFrames   uint64        `json:"primaryFrames"`
	PrimaryErrors   uint64        `json:"primaryErrors"`
	FallbackFrames  uint64        `json:"fallbackFrames"`
	FallbackRepeats uint64        `json:"fallbackRepeats"`
	FallbackAudio   uint64        `json:"fallbackAudio"`
	ComposeMs       float64       `json:"composeMs"`
	EncodeMs        float64       `json:"encodeMs"`
	AchievedFPS     float64       `json:"achievedFps"`
	Uptime          time.Duration `json:"uptime"`
}

func (m *SessionMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := time.Since(m.startTime)
	fps := 0.0
	if uptime.Seconds() > 0 {
		fps = float64(m.TicksAccepted) / uptime.Seconds()
	}

	return MetricsSnapshot{
		TicksAccepted:   m.TicksAccepted,
		PrimaryFrames:   m.PrimaryFrames,
		PrimaryErrors:   m.PrimaryErrors,
		FallbackFrames:  m.FallbackFrames,
		FallbackRepeats: m.FallbackRepeats,
		FallbackAudio:   m.FallbackAudio,
		ComposeMs:       float64(m.LastComposeTime.Microseconds()) / 1000.0,
		EncodeMs:        float64(m.LastEncodeTime.Microseconds()) / 1000.0,
		AchievedFPS:     fps,
		Uptime:          uptime,
	}
}
