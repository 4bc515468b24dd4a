//go:build windows

package source

import (
	"sync"
	"time"
	"unsafe"
)

var procGetCursorPos = user32.NewProc("GetCursorPos")

type winPoint struct {
	X int32
	Y int32
}

// systemPointer samples the OS cursor and derives velocity from
// consecutive samples.
type systemPointer struct {
	mu       sync.Mutex
	havePrev bool
	prev     PointerState
	prevAt   time.Time
}

// NewSystemPointer returns the OS cursor provider for this platform.
func NewSystemPointer() PointerProvider {
	return &systemPointer{}
}

func (p *systemPointer) Pointer() PointerState {
	var pt winPoint
	ok, _, _ := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ok == 0 {
		return PointerState{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	st := PointerState{X: float64(pt.X), Y: float64(pt.Y), Valid: true}
	if p.havePrev {
		dt := now.Sub(p.prevAt).Seconds()
		if dt > 0 && dt < 0.5 {
			st.VX = (st.X - p.prev.X) / dt
			st.VY = (st.Y - p.prev.Y) / dt
		}
	}
	p.prev = st
	p.prevAt = now
	p.havePrev = true
	return st
}
