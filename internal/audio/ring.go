package audio

import "sync"

// Ring is a fixed-capacity sample buffer between a device callback and
// the mix pump. Writes overwrite the oldest samples on overflow, so a
// stalled consumer loses history instead of blocking the audio thread.
type Ring struct {
	mu   sync.Mutex
	buf  []int16
	head int // index of oldest sample
	n    int

	overrun uint64
}

func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]int16, capacity)}
}

func (r *Ring) Write(s []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(s) >= len(r.buf) {
		// Larger than the whole ring: keep only the newest samples.
		r.overrun += uint64(r.n + len(s) - len(r.buf))
		copy(r.buf, s[len(s)-len(r.buf):])
		r.head = 0
		r.n = len(r.buf)
		return
	}

	for _, v := range s {
		idx := (r.head + r.n) % len(r.buf)
		r.buf[idx] = v
		if r.n < len(r.buf) {
			r.n++
		} else {
			r.head = (r.head + 1) % len(r.buf)
			r.overrun++
		}
	}
}

// Read copies up to len(dst) of the oldest samples into dst and removes
// them. Returns the number of samples copied.
func (r *Ring) Read(dst []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(dst)
	if n > r.n {
		n = r.n
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.head = (r.head + n) % len(r.buf)
	r.n -= n
	return n
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Overruns reports how many samples were lost to overwrites.
func (r *Ring) Overruns() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overrun
}
