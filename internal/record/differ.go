package record

import (
	"hash/crc32"
	"sync"
	"sync/atomic"
)

// frameDiffer detects unchanged composites via a CRC32 of the raw
// pixel data, letting the fallback store repeat markers instead of
// re-encoding identical frames.
type frameDiffer struct {
	mu       sync.Mutex
	lastHash uint32
	hasLast  bool
	repeats  atomic.Uint64
	total    atomic.Uint64
}

func newFrameDiffer() *frameDiffer {
	return &frameDiffer{}
}

// HasChanged reports whether pix differs from the previously accepted
// frame. The first frame always counts as changed.
func (d *frameDiffer) HasChanged(pix []byte) bool {
	d.total.Add(1)
	h := crc32.ChecksumIEEE(pix)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast && h == d.lastHash {
		d.repeats.Add(1)
		return false
	}
	d.lastHash = h
	d.hasLast = true
	return true
}

// Reset clears the stored hash so the next frame is always encoded.
func (d *frameDiffer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLast = false
}

// Stats returns (frames checked, repeats detected).
func (d *frameDiffer) Stats() (total, repeats uint64) {
	return d.total.Load(), d.repeats.Load()
}
