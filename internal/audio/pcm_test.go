package audio

import (
	"math"
	"testing"
)

func TestBytesToS16RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 12345}
	bytes := S16ToBytes(in, nil)
	out := BytesToS16(bytes, nil)
	if len(out) != len(in) {
		t.Fatalf("round trip length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestBytesToF32(t *testing.T) {
	src := []float32{0, 0.5, -1, 1}
	var raw []byte
	for _, f := range src {
		bits := math.Float32bits(f)
		raw = append(raw, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	out := BytesToF32(raw, nil)
	if len(out) != len(src) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(src))
	}
	for i := range src {
		if out[i] != src[i] {
			t.Fatalf("sample %d = %v, want %v", i, out[i], src[i])
		}
	}
}

func TestFloatToS16ClampsSymmetrically(t *testing.T) {
	out := FloatToS16([]float32{0, 1, -1, 2.5, -2.5, 0.5}, nil)
	want := []int16{0, 32767, -32767, 32767, -32767, 16383}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], want[i])
		}
	}
	// Full positive and negative scale must be mirror images.
	if out[1] != -out[2] {
		t.Fatalf("clamp is asymmetric: +1 -> %d, -1 -> %d", out[1], out[2])
	}
}

func TestGainFactor(t *testing.T) {
	if f := GainFactor(0); f != 1 {
		t.Fatalf("GainFactor(0) = %v, want 1", f)
	}
	if f := GainFactor(6); math.Abs(f-1.9953) > 0.001 {
		t.Fatalf("GainFactor(6) = %v, want ~1.995", f)
	}
	if f := GainFactor(-6); math.Abs(f-0.5012) > 0.001 {
		t.Fatalf("GainFactor(-6) = %v, want ~0.501", f)
	}
}

func TestApplyGainSaturates(t *testing.T) {
	s := []int16{30000, -30000, 100}
	ApplyGain(s, 2)
	if s[0] != 32767 {
		t.Fatalf("positive overflow = %d, want 32767", s[0])
	}
	if s[1] != -32768 {
		t.Fatalf("negative overflow = %d, want -32768", s[1])
	}
	if s[2] != 200 {
		t.Fatalf("in-range sample = %d, want 200", s[2])
	}
}

func TestAddSaturating(t *testing.T) {
	dst := []int16{30000, -30000, 100}
	AddSaturating(dst, []int16{10000, -10000, -50})
	if dst[0] != 32767 || dst[1] != -32768 || dst[2] != 50 {
		t.Fatalf("AddSaturating = %v, want [32767 -32768 50]", dst)
	}
}

func TestPeakDBFS(t *testing.T) {
	if p := PeakDBFS(nil); p != -96 {
		t.Fatalf("silence peak = %v, want -96", p)
	}
	if p := PeakDBFS([]float32{0, 1, -0.2}); p != 0 {
		t.Fatalf("full-scale peak = %v, want 0", p)
	}
	if p := PeakDBFS([]float32{0.5}); math.Abs(p-(-6.02)) > 0.01 {
		t.Fatalf("half-scale peak = %v, want ~-6.02", p)
	}
}
