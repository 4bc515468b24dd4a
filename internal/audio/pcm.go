package audio

import (
	"math"
	"slices"
)

// BytesToS16 appends little-endian s16 frames decoded from src to dst.
func BytesToS16(src []byte, dst []int16) []int16 {
	n := len(src) / 2
	dst = slices.Grow(dst, n)
	for i := 0; i < n; i++ {
		dst = append(dst, int16(src[i*2])|(int16(src[i*2+1])<<8))
	}
	return dst
}

// S16ToBytes appends src as little-endian bytes to dst.
func S16ToBytes(src []int16, dst []byte) []byte {
	dst = slices.Grow(dst, len(src)*2)
	for _, s := range src {
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}

// BytesToF32 appends little-endian float32 frames decoded from src to dst.
func BytesToF32(src []byte, dst []float32) []float32 {
	n := len(src) / 4
	dst = slices.Grow(dst, n)
	for i := 0; i < n; i++ {
		bits := uint32(src[i*4]) | uint32(src[i*4+1])<<8 |
			uint32(src[i*4+2])<<16 | uint32(src[i*4+3])<<24
		dst = append(dst, math.Float32frombits(bits))
	}
	return dst
}

// FloatToS16 appends float32 samples converted to s16. Samples are
// clamped symmetrically to [-1, 1] first, so full scale maps to ±32767.
func FloatToS16(src []float32, dst []int16) []int16 {
	dst = slices.Grow(dst, len(src))
	for _, f := range src {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		dst = append(dst, int16(f*32767))
	}
	return dst
}

// GainFactor converts a dB gain to a linear factor.
func GainFactor(db float64) float64 {
	if db == 0 {
		return 1
	}
	return math.Pow(10, db/20)
}

// ApplyGain scales samples in place, saturating at the s16 range.
func ApplyGain(s []int16, factor float64) {
	if factor == 1 {
		return
	}
	for i, v := range s {
		f := float64(v) * factor
		switch {
		case f > 32767:
			s[i] = 32767
		case f < -32768:
			s[i] = -32768
		default:
			s[i] = int16(f)
		}
	}
}

// AddSaturating mixes src into dst element-wise with s16 saturation.
func AddSaturating(dst, src []int16) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		s := int32(dst[i]) + int32(src[i])
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		dst[i] = int16(s)
	}
}

// PeakDBFS reports the peak level of float samples in dBFS. Silence
// reports -96 dB, the practical floor for 16-bit audio.
func PeakDBFS(src []float32) float64 {
	var peak float64
	for _, f := range src {
		a := math.Abs(float64(f))
		if a > peak {
			peak = a
		}
	}
	if peak <= 0 {
		return -96
	}
	db := 20 * math.Log10(peak)
	if db < -96 {
		db = -96
	}
	return db
}
