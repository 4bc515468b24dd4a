package audio

import "testing"

func TestRingReadWrite(t *testing.T) {
	r := NewRing(8)
	r.Write([]int16{1, 2, 3})
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	dst := make([]int16, 2)
	if n := r.Read(dst); n != 2 {
		t.Fatalf("Read = %d, want 2", n)
	}
	if dst[0] != 1 || dst[1] != 2 {
		t.Fatalf("read %v, want [1 2]", dst)
	}
	if r.Len() != 1 {
		t.Fatalf("Len after read = %d, want 1", r.Len())
	}
}

func TestRingShortRead(t *testing.T) {
	r := NewRing(8)
	r.Write([]int16{7})
	dst := make([]int16, 4)
	if n := r.Read(dst); n != 1 {
		t.Fatalf("Read = %d, want 1", n)
	}
	if n := r.Read(dst); n != 0 {
		t.Fatalf("Read on empty ring = %d, want 0", n)
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(4)
	r.Write([]int16{1, 2, 3, 4})
	r.Write([]int16{5, 6})
	if r.Len() != 4 {
		t.Fatalf("Len = %d, want 4 (capacity)", r.Len())
	}
	if r.Overruns() != 2 {
		t.Fatalf("Overruns = %d, want 2", r.Overruns())
	}
	dst := make([]int16, 4)
	r.Read(dst)
	want := []int16{3, 4, 5, 6}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("read %v, want %v", dst, want)
		}
	}
}

func TestRingOversizedWriteKeepsNewest(t *testing.T) {
	r := NewRing(4)
	r.Write([]int16{1, 2, 3, 4, 5, 6})
	dst := make([]int16, 4)
	if n := r.Read(dst); n != 4 {
		t.Fatalf("Read = %d, want 4", n)
	}
	want := []int16{3, 4, 5, 6}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("read %v, want %v", dst, want)
		}
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRing(4)
	dst := make([]int16, 2)
	for round := int16(0); round < 5; round++ {
		r.Write([]int16{round * 2, round*2 + 1})
		if n := r.Read(dst); n != 2 {
			t.Fatalf("round %d: Read = %d, want 2", round, n)
		}
		if dst[0] != round*2 || dst[1] != round*2+1 {
			t.Fatalf("round %d: read %v", round, dst)
		}
	}
	if r.Overruns() != 0 {
		t.Fatalf("Overruns = %d, want 0", r.Overruns())
	}
}
