package media

import (
	"bytes"
	"testing"
)

var (
	testSPS = []byte{0x67, 0x42, 0xc0, 0x1f, 0x8c, 0x8d, 0x40}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
	testIDR = []byte{0x65, 0x88, 0x84, 0x21, 0xa0}
)

// annexB joins NAL units with alternating 4-byte and 3-byte start codes
// so both forms get exercised.
func annexB(units ...[]byte) []byte {
	var b []byte
	for i, u := range units {
		if i%2 == 0 {
			b = append(b, 0, 0, 0, 1)
		} else {
			b = append(b, 0, 0, 1)
		}
		b = append(b, u...)
	}
	return b
}

func TestSplitNALUs(t *testing.T) {
	stream := annexB(testSPS, testPPS, testIDR)
	units := SplitNALUs(stream)
	if len(units) != 3 {
		t.Fatalf("SplitNALUs returned %d units, want 3", len(units))
	}
	for i, want := range [][]byte{testSPS, testPPS, testIDR} {
		if !bytes.Equal(units[i], want) {
			t.Fatalf("unit %d = %x, want %x", i, units[i], want)
		}
	}
}

func TestSplitNALUsIgnoresLeadingGarbage(t *testing.T) {
	stream := append([]byte{0xde, 0xad}, annexB(testIDR)...)
	units := SplitNALUs(stream)
	if len(units) != 1 || !bytes.Equal(units[0], testIDR) {
		t.Fatalf("SplitNALUs = %x, want single IDR unit", units)
	}
}

func TestSplitNALUsEmpty(t *testing.T) {
	if units := SplitNALUs(nil); len(units) != 0 {
		t.Fatalf("SplitNALUs(nil) returned %d units", len(units))
	}
	if units := SplitNALUs([]byte{0, 0}); len(units) != 0 {
		t.Fatalf("SplitNALUs on truncated start code returned %d units", len(units))
	}
}

func TestNALType(t *testing.T) {
	if got := NALType(testSPS); got != NALSPS {
		t.Fatalf("NALType(sps) = %d, want %d", got, NALSPS)
	}
	if got := NALType(testPPS); got != NALPPS {
		t.Fatalf("NALType(pps) = %d, want %d", got, NALPPS)
	}
	if got := NALType(testIDR); got != NALSliceIDR {
		t.Fatalf("NALType(idr) = %d, want %d", got, NALSliceIDR)
	}
}

func TestContainsIDR(t *testing.T) {
	if !ContainsIDR(annexB(testSPS, testPPS, testIDR)) {
		t.Fatal("stream with IDR slice not detected")
	}
	if ContainsIDR(annexB(testSPS, testPPS)) {
		t.Fatal("parameter-set-only stream reported as IDR")
	}
}

func TestExtractParameterSets(t *testing.T) {
	sps, pps := ExtractParameterSets(annexB(testSPS, testPPS, testIDR))
	if len(sps) != 1 || !bytes.Equal(sps[0], testSPS) {
		t.Fatalf("sps = %x, want [%x]", sps, testSPS)
	}
	if len(pps) != 1 || !bytes.Equal(pps[0], testPPS) {
		t.Fatalf("pps = %x, want [%x]", pps, testPPS)
	}
}

func TestBuildAVCDecoderConfig(t *testing.T) {
	cfg, err := BuildAVCDecoderConfig([][]byte{testSPS}, [][]byte{testPPS})
	if err != nil {
		t.Fatalf("BuildAVCDecoderConfig: %v", err)
	}
	if cfg[0] != 1 {
		t.Fatalf("configurationVersion = %d, want 1", cfg[0])
	}
	if cfg[1] != testSPS[1] || cfg[2] != testSPS[2] || cfg[3] != testSPS[3] {
		t.Fatalf("profile/compat/level = %x, want %x", cfg[1:4], testSPS[1:4])
	}
	if cfg[4] != 0xff {
		t.Fatalf("lengthSize byte = %#x, want 0xff", cfg[4])
	}
	if cfg[5]&0x1f != 1 {
		t.Fatalf("numOfSPS = %d, want 1", cfg[5]&0x1f)
	}
	spsLen := int(cfg[6])<<8 | int(cfg[7])
	if spsLen != len(testSPS) {
		t.Fatalf("sps length = %d, want %d", spsLen, len(testSPS))
	}
	if !bytes.Equal(cfg[8:8+spsLen], testSPS) {
		t.Fatal("embedded SPS does not match input")
	}
	rest := cfg[8+spsLen:]
	if rest[0] != 1 {
		t.Fatalf("numOfPPS = %d, want 1", rest[0])
	}
	ppsLen := int(rest[1])<<8 | int(rest[2])
	if ppsLen != len(testPPS) || !bytes.Equal(rest[3:3+ppsLen], testPPS) {
		t.Fatal("embedded PPS does not match input")
	}
}

func TestBuildAVCDecoderConfigRequiresBothSets(t *testing.T) {
	if _, err := BuildAVCDecoderConfig(nil, [][]byte{testPPS}); err == nil {
		t.Fatal("expected error without SPS")
	}
	if _, err := BuildAVCDecoderConfig([][]byte{testSPS}, nil); err == nil {
		t.Fatal("expected error without PPS")
	}
}

func TestAnnexBToLengthPrefixed(t *testing.T) {
	got := AnnexBToLengthPrefixed(annexB(testSPS, testIDR))

	want := []byte{0, 0, 0, byte(len(testSPS))}
	want = append(want, testSPS...)
	want = append(want, 0, 0, 0, byte(len(testIDR)))
	want = append(want, testIDR...)

	if !bytes.Equal(got, want) {
		t.Fatalf("AnnexBToLengthPrefixed = %x, want %x", got, want)
	}
}
