package media

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriteWAV(t *testing.T) {
	pcm := make([]byte, 960*2)
	var buf bytes.Buffer
	if err := WriteWAV(&buf, pcm, 1, 48000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	out := buf.Bytes()

	if len(out) != 44+len(pcm) {
		t.Fatalf("file length = %d, want %d", len(out), 44+len(pcm))
	}
	if string(out[:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); int(got) != 36+len(pcm) {
		t.Fatalf("RIFF size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(out[22:24]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 48000 {
		t.Fatalf("sample rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); int(got) != len(pcm) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
}

func TestWriteWAVRejectsBadParams(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, nil, 0, 48000); err == nil {
		t.Fatal("expected error for zero channels")
	}
	if err := WriteWAV(&buf, nil, 1, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}
