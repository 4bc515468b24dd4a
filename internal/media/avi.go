package media

import (
	"bytes"
	"fmt"
)

// AVI flag bits, from the RIFF AVI reference.
const (
	aviifKeyframe  = 0x10
	avifHasIndex   = 0x10
	avifInterleave = 0x100
	avifTrustCK    = 0x800
)

// AVIConfig describes the streams of a fallback recording.
type AVIConfig struct {
	Width         int
	Height        int
	FPS           int
	AudioChannels int // 0 = video only
	SampleRate    int
}

type aviIndexEntry struct {
	id     string
	flags  uint32
	offset uint32
	size   uint32
}

// AVIWriter accumulates MJPEG frames and s16 PCM chunks and assembles a
// complete RIFF AVI file when closed. A zero-length video chunk repeats
// the previous frame, which is how unchanged composite frames are stored
// without re-encoding.
type AVIWriter struct {
	cfg       AVIConfig
	movi      bytes.Buffer
	index     []aviIndexEntry
	frames    int
	audioLen  int
	maxVideo  int
	out       []byte
	closed    bool
}

func NewAVIWriter(cfg AVIConfig) *AVIWriter {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.AudioChannels > 0 && cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	return &AVIWriter{cfg: cfg}
}

func le16(b *bytes.Buffer, v uint16) {
	b.WriteByte(byte(v))
	b.WriteByte(byte(v >> 8))
}

func le32(b *bytes.Buffer, v uint32) {
	b.WriteByte(byte(v))
	b.WriteByte(byte(v >> 8))
	b.WriteByte(byte(v >> 16))
	b.WriteByte(byte(v >> 24))
}

// appendChunk records an index entry and writes the chunk into the movi
// accumulator. Index offsets are relative to the 'movi' fourcc, so the
// first chunk sits at offset 4.
func (w *AVIWriter) appendChunk(id string, data []byte, flags uint32) {
	w.index = append(w.index, aviIndexEntry{
		id:     id,
		flags:  flags,
		offset: uint32(4 + w.movi.Len()),
		size:   uint32(len(data)),
	})
	w.movi.WriteString(id)
	le32(&w.movi, uint32(len(data)))
	w.movi.Write(data)
	if len(data)%2 == 1 {
		w.movi.WriteByte(0)
	}
}

// WriteVideoFrame appends one JPEG-compressed frame. Every MJPEG frame
// is independently decodable, so each one is indexed as a keyframe.
func (w *AVIWriter) WriteVideoFrame(jpeg []byte) error {
	if w.closed {
		return fmt.Errorf("avi: writer closed")
	}
	if len(jpeg) == 0 {
		return fmt.Errorf("avi: empty video frame")
	}
	w.appendChunk("00dc", jpeg, aviifKeyframe)
	w.frames++
	if len(jpeg) > w.maxVideo {
		w.maxVideo = len(jpeg)
	}
	return nil
}

// WriteRepeatFrame appends a zero-length video chunk, instructing players
// to hold the previous frame for one more frame interval.
func (w *AVIWriter) WriteRepeatFrame() error {
	if w.closed {
		return fmt.Errorf("avi: writer closed")
	}
	if w.frames == 0 {
		return fmt.Errorf("avi: repeat frame before any video frame")
	}
	w.appendChunk("00dc", nil, 0)
	w.frames++
	return nil
}

// WriteAudio appends a chunk of interleaved s16 little-endian PCM.
func (w *AVIWriter) WriteAudio(pcm []byte) error {
	if w.closed {
		return fmt.Errorf("avi: writer closed")
	}
	if w.cfg.AudioChannels == 0 {
		return fmt.Errorf("avi: file has no audio stream")
	}
	w.appendChunk("01wb", pcm, aviifKeyframe)
	w.audioLen += len(pcm)
	return nil
}

// Frames returns the number of video chunks written, repeats included.
func (w *AVIWriter) Frames() int { return w.frames }

// Close assembles the final RIFF file.
func (w *AVIWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var body bytes.Buffer
	body.WriteString("AVI ")
	writeRIFFList(&body, "hdrl", w.buildHeaders())
	writeRIFFList(&body, "movi", w.movi.Bytes())
	writeRIFFChunk(&body, "idx1", w.buildIndex())

	var out bytes.Buffer
	out.WriteString("RIFF")
	le32(&out, uint32(body.Len()))
	out.Write(body.Bytes())
	w.out = out.Bytes()

	w.movi = bytes.Buffer{}
	w.index = nil
	return nil
}

// Bytes returns the assembled file. Valid after Close.
func (w *AVIWriter) Bytes() []byte { return w.out }

func writeRIFFList(b *bytes.Buffer, kind string, payload []byte) {
	b.WriteString("LIST")
	le32(b, uint32(4+len(payload)))
	b.WriteString(kind)
	b.Write(payload)
}

func writeRIFFChunk(b *bytes.Buffer, id string, payload []byte) {
	b.WriteString(id)
	le32(b, uint32(len(payload)))
	b.Write(payload)
	if len(payload)%2 == 1 {
		b.WriteByte(0)
	}
}

func (w *AVIWriter) buildHeaders() []byte {
	fps := w.cfg.FPS
	blockAlign := w.cfg.AudioChannels * 2
	streams := 1
	maxBytesPerSec := w.maxVideo * fps
	if w.cfg.AudioChannels > 0 {
		streams = 2
		maxBytesPerSec += w.cfg.SampleRate * blockAlign
	}

	var avih bytes.Buffer
	le32(&avih, uint32(1_000_000/fps)) // dwMicroSecPerFrame
	le32(&avih, uint32(maxBytesPerSec))
	le32(&avih, 0) // dwPaddingGranularity
	le32(&avih, avifHasIndex|avifInterleave|avifTrustCK)
	le32(&avih, uint32(w.frames))
	le32(&avih, 0) // dwInitialFrames
	le32(&avih, uint32(streams))
	le32(&avih, uint32(w.maxVideo))
	le32(&avih, uint32(w.cfg.Width))
	le32(&avih, uint32(w.cfg.Height))
	le32(&avih, 0)
	le32(&avih, 0)
	le32(&avih, 0)
	le32(&avih, 0)

	var hdrl bytes.Buffer
	writeRIFFChunk(&hdrl, "avih", avih.Bytes())
	writeRIFFList(&hdrl, "strl", w.buildVideoStream())
	if w.cfg.AudioChannels > 0 {
		writeRIFFList(&hdrl, "strl", w.buildAudioStream())
	}
	return hdrl.Bytes()
}

func (w *AVIWriter) buildVideoStream() []byte {
	var strh bytes.Buffer
	strh.WriteString("vids")
	strh.WriteString("MJPG")
	le32(&strh, 0) // dwFlags
	le32(&strh, 0) // wPriority + wLanguage
	le32(&strh, 0) // dwInitialFrames
	le32(&strh, 1) // dwScale
	le32(&strh, uint32(w.cfg.FPS))
	le32(&strh, 0) // dwStart
	le32(&strh, uint32(w.frames))
	le32(&strh, uint32(w.maxVideo))
	le32(&strh, 0xFFFFFFFF) // dwQuality: driver default
	le32(&strh, 0)          // dwSampleSize: variable
	le16(&strh, 0)
	le16(&strh, 0)
	le16(&strh, uint16(w.cfg.Width))
	le16(&strh, uint16(w.cfg.Height))

	// BITMAPINFOHEADER
	var strf bytes.Buffer
	le32(&strf, 40)
	le32(&strf, uint32(w.cfg.Width))
	le32(&strf, uint32(w.cfg.Height))
	le16(&strf, 1)  // biPlanes
	le16(&strf, 24) // biBitCount
	strf.WriteString("MJPG")
	le32(&strf, uint32(w.cfg.Width*w.cfg.Height*3))
	le32(&strf, 0)
	le32(&strf, 0)
	le32(&strf, 0)
	le32(&strf, 0)

	var strl bytes.Buffer
	writeRIFFChunk(&strl, "strh", strh.Bytes())
	writeRIFFChunk(&strl, "strf", strf.Bytes())
	return strl.Bytes()
}

func (w *AVIWriter) buildAudioStream() []byte {
	blockAlign := w.cfg.AudioChannels * 2
	samples := 0
	if blockAlign > 0 {
		samples = w.audioLen / blockAlign
	}

	var strh bytes.Buffer
	strh.WriteString("auds")
	le32(&strh, 0) // fccHandler
	le32(&strh, 0) // dwFlags
	le32(&strh, 0) // wPriority + wLanguage
	le32(&strh, 0) // dwInitialFrames
	le32(&strh, 1) // dwScale
	le32(&strh, uint32(w.cfg.SampleRate))
	le32(&strh, 0) // dwStart
	le32(&strh, uint32(samples))
	le32(&strh, uint32(w.cfg.SampleRate*blockAlign))
	le32(&strh, 0xFFFFFFFF)
	le32(&strh, uint32(blockAlign)) // dwSampleSize
	le16(&strh, 0)
	le16(&strh, 0)
	le16(&strh, 0)
	le16(&strh, 0)

	// WAVEFORMATEX, PCM so no cbSize
	var strf bytes.Buffer
	le16(&strf, 1) // WAVE_FORMAT_PCM
	le16(&strf, uint16(w.cfg.AudioChannels))
	le32(&strf, uint32(w.cfg.SampleRate))
	le32(&strf, uint32(w.cfg.SampleRate*blockAlign))
	le16(&strf, uint16(blockAlign))
	le16(&strf, 16)

	var strl bytes.Buffer
	writeRIFFChunk(&strl, "strh", strh.Bytes())
	writeRIFFChunk(&strl, "strf", strf.Bytes())
	return strl.Bytes()
}

func (w *AVIWriter) buildIndex() []byte {
	var idx bytes.Buffer
	for _, e := range w.index {
		idx.WriteString(e.id)
		le32(&idx, e.flags)
		le32(&idx, e.offset)
		le32(&idx, e.size)
	}
	return idx.Bytes()
}
