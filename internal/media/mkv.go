package media

import (
	"bytes"
	"fmt"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
)

// MKVConfig describes the tracks of an in-memory Matroska segment.
// SPS/PPS come from the first encoded access unit and become the
// video CodecPrivate; AudioChannels 0 builds a video-only segment.
type MKVConfig struct {
	Width         int
	Height        int
	FPS           int
	SPS           [][]byte
	PPS           [][]byte
	AudioChannels int
	WritingApp    string
}

// MKVWriter muxes length-prefixed H.264 samples and Opus packets into a
// Matroska segment held in memory. Callers pass timestamps in µs; the
// container runs at a 1 ms timecode scale.
type MKVWriter struct {
	buf    *bytes.Buffer
	video  webm.BlockWriteCloser
	audio  webm.BlockWriteCloser
	closed bool
}

type nopWriteCloser struct {
	*bytes.Buffer
}

func (nopWriteCloser) Close() error { return nil }

func NewMKVWriter(cfg MKVConfig) (*MKVWriter, error) {
	avcc, err := BuildAVCDecoderConfig(cfg.SPS, cfg.PPS)
	if err != nil {
		return nil, err
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	app := cfg.WritingApp
	if app == "" {
		app = "takeone-recorder"
	}

	tracks := []webm.TrackEntry{{
		Name:            "Video",
		TrackNumber:     1,
		TrackUID:        1,
		CodecID:         "V_MPEG4/ISO/AVC",
		CodecPrivate:    avcc,
		TrackType:       1,
		DefaultDuration: uint64(time.Second / time.Duration(cfg.FPS)),
		Video: &webm.Video{
			PixelWidth:  uint64(cfg.Width),
			PixelHeight: uint64(cfg.Height),
		},
	}}
	if cfg.AudioChannels > 0 {
		tracks = append(tracks, webm.TrackEntry{
			Name:            "Audio",
			TrackNumber:     2,
			TrackUID:        2,
			CodecID:         "A_OPUS",
			CodecPrivate:    BuildOpusHead(cfg.AudioChannels, 48000),
			TrackType:       2,
			DefaultDuration: 20_000_000,
			Audio: &webm.Audio{
				SamplingFrequency: 48000.0,
				Channels:          uint64(cfg.AudioChannels),
			},
		})
	}

	buf := &bytes.Buffer{}
	ws, err := webm.NewSimpleBlockWriter(nopWriteCloser{buf}, tracks,
		mkvcore.WithEBMLHeader(&webm.EBMLHeader{
			EBMLVersion:        1,
			EBMLReadVersion:    1,
			EBMLMaxIDLength:    4,
			EBMLMaxSizeLength:  8,
			DocType:            "matroska",
			DocTypeVersion:     4,
			DocTypeReadVersion: 2,
		}),
		mkvcore.WithSegmentInfo(&webm.Info{
			TimecodeScale: 1_000_000, // 1 ms
			MuxingApp:     app,
			WritingApp:    app,
			DateUTC:       time.Now(),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("mkv: create block writers: %w", err)
	}

	w := &MKVWriter{buf: buf, video: ws[0]}
	if cfg.AudioChannels > 0 {
		w.audio = ws[1]
	}
	return w, nil
}

// WriteVideo appends one length-prefixed H.264 access unit.
func (w *MKVWriter) WriteVideo(keyframe bool, tsMicros int64, sample []byte) error {
	if w.closed {
		return fmt.Errorf("mkv: writer closed")
	}
	_, err := w.video.Write(keyframe, tsMicros/1000, sample)
	return err
}

// WriteAudio appends one Opus packet.
func (w *MKVWriter) WriteAudio(tsMicros int64, packet []byte) error {
	if w.closed {
		return fmt.Errorf("mkv: writer closed")
	}
	if w.audio == nil {
		return fmt.Errorf("mkv: segment has no audio track")
	}
	_, err := w.audio.Write(true, tsMicros/1000, packet)
	return err
}

// Close finalizes the segment, video track first.
func (w *MKVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.video.Close()
	if w.audio != nil {
		if aerr := w.audio.Close(); err == nil {
			err = aerr
		}
	}
	return err
}

// Bytes returns the assembled segment. Valid after Close.
func (w *MKVWriter) Bytes() []byte {
	return w.buf.Bytes()
}
