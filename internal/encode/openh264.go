//go:build openh264

package encode

import (
	"fmt"

	openh264 "github.com/y9o/go-openh264"
)

func init() {
	registerVideoFactory(newOpenH264Backend)
}

// openH264Backend drives the Cisco reference encoder. The binding's types
// stay confined to this file; the rest of the package sees VideoBackend.
type openH264Backend struct {
	enc     *openh264.SVCEncoder
	width   int
	height  int
	frameMS int64
	ts      int64
}

func newOpenH264Backend(cfg BackendConfig) (VideoBackend, error) {
	if cfg.Codec != "h264" {
		return nil, fmt.Errorf("openh264 unsupported codec: %s", cfg.Codec)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, fmt.Errorf("openh264 invalid config: %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS)
	}

	enc, err := openh264.NewSVCEncoder()
	if err != nil {
		return nil, err
	}
	param := openh264.EncParamBase{
		UsageType:     openh264.CameraVideoRealTime,
		PicWidth:      int32(cfg.Width),
		PicHeight:     int32(cfg.Height),
		TargetBitrate: int32(cfg.BitrateBps),
		MaxFrameRate:  float32(cfg.FPS),
	}
	if err := enc.Initialize(&param); err != nil {
		enc.Destroy()
		return nil, err
	}

	return &openH264Backend{
		enc:     enc,
		width:   cfg.Width,
		height:  cfg.Height,
		frameMS: int64(1000 / cfg.FPS),
	}, nil
}

func (o *openH264Backend) Encode(i420 []byte, forceKeyframe bool) ([]byte, error) {
	if forceKeyframe {
		if err := o.enc.ForceIntraFrame(); err != nil {
			return nil, err
		}
	}

	ySize := o.width * o.height
	cSize := ySize / 4
	pic := openh264.SourcePicture{
		ColorFormat: openh264.VideoFormatI420,
		PicWidth:    int32(o.width),
		PicHeight:   int32(o.height),
		Stride:      [4]int32{int32(o.width), int32(o.width / 2), int32(o.width / 2), 0},
		Data: [4][]byte{
			i420[:ySize],
			i420[ySize : ySize+cSize],
			i420[ySize+cSize:],
			nil,
		},
		TimeStamp: o.ts,
	}
	o.ts += o.frameMS

	info, err := o.enc.EncodeFrame(&pic)
	if err != nil {
		return nil, err
	}
	if info.FrameType == openh264.FrameTypeSkip {
		return nil, nil
	}
	return info.Bitstream(), nil
}

func (o *openH264Backend) Close() error {
	o.enc.Destroy()
	return nil
}

func (o *openH264Backend) Name() string {
	return "openh264"
}
