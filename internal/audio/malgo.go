//go:build cgo && !noaudio

package audio

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/takeonehq/recorder/internal/logging"
)

func init() {
	newAudioContext = newMalgoContext
}

var emptyDeviceID malgo.DeviceID

func toMalgoDeviceID(id string) malgo.DeviceID {
	var res malgo.DeviceID
	copy(res[:], id)
	return res
}

// malgoContext implements audioContext on top of the malgo library.
type malgoContext struct {
	mctx *malgo.AllocatedContext
}

func newMalgoContext() (audioContext, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{mctx: mctx}, nil
}

func (mc *malgoContext) name() string { return "malgo" }

func (mc *malgoContext) free() error {
	if err := mc.mctx.Uninit(); err != nil {
		return err
	}
	mc.mctx.Free()
	return nil
}

func (mc *malgoContext) initCapture(deviceID string, cb dataProc) (captureDevice, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = SampleRate
	cfg.PeriodSizeInMilliseconds = PeriodMS
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = Channels
	cfg.Alsa.NoMMap = 1
	if id := toMalgoDeviceID(deviceID); id != emptyDeviceID {
		cfg.Capture.DeviceID = id.Pointer()
	}

	return malgo.InitDevice(mc.mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: malgo.DataProc(cb),
	})
}

// initLoopback captures what the machine is playing. WASAPI supports
// loopback natively; elsewhere the capture falls back to a pulse/pipewire
// monitor source if one exists.
func (mc *malgoContext) initLoopback(deviceID string, cb dataProc) (captureDevice, error) {
	if runtime.GOOS == "windows" {
		cfg := malgo.DefaultDeviceConfig(malgo.Loopback)
		cfg.SampleRate = SampleRate
		cfg.PeriodSizeInMilliseconds = PeriodMS
		cfg.Capture.Format = malgo.FormatS16
		cfg.Capture.Channels = Channels
		// Loopback opens the playback device named here, default when empty.
		if id := toMalgoDeviceID(deviceID); id != emptyDeviceID {
			cfg.Playback.DeviceID = id.Pointer()
		}
		return malgo.InitDevice(mc.mctx.Context, cfg, malgo.DeviceCallbacks{
			Data: malgo.DataProc(cb),
		})
	}

	if deviceID == "" {
		mon, err := findMonitorDevice(mc.mctx)
		if err != nil {
			return nil, err
		}
		deviceID = mon
	}
	return mc.initCapture(deviceID, cb)
}

func findMonitorDevice(mctx *malgo.AllocatedContext) (string, error) {
	devs, err := listMalgoDevices(malgo.Capture, mctx)
	if err != nil {
		return "", err
	}
	for _, d := range devs {
		if d.IsMonitor {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("audio: no monitor capture source found")
}

func isMonitorName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "monitor")
}

func listMalgoDevices(typ malgo.DeviceType, mctx *malgo.AllocatedContext) ([]Device, error) {
	log := logging.L("audio")
	devices, err := mctx.Devices(typ)
	if err != nil {
		return nil, err
	}

	res := make([]Device, 0, len(devices))
	seen := make(map[string]struct{}, len(devices))
	for _, dev := range devices {
		full, err := mctx.DeviceInfo(typ, dev.ID, malgo.Shared)
		if err != nil {
			log.Warn("unable to query audio device", "error", err)
			continue
		}

		id := string(append([]byte(nil), full.ID[:]...))
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		res = append(res, Device{
			ID:        id,
			Name:      full.Name(),
			IsDefault: full.IsDefault == 1,
			IsMonitor: typ == malgo.Capture && isMonitorName(full.Name()),
		})
	}
	return res, nil
}

// ListDevices enumerates capture and playback devices.
func ListDevices() (Devices, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return Devices{}, err
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	capture, err := listMalgoDevices(malgo.Capture, mctx)
	if err != nil {
		return Devices{}, err
	}
	playback, err := listMalgoDevices(malgo.Playback, mctx)
	if err != nil {
		return Devices{}, err
	}
	return Devices{Capture: capture, Playback: playback}, nil
}

// MicCheck records a short clip from the given capture device at float
// precision, returning the s16 PCM and the observed peak in dBFS so the
// operator can verify levels before a session.
func MicCheck(ctx context.Context, deviceID string, d time.Duration) ([]byte, float64, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = SampleRate
	cfg.PeriodSizeInMilliseconds = PeriodMS
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = Channels
	cfg.Alsa.NoMMap = 1
	if id := toMalgoDeviceID(deviceID); id != emptyDeviceID {
		cfg.Capture.DeviceID = id.Pointer()
	}

	var mu sync.Mutex
	var floats []float32
	onRecv := func(_, in []byte, frameCount uint32) {
		readSize := int(frameCount) * 4 * Channels
		if len(in) < readSize {
			readSize = len(in)
		}
		mu.Lock()
		floats = BytesToF32(in[:readSize], floats)
		mu.Unlock()
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return nil, 0, err
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, 0, err
	}

	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
	_ = dev.Stop()
	dev.Uninit()

	mu.Lock()
	defer mu.Unlock()
	if len(floats) == 0 {
		return nil, 0, fmt.Errorf("audio: captured no data")
	}
	peak := PeakDBFS(floats)
	s16 := FloatToS16(floats, make([]int16, 0, len(floats)))
	return S16ToBytes(s16, make([]byte, 0, len(s16)*2)), peak, nil
}
