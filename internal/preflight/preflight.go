package preflight

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/takeonehq/recorder/internal/audio"
	"github.com/takeonehq/recorder/internal/compose"
	"github.com/takeonehq/recorder/internal/config"
	"github.com/takeonehq/recorder/internal/encode"
	"github.com/takeonehq/recorder/internal/logging"
)

// Status ranks one check's outcome.
type Status string

const (
	OK       Status = "ok"
	Degraded Status = "degraded"
	Failed   Status = "failed"
)

// Check is one named preflight result.
type Check struct {
	Name    string `json:"name" yaml:"name"`
	Status  Status `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Blocking marks checks that must pass before recording starts.
	Blocking bool `json:"blocking,omitempty" yaml:"blocking,omitempty"`
}

// HostInfo is the doctor's machine summary.
type HostInfo struct {
	OS       string `json:"os" yaml:"os"`
	Platform string `json:"platform" yaml:"platform"`
	Arch     string `json:"arch" yaml:"arch"`
	CPUs     int    `json:"cpus" yaml:"cpus"`
	MemoryMB uint64 `json:"memory_mb" yaml:"memory_mb"`
	Uptime   string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
}

// Report is everything doctor prints and record consults.
type Report struct {
	Host   HostInfo `json:"host" yaml:"host"`
	Checks []Check  `json:"checks" yaml:"checks"`
}

// Overall returns the worst status across all checks.
func (r *Report) Overall() Status {
	worst := OK
	for _, c := range r.Checks {
		if rank(c.Status) > rank(worst) {
			worst = c.Status
		}
	}
	return worst
}

// BlockingFailure returns the first failed blocking check, if any.
func (r *Report) BlockingFailure() (Check, bool) {
	for _, c := range r.Checks {
		if c.Blocking && c.Status == Failed {
			return c, true
		}
	}
	return Check{}, false
}

func rank(s Status) int {
	switch s {
	case OK:
		return 0
	case Degraded:
		return 1
	default:
		return 2
	}
}

// Run executes every preflight check against the given configuration.
// Individual probe failures degrade the report, never abort it.
func Run(cfg *config.Config) *Report {
	log := logging.L("preflight")
	r := &Report{Host: hostInfo(log)}

	r.Checks = append(r.Checks,
		checkOutputDir(cfg, log),
		checkVideoBackend(cfg),
		checkAudioEncoder(),
		checkAudioDevices(cfg),
		checkFonts(),
	)
	return r
}

func hostInfo(log *slog.Logger) HostInfo {
	info := HostInfo{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
	if n, err := cpu.Counts(true); err == nil {
		info.CPUs = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryMB = vm.Total / 1024 / 1024
	}
	if hi, err := host.Info(); err == nil {
		info.Platform = fmt.Sprintf("%s %s", hi.Platform, hi.PlatformVersion)
		info.Uptime = (time.Duration(hi.Uptime) * time.Second).String()
	} else {
		log.Debug("host info unavailable", logging.KeyError, err)
	}
	return info
}

// checkOutputDir verifies the output directory exists and holds enough
// free space for a session at the configured bitrate. Blocking: a full
// disk discovered at stop time would lose the recording.
func checkOutputDir(cfg *config.Config, log *slog.Logger) Check {
	c := Check{Name: "output_dir", Blocking: true}
	dir := cfg.ResolveOutputDir()

	usage, err := disk.Usage(dir)
	if err != nil {
		// The directory may simply not exist yet; record creates it.
		c.Status = Degraded
		c.Message = fmt.Sprintf("%s: not yet measurable (%v)", dir, err)
		return c
	}

	bitrate := cfg.BitrateBps
	if bitrate == 0 {
		bitrate = encode.DeriveBitrate(cfg.Width, cfg.Height)
	}
	// Ten minutes of primary plus fallback overhead is a comfortable
	// floor for one session.
	needed := uint64(bitrate/8) * 600 * 2

	switch {
	case usage.Free < needed:
		c.Status = Failed
		c.Message = fmt.Sprintf("%s: %d MB free, want %d MB for a 10-minute session",
			dir, usage.Free/1024/1024, needed/1024/1024)
	case usage.UsedPercent > 95:
		c.Status = Degraded
		c.Message = fmt.Sprintf("%s: disk %.0f%% full", dir, usage.UsedPercent)
	default:
		c.Status = OK
		c.Message = fmt.Sprintf("%s: %d MB free", dir, usage.Free/1024/1024)
	}
	log.Debug("output dir checked", "dir", dir, "free", usage.Free)
	return c
}

// checkVideoBackend probes the fast-path codec candidates. Not blocking:
// the fallback recorder covers a build without any video backend.
func checkVideoBackend(cfg *config.Config) Check {
	c := Check{Name: "video_backend"}
	if desc, ok := encode.ProbeVideoSupport(cfg.Width, cfg.Height, cfg.FPS, cfg.BitrateBps); ok {
		c.Status = OK
		c.Message = desc
	} else {
		c.Status = Degraded
		c.Message = "no fast-path encoder in this build; recordings use the compatibility format"
	}
	return c
}

func checkAudioEncoder() Check {
	c := Check{Name: "audio_encoder"}
	if encode.AudioEncoderAvailable() {
		c.Status = OK
	} else {
		c.Status = Degraded
		c.Message = "no Opus encoder in this build; the preferred format records video-only"
	}
	return c
}

func checkAudioDevices(cfg *config.Config) Check {
	c := Check{Name: "audio_devices"}
	if !cfg.MicEnabled && !cfg.SystemAudio {
		c.Status = OK
		c.Message = "audio not requested"
		return c
	}

	devs, err := audio.ListDevices()
	switch {
	case errors.Is(err, audio.ErrAudioDisabled):
		c.Status = Degraded
		c.Message = "audio was disabled during compilation; recording without it"
	case err != nil:
		c.Status = Degraded
		c.Message = fmt.Sprintf("device enumeration failed: %v", err)
	case cfg.MicEnabled && len(devs.Capture) == 0:
		c.Status = Degraded
		c.Message = "microphone requested but no capture device found"
	default:
		c.Status = OK
		c.Message = fmt.Sprintf("%d capture, %d playback devices", len(devs.Capture), len(devs.Playback))
	}
	return c
}

// checkFonts verifies the embedded face parses; the title banner and
// pending-text overlays depend on it.
func checkFonts() Check {
	c := Check{Name: "fonts"}
	if _, err := compose.Face(14); err != nil {
		c.Status = Degraded
		c.Message = fmt.Sprintf("embedded font unavailable: %v (text overlays disabled)", err)
	} else {
		c.Status = OK
	}
	return c
}
