package config

import (
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
)

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var validSources = map[string]bool{
	"display": true,
	"canvas":  true,
}

var validBackgrounds = map[string]bool{
	"solid":    true,
	"gradient": true,
	"image":    true,
}

var validCorners = map[string]bool{
	"top-left":     true,
	"top-right":    true,
	"bottom-left":  true,
	"bottom-right": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that prevent a session from starting
// from values that were merely clamped or reset to defaults.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

func (r *ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// Validate checks the config and returns everything it found. Dangerous
// values that would break the encoder or the render loop are clamped to
// a safe range in place and reported as warnings; only values with no
// sensible substitute are fatal.
func (c *Config) Validate() ValidationResult {
	var r ValidationResult

	warnf := func(format string, args ...any) {
		r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
	}
	fatalf := func(format string, args ...any) {
		r.Fatals = append(r.Fatals, fmt.Errorf(format, args...))
	}

	if c.Source != "" && !validSources[strings.ToLower(c.Source)] {
		warnf("source %q is not valid (use display or canvas), using display", c.Source)
		c.Source = "display"
	}
	if c.DisplayIndex < 0 {
		warnf("display_index %d is negative, using 0", c.DisplayIndex)
		c.DisplayIndex = 0
	}

	// Dimensions must stay even for 4:2:0 subsampling.
	if c.Width < 320 {
		warnf("width %d is below minimum 320, clamping", c.Width)
		c.Width = 320
	} else if c.Width > 7680 {
		warnf("width %d exceeds maximum 7680, clamping", c.Width)
		c.Width = 7680
	}
	if c.Height < 240 {
		warnf("height %d is below minimum 240, clamping", c.Height)
		c.Height = 240
	} else if c.Height > 4320 {
		warnf("height %d exceeds maximum 4320, clamping", c.Height)
		c.Height = 4320
	}
	if c.Width%2 != 0 {
		warnf("width %d is odd, rounding down", c.Width)
		c.Width--
	}
	if c.Height%2 != 0 {
		warnf("height %d is odd, rounding down", c.Height)
		c.Height--
	}

	if c.FPS < 1 {
		warnf("fps %d is below minimum 1, clamping", c.FPS)
		c.FPS = 1
	} else if c.FPS > 60 {
		warnf("fps %d exceeds maximum 60, clamping", c.FPS)
		c.FPS = 60
	}

	if c.BitrateBps != 0 {
		if c.BitrateBps < 250_000 {
			warnf("bitrate_bps %d is below minimum 250000, clamping", c.BitrateBps)
			c.BitrateBps = 250_000
		} else if c.BitrateBps > 50_000_000 {
			warnf("bitrate_bps %d exceeds maximum 50000000, clamping", c.BitrateBps)
			c.BitrateBps = 50_000_000
		}
	}

	if c.Padding < 0 {
		warnf("padding %d is negative, using 0", c.Padding)
		c.Padding = 0
	} else if c.Padding > 512 {
		warnf("padding %d exceeds maximum 512, clamping", c.Padding)
		c.Padding = 512
	}
	if c.CornerRadius < 0 {
		warnf("corner_radius %d is negative, using 0", c.CornerRadius)
		c.CornerRadius = 0
	} else if c.CornerRadius > 256 {
		warnf("corner_radius %d exceeds maximum 256, clamping", c.CornerRadius)
		c.CornerRadius = 256
	}
	if c.BubbleSize < 64 {
		warnf("bubble_size %d is below minimum 64, clamping", c.BubbleSize)
		c.BubbleSize = 64
	} else if c.BubbleSize > 1024 {
		warnf("bubble_size %d exceeds maximum 1024, clamping", c.BubbleSize)
		c.BubbleSize = 1024
	}

	if c.Background != "" && !validBackgrounds[strings.ToLower(c.Background)] {
		warnf("background %q is not valid (use solid, gradient, or image), using gradient", c.Background)
		c.Background = "gradient"
	}
	if strings.EqualFold(c.Background, "image") && c.BackgroundImage == "" {
		fatalf("background is %q but background_image is not set", c.Background)
	}

	def := Default()
	checkColor := func(name string, val *string, fallback string) {
		if *val != "" && !hexColorRegex.MatchString(*val) {
			warnf("%s %q is not a #rrggbb color, using %s", name, *val, fallback)
			*val = fallback
		}
	}
	checkColor("background_color", &c.BackgroundColor, def.BackgroundColor)
	checkColor("background_color2", &c.BackgroundColor2, def.BackgroundColor2)
	checkColor("cursor_color", &c.CursorColor, def.CursorColor)

	if c.TitleCorner != "" && !validCorners[strings.ToLower(c.TitleCorner)] {
		warnf("title_corner %q is not valid, using bottom-left", c.TitleCorner)
		c.TitleCorner = "bottom-left"
	}

	if c.MicGainDB < -60 {
		warnf("mic_gain_db %.1f is below minimum -60, clamping", c.MicGainDB)
		c.MicGainDB = -60
	} else if c.MicGainDB > 20 {
		warnf("mic_gain_db %.1f exceeds maximum 20, clamping", c.MicGainDB)
		c.MicGainDB = 20
	}
	if c.SystemGainDB < -60 {
		warnf("system_gain_db %.1f is below minimum -60, clamping", c.SystemGainDB)
		c.SystemGainDB = -60
	} else if c.SystemGainDB > 20 {
		warnf("system_gain_db %.1f exceeds maximum 20, clamping", c.SystemGainDB)
		c.SystemGainDB = 20
	}

	if c.PreviewEnabled {
		if _, _, err := net.SplitHostPort(c.PreviewAddr); err != nil {
			fatalf("preview_addr %q is not a valid host:port: %w", c.PreviewAddr, err)
		}
	}
	if c.PreviewMaxClients < 1 {
		warnf("preview_max_clients %d is below minimum 1, clamping", c.PreviewMaxClients)
		c.PreviewMaxClients = 1
	} else if c.PreviewMaxClients > 64 {
		warnf("preview_max_clients %d exceeds maximum 64, clamping", c.PreviewMaxClients)
		c.PreviewMaxClients = 64
	}

	if c.JournalMaxSizeMB < 1 {
		warnf("journal_max_size_mb %d is below minimum 1, clamping", c.JournalMaxSizeMB)
		c.JournalMaxSizeMB = 1
	} else if c.JournalMaxSizeMB > 500 {
		warnf("journal_max_size_mb %d exceeds maximum 500, clamping", c.JournalMaxSizeMB)
		c.JournalMaxSizeMB = 500
	}
	if c.JournalMaxBackups < 0 {
		warnf("journal_max_backups %d is negative, using 0", c.JournalMaxBackups)
		c.JournalMaxBackups = 0
	} else if c.JournalMaxBackups > 20 {
		warnf("journal_max_backups %d exceeds maximum 20, clamping", c.JournalMaxBackups)
		c.JournalMaxBackups = 20
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		warnf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		warnf("log_format %q is not valid (use text or json)", c.LogFormat)
	}

	for _, err := range r.Warnings {
		slog.Warn("config validation", "error", err)
	}
	for _, err := range r.Fatals {
		slog.Error("config validation", "error", err)
	}

	return r
}
