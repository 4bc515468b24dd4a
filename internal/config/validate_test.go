package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateBadPreviewAddrIsFatal(t *testing.T) {
	cfg := Default()
	cfg.PreviewEnabled = true
	cfg.PreviewAddr = "not-an-address"
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("unparseable preview_addr should be fatal")
	}
	found := false
	for _, err := range result.Fatals {
		if strings.Contains(err.Error(), "preview_addr") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected preview_addr error in fatals")
	}
}

func TestValidateImageBackgroundWithoutPathIsFatal(t *testing.T) {
	cfg := Default()
	cfg.Background = "image"
	cfg.BackgroundImage = ""
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("image background without a path should be fatal")
	}
}

func TestValidateDimensionClampingIsWarning(t *testing.T) {
	cfg := Default()
	cfg.Width = 100 // below minimum 320
	result := cfg.Validate()

	// Should NOT be a fatal since it's auto-corrected
	if result.HasFatals() {
		t.Fatalf("clamped width should be warning, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for clamped width")
	}
	if cfg.Width != 320 {
		t.Fatalf("Width = %d, want 320 (clamped)", cfg.Width)
	}
}

func TestValidateOddDimensionsRoundedDown(t *testing.T) {
	cfg := Default()
	cfg.Width = 1921
	cfg.Height = 1081
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("odd dimensions should be warning, not fatal: %v", result.Fatals)
	}
	if cfg.Width != 1920 || cfg.Height != 1080 {
		t.Fatalf("dimensions = %dx%d, want 1920x1080", cfg.Width, cfg.Height)
	}
}

func TestValidateFPSClamping(t *testing.T) {
	cfg := Default()
	cfg.FPS = 0
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("clamped fps should be warning: %v", result.Fatals)
	}
	if cfg.FPS != 1 {
		t.Fatalf("FPS = %d, want 1", cfg.FPS)
	}

	cfg = Default()
	cfg.FPS = 240
	cfg.Validate()
	if cfg.FPS != 60 {
		t.Fatalf("FPS = %d, want 60 (clamped)", cfg.FPS)
	}
}

func TestValidateExplicitBitrateClamping(t *testing.T) {
	cfg := Default()
	cfg.BitrateBps = 1000
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("clamped bitrate should be warning: %v", result.Fatals)
	}
	if cfg.BitrateBps != 250_000 {
		t.Fatalf("BitrateBps = %d, want 250000", cfg.BitrateBps)
	}
}

func TestValidateZeroBitrateMeansAuto(t *testing.T) {
	cfg := Default()
	cfg.BitrateBps = 0
	result := cfg.Validate()
	if len(result.Warnings) > 0 || result.HasFatals() {
		t.Fatalf("bitrate 0 (auto) should not be flagged: %v", result.AllErrors())
	}
	if cfg.BitrateBps != 0 {
		t.Fatalf("BitrateBps = %d, want 0 (auto)", cfg.BitrateBps)
	}
}

func TestValidateBadColorResetsToDefault(t *testing.T) {
	cfg := Default()
	cfg.CursorColor = "yellow"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("bad color should not be fatal")
	}
	found := false
	for _, err := range result.Warnings {
		if strings.Contains(err.Error(), "cursor_color") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected warning about cursor_color")
	}
	if cfg.CursorColor != Default().CursorColor {
		t.Fatalf("CursorColor = %q, want default", cfg.CursorColor)
	}
}

func TestValidateUnknownSourceIsWarning(t *testing.T) {
	cfg := Default()
	cfg.Source = "webcam-only"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("unknown source should not be fatal")
	}
	if cfg.Source != "display" {
		t.Fatalf("Source = %q, want display", cfg.Source)
	}
}

func TestValidateUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.PreviewEnabled = true
	cfg.PreviewAddr = "bad"        // fatal
	cfg.Source = "something-else"  // warning
	result := cfg.Validate()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2 (fatals + warnings)", len(all))
	}
}

func TestValidConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("default config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default config has warnings: %v", result.Warnings)
	}
}
