package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is a named bundle of look-and-feel overrides applied on top of
// the base config. Unset fields leave the base value untouched, which is
// why everything here is a pointer.
type Profile struct {
	Name string `yaml:"name"`

	Width  *int `yaml:"width,omitempty"`
	Height *int `yaml:"height,omitempty"`
	FPS    *int `yaml:"fps,omitempty"`

	Padding          *int    `yaml:"padding,omitempty"`
	CornerRadius     *int    `yaml:"corner_radius,omitempty"`
	Background       *string `yaml:"background,omitempty"`
	BackgroundColor  *string `yaml:"background_color,omitempty"`
	BackgroundColor2 *string `yaml:"background_color2,omitempty"`
	BackgroundImage  *string `yaml:"background_image,omitempty"`
	TitleText        *string `yaml:"title_text,omitempty"`
	TitleCorner      *string `yaml:"title_corner,omitempty"`
	CursorHighlight  *bool   `yaml:"cursor_highlight,omitempty"`
	CursorColor      *string `yaml:"cursor_color,omitempty"`
	BubbleSize       *int    `yaml:"bubble_size,omitempty"`
	BubbleMirror     *bool   `yaml:"bubble_mirror,omitempty"`

	MicEnabled  *bool `yaml:"mic_enabled,omitempty"`
	SystemAudio *bool `yaml:"system_audio,omitempty"`
}

// Apply copies every set field onto cfg.
func (p *Profile) Apply(cfg *Config) {
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setInt(&cfg.Width, p.Width)
	setInt(&cfg.Height, p.Height)
	setInt(&cfg.FPS, p.FPS)
	setInt(&cfg.Padding, p.Padding)
	setInt(&cfg.CornerRadius, p.CornerRadius)
	setStr(&cfg.Background, p.Background)
	setStr(&cfg.BackgroundColor, p.BackgroundColor)
	setStr(&cfg.BackgroundColor2, p.BackgroundColor2)
	setStr(&cfg.BackgroundImage, p.BackgroundImage)
	setStr(&cfg.TitleText, p.TitleText)
	setStr(&cfg.TitleCorner, p.TitleCorner)
	setBool(&cfg.CursorHighlight, p.CursorHighlight)
	setStr(&cfg.CursorColor, p.CursorColor)
	setInt(&cfg.BubbleSize, p.BubbleSize)
	setBool(&cfg.BubbleMirror, p.BubbleMirror)
	setBool(&cfg.MicEnabled, p.MicEnabled)
	setBool(&cfg.SystemAudio, p.SystemAudio)
}

// ProfilesDir returns the directory profile files are read from.
func ProfilesDir() string {
	return filepath.Join(Dir(), "profiles")
}

// LoadProfile reads a profile file. The name defaults to the file name
// without its extension.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &p, nil
}

// FindProfile resolves a profile by name from ProfilesDir, or loads it
// directly when name is a path to a yaml file.
func FindProfile(name string) (*Profile, error) {
	if strings.ContainsRune(name, os.PathSeparator) || strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return LoadProfile(name)
	}
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(ProfilesDir(), name+ext)
		if _, err := os.Stat(path); err == nil {
			return LoadProfile(path)
		}
	}
	return nil, fmt.Errorf("profile %q not found in %s", name, ProfilesDir())
}

// ListProfiles returns the names of all profiles in ProfilesDir, sorted.
func ListProfiles() ([]string, error) {
	entries, err := os.ReadDir(ProfilesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// SaveProfile writes a profile under ProfilesDir.
func SaveProfile(p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(ProfilesDir(), 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(ProfilesDir(), p.Name+".yaml"), data, 0644)
}
