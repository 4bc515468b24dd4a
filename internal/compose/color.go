package compose

import (
	"fmt"
	"image/color"
	"strings"
)

// ParseHexColor parses "#rgb", "#rrggbb" and "#rrggbbaa" notations.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var c color.RGBA
	c.A = 0xff
	switch len(s) {
	case 3:
		_, err := fmt.Sscanf(s, "%1x%1x%1x", &c.R, &c.G, &c.B)
		if err != nil {
			return c, fmt.Errorf("parse color %q: %w", s, err)
		}
		c.R *= 17
		c.G *= 17
		c.B *= 17
	case 6:
		_, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B)
		if err != nil {
			return c, fmt.Errorf("parse color %q: %w", s, err)
		}
	case 8:
		_, err := fmt.Sscanf(s, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
		if err != nil {
			return c, fmt.Errorf("parse color %q: %w", s, err)
		}
	default:
		return c, fmt.Errorf("parse color %q: bad length", s)
	}
	return c, nil
}

// ParseHexColorDefault parses s, falling back to def on any error.
func ParseHexColorDefault(s string, def color.RGBA) color.RGBA {
	c, err := ParseHexColor(s)
	if err != nil {
		return def
	}
	return c
}
