package compose

import (
	"image/color"
	"testing"
)

func TestParseHexColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.RGBA
	}{
		{"#fff", color.RGBA{255, 255, 255, 255}},
		{"0f172a", color.RGBA{15, 23, 42, 255}},
		{"#facc15", color.RGBA{250, 204, 21, 255}},
		{"#11223344", color.RGBA{17, 34, 51, 68}},
	}
	for _, tc := range cases {
		got, err := ParseHexColor(tc.in)
		if err != nil {
			t.Errorf("ParseHexColor(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "#12345", "nothex"} {
		if _, err := ParseHexColor(bad); err == nil {
			t.Errorf("ParseHexColor(%q) should fail", bad)
		}
	}

	def := color.RGBA{1, 2, 3, 255}
	if got := ParseHexColorDefault("bogus", def); got != def {
		t.Errorf("default fallback = %v", got)
	}
}
