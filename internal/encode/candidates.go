package encode

const (
	// warmupFrames are fed to a fresh backend but never muxed; they do
	// not advance timestamps.
	warmupFrames = 5

	// gopSeconds is the forced-keyframe interval.
	gopSeconds = 2
)

// h264Candidates is the probe order: decreasing profile and level, so the
// richest configuration the backend accepts wins.
func h264Candidates() []Candidate {
	return []Candidate{
		{Codec: "h264", Profile: "high", Level: "5.2"},
		{Codec: "h264", Profile: "high", Level: "4.2"},
		{Codec: "h264", Profile: "main", Level: "4.2"},
		{Codec: "h264", Profile: "main", Level: "4.0"},
		{Codec: "h264", Profile: "baseline", Level: "3.1"},
	}
}

// DeriveBitrate computes the target bitrate for a resolution when none is
// configured. Scales with pixel count at 30 fps, clamped to a range that
// keeps small captures usable and large ones bounded.
func DeriveBitrate(width, height int) int {
	bps := width * height * 30 / 5
	return min(max(bps, 10_000_000), 24_000_000)
}
