package media

import (
	"encoding/binary"
	"fmt"
)

// NAL unit types from ITU-T H.264 Table 7-1, the ones the muxer cares about.
const (
	NALSliceIDR = 5
	NALSEI      = 6
	NALSPS      = 7
	NALPPS      = 8
	NALAUD      = 9
)

// NALType returns the nal_unit_type of a single NAL unit.
func NALType(nalu []byte) int {
	if len(nalu) == 0 {
		return 0
	}
	return int(nalu[0] & 0x1f)
}

// SplitNALUs splits an Annex-B byte stream into its NAL units, accepting
// both 3-byte (00 00 01) and 4-byte (00 00 00 01) start codes. Bytes
// before the first start code are ignored.
func SplitNALUs(b []byte) [][]byte {
	n := len(b)
	next := func(from int) (scStart, payloadStart int) {
		for j := from; j+3 <= n; j++ {
			if b[j] != 0 || b[j+1] != 0 {
				continue
			}
			if b[j+2] == 1 {
				return j, j + 3
			}
			if j+4 <= n && b[j+2] == 0 && b[j+3] == 1 {
				return j, j + 4
			}
		}
		return -1, -1
	}

	var units [][]byte
	sc, ps := next(0)
	for sc >= 0 {
		nsc, nps := next(ps)
		end := n
		if nsc >= 0 {
			end = nsc
		}
		if end > ps {
			units = append(units, b[ps:end])
		}
		sc, ps = nsc, nps
	}
	return units
}

// ContainsIDR reports whether the Annex-B stream carries an IDR slice.
func ContainsIDR(annexB []byte) bool {
	for _, nalu := range SplitNALUs(annexB) {
		if NALType(nalu) == NALSliceIDR {
			return true
		}
	}
	return false
}

// ExtractParameterSets collects the SPS and PPS NAL units from an Annex-B
// stream. Encoders emit them ahead of the first IDR; the muxer needs them
// once to build the decoder configuration record.
func ExtractParameterSets(annexB []byte) (sps, pps [][]byte) {
	for _, nalu := range SplitNALUs(annexB) {
		switch NALType(nalu) {
		case NALSPS:
			sps = append(sps, nalu)
		case NALPPS:
			pps = append(pps, nalu)
		}
	}
	return sps, pps
}

// BuildAVCDecoderConfig assembles the AVCDecoderConfigurationRecord
// (ISO/IEC 14496-15) used as Matroska CodecPrivate for V_MPEG4/ISO/AVC.
// NAL length prefixes are fixed at 4 bytes to match AnnexBToLengthPrefixed.
func BuildAVCDecoderConfig(sps, pps [][]byte) ([]byte, error) {
	if len(sps) == 0 || len(pps) == 0 {
		return nil, fmt.Errorf("h264: decoder config needs at least one SPS and one PPS")
	}
	if len(sps[0]) < 4 {
		return nil, fmt.Errorf("h264: SPS too short (%d bytes)", len(sps[0]))
	}

	buf := make([]byte, 0, 32)
	buf = append(buf, 1)                               // configurationVersion
	buf = append(buf, sps[0][1], sps[0][2], sps[0][3]) // profile, compat, level
	buf = append(buf, 0xff)                            // 4-byte NAL lengths
	buf = append(buf, 0xe0|byte(len(sps)))
	for _, s := range sps {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
		buf = append(buf, s...)
	}
	buf = append(buf, byte(len(pps)))
	for _, p := range pps {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(p)))
		buf = append(buf, p...)
	}
	return buf, nil
}

// AnnexBToLengthPrefixed rewrites start-code delimited NAL units into the
// 4-byte big-endian length-prefixed form stored inside Matroska blocks.
func AnnexBToLengthPrefixed(annexB []byte) []byte {
	units := SplitNALUs(annexB)
	size := 0
	for _, u := range units {
		size += 4 + len(u)
	}
	out := make([]byte, 0, size)
	for _, u := range units {
		out = binary.BigEndian.AppendUint32(out, uint32(len(u)))
		out = append(out, u...)
	}
	return out
}
