package m3u8

/*
 This file defines codec classification of the CODECS attribute.
*/

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CodecType is a family of sample entry codes.
type CodecType string

const (
	CodecTypeAudio CodecType = "audio"
	CodecTypeVideo CodecType = "video"
)

var reCodecSeparator = regexp.MustCompile(`[ ,]+`)

// ISO/IEC 14496-12 sample entry codes registered with MP4RA.
var sampleEntryCodes = map[CodecType]map[string]bool{
	CodecTypeAudio: {
		"a3ds": true, "ac-3": true, "ac-4": true, "alac": true, "alaw": true,
		"dra1": true, "dts+": true, "dts-": true, "dtsc": true, "dtse": true,
		"dtsh": true, "ec-3": true, "enca": true, "fLaC": true, "g719": true,
		"g726": true, "m4ae": true, "mha1": true, "mha2": true, "mhm1": true,
		"mhm2": true, "mlpa": true, "mp4a": true, "Opus": true, "raw ": true,
		"samr": true, "sawb": true, "sawp": true, "sevc": true, "sqcp": true,
		"ssmv": true, "twos": true, "ulaw": true,
	},
	CodecTypeVideo: {
		"av01": true, "avc1": true, "avc2": true, "avc3": true, "avc4": true,
		"avcp": true, "drac": true, "dva1": true, "dvav": true, "dvh1": true,
		"dvhe": true, "encv": true, "hev1": true, "hvc1": true, "mjp2": true,
		"mp4v": true, "mvc1": true, "mvc2": true, "mvc3": true, "mvc4": true,
		"resv": true, "rv60": true, "s263": true, "svc1": true, "svc2": true,
		"vc-1": true, "vp08": true, "vp09": true,
	},
}

// IsCodecType reports whether the codec's sample entry code belongs to the family.
func IsCodecType(codec string, t CodecType) bool {
	if len(codec) < 4 {
		return false
	}
	return sampleEntryCodes[t][codec[:4]]
}

// SplitCodecs splits a CODECS attribute into its non-empty entries.
func SplitCodecs(codecs string) []string {
	var out []string
	for _, c := range reCodecSeparator.Split(codecs, -1) {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// setCodecs classifies codecs into the level's video and audio codec. Within
// a family avc1 and mp4a entries win over the first match.
func setCodecs(codecs []string, level *Level) {
	for _, t := range []CodecType{CodecTypeVideo, CodecTypeAudio} {
		var matched, rest []string
		for _, c := range codecs {
			if IsCodecType(c, t) {
				matched = append(matched, c)
			} else {
				rest = append(rest, c)
			}
		}
		if len(matched) == 0 {
			continue
		}
		chosen := matched[0]
		for _, c := range matched {
			if strings.HasPrefix(c, "avc1") || strings.HasPrefix(c, "mp4a") {
				chosen = c
				break
			}
		}
		switch t {
		case CodecTypeVideo:
			level.VideoCodec = chosen
		case CodecTypeAudio:
			level.AudioCodec = chosen
		}
		codecs = rest
	}
	level.UnknownCodecs = codecs
}

// ConvertAVC1ToAVCOTI rewrites the legacy avc1.<profile>.<level> form into
// avc1.<profile hex><constraints 00><level hex padded to 4>. Other codec
// strings are returned unchanged.
func ConvertAVC1ToAVCOTI(codec string) string {
	parts := strings.Split(codec, ".")
	if len(parts) <= 2 {
		return codec
	}
	profile, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return codec
	}
	level, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return codec
	}
	return fmt.Sprintf("%s.%x%04x", parts[0], profile, level)
}
