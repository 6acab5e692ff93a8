package m3u8

import "math"

const minVer uint8 = 1

func updateMin(ver *uint8, reason *string, newVer uint8, newReason string) {
	if newVer <= *ver { // only update if higher version
		return
	}
	*ver = newVer
	*reason = newReason
}

// CalcMinVersion returns the minimal version of the HLS protocol that is
// required to support the level according to the [HLS Prococcol Version Compatibility].
// The reason is a human-readable string explaining why the version is required.
func (d *LevelDetails) CalcMinVersion() (ver uint8, reason string) {
	ver = minVer
	reason = "no tag requires a higher version"

	// A Media Playlist MUST indicate an EXT-X-VERSION of 2 or higher if it contains:
	// *  The IV attribute of the EXT-X-KEY tag.
	// A Media Playlist MUST indicate an EXT-X-VERSION of 5 or higher if it contains:
	// *  An EXT-X-KEY tag with a METHOD of SAMPLE-AES.
	for _, frag := range d.Fragments {
		key := frag.LevelKey
		if !key.Encrypted() {
			continue
		}
		if key.IV != nil {
			updateMin(&ver, &reason, 2, "IV attribute of the EXT-X-KEY tag")
		}
		if key.Method == KeyMethodSampleAES || key.Method == KeyMethodSampleAESCENC {
			updateMin(&ver, &reason, 5, "EXT-X-KEY tag with a METHOD of SAMPLE-AES")
		}
	}

	// A Media Playlist MUST indicate an EXT-X-VERSION of 3 or higher if it contains:
	// *  Floating-point EXTINF duration values.
	// A Media Playlist MUST indicate an EXT-X-VERSION of 4 or higher if it contains:
	// *  The EXT-X-BYTERANGE tag.
	for _, frag := range d.Fragments {
		if frag.Duration != math.Trunc(frag.Duration) {
			updateMin(&ver, &reason, 3, "floating-point EXTINF duration values")
		}
		if frag.ByteRange != nil {
			updateMin(&ver, &reason, 4, "EXT-X-BYTERANGE tag")
		}
	}

	// A Media Playlist MUST indicate an EXT-X-VERSION of 6 or higher if it contains:
	// *  The EXT-X-MAP tag in a Media Playlist that does not contain EXT-X-I-FRAMES-ONLY.
	if d.InitSegment != nil && !d.NeedSidxRanges {
		updateMin(&ver, &reason, 6,
			"EXT-X-MAP tag in a Media Playlist that does not contain EXT-X-I-FRAMES-ONLY")
	}

	return ver, reason
}

// [HLS Prococcol Version Compatibility]: https://tools.ietf.org/html/draft-pantos-hls-rfc8216bis-16#section-8
