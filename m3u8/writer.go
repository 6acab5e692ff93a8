package m3u8

/*
 This file defines functions related to playlist generation.
*/

import (
	"bytes"
	"encoding/hex"
	"math"
	"strconv"
)

// Encode writes the level back as a media playlist. Tags the parser kept
// in fragment tag lists are echoed in their original order.
func (d *LevelDetails) Encode() *bytes.Buffer {
	var buf bytes.Buffer

	ver := d.Version
	if ver == 0 {
		v, _ := d.CalcMinVersion()
		ver = int(v)
	}
	buf.WriteString("#EXTM3U\n#EXT-X-VERSION:")
	buf.WriteString(strconv.Itoa(ver))
	buf.WriteRune('\n')

	buf.WriteString("#EXT-X-TARGETDURATION:")
	writeFloatValue(&buf, d.TargetDuration, -1)
	buf.WriteRune('\n')

	buf.WriteString("#EXT-X-MEDIA-SEQUENCE:")
	buf.WriteString(strconv.FormatInt(d.StartSN, 10))
	buf.WriteRune('\n')

	if seq := d.discontinuitySequence(); seq > 0 {
		buf.WriteString("#EXT-X-DISCONTINUITY-SEQUENCE:")
		buf.WriteString(strconv.Itoa(seq))
		buf.WriteRune('\n')
	}
	if d.Type != "" {
		buf.WriteString("#EXT-X-PLAYLIST-TYPE:")
		buf.WriteString(d.Type)
		buf.WriteRune('\n')
	}
	if d.StartTimeOffset != nil {
		writeExtXStart(&buf, *d.StartTimeOffset)
	}

	if d.InitSegment != nil && !d.NeedSidxRanges {
		writeTagList(&buf, d.InitSegment)
		writeExtXMap(&buf, d.InitSegment)
	}

	var lastKey *LevelKey
	for _, frag := range d.Fragments {
		if frag.LevelKey != lastKey {
			writeKey(&buf, frag.LevelKey)
			lastKey = frag.LevelKey
		}
		writeTagList(&buf, frag)
		if frag.ByteRange != nil {
			writeRange(&buf, "#EXT-X-BYTERANGE:", frag.ByteRange)
			buf.WriteRune('\n')
		}
		writeExtInf(&buf, frag)
		buf.WriteString(frag.RelURL)
		buf.WriteRune('\n')
	}

	if !d.Live {
		buf.WriteString("#EXT-X-ENDLIST\n")
	}
	return &buf
}

// String provides the playlist fulfilling the Stringer interface.
func (d *LevelDetails) String() string {
	return d.Encode().String()
}

// discontinuitySequence recovers the EXT-X-DISCONTINUITY-SEQUENCE value:
// discontinuities tagged on the first fragment were counted into its CC.
func (d *LevelDetails) discontinuitySequence() int {
	if len(d.Fragments) == 0 {
		return d.EndCC
	}
	seq := d.StartCC
	for _, tag := range d.Fragments[0].TagList {
		if tag[0] == "DIS" {
			seq--
		}
	}
	return seq
}

func writeTagList(buf *bytes.Buffer, frag *Fragment) {
	for _, tag := range frag.TagList {
		switch tag[0] {
		case "INF":
			// written by writeExtInf right before the URI
		case "DIS":
			buf.WriteString("#EXT-X-DISCONTINUITY\n")
		case "PROGRAM-DATE-TIME":
			buf.WriteString("#EXT-X-PROGRAM-DATE-TIME:")
			buf.WriteString(tag[1])
			buf.WriteRune('\n')
		default:
			buf.WriteRune('#')
			buf.WriteString(tag[0])
			if len(tag) > 1 {
				buf.WriteRune(':')
				buf.WriteString(tag[1])
			}
			buf.WriteRune('\n')
		}
	}
}

func writeExtInf(buf *bytes.Buffer, frag *Fragment) {
	buf.WriteString("#EXTINF:")
	duration := ""
	for _, tag := range frag.TagList {
		if tag[0] == "INF" {
			duration = tag[1]
		}
	}
	if duration == "" {
		duration = strconv.FormatFloat(frag.Duration, 'f', -1, 64)
	}
	buf.WriteString(duration)
	buf.WriteRune(',')
	buf.WriteString(frag.Title)
	buf.WriteRune('\n')
}

func writeExtXStart(buf *bytes.Buffer, startTime float64) {
	buf.WriteString("#EXT-X-START:TIME-OFFSET=")
	writeFloatValue(buf, startTime, -1)
	buf.WriteRune('\n')
}

func writeExtXMap(buf *bytes.Buffer, init *Fragment) {
	buf.WriteString("#EXT-X-MAP:")
	buf.WriteString("URI=\"")
	buf.WriteString(init.RelURL)
	buf.WriteRune('"')
	if init.ByteRange != nil {
		buf.WriteString(",BYTERANGE=\"")
		writeRange(buf, "", init.ByteRange)
		buf.WriteRune('"')
	}
	buf.WriteRune('\n')
}

// writeKey writes an EXT-X-KEY tag. Keys without a supported method are
// written as METHOD=NONE.
func writeKey(buf *bytes.Buffer, key *LevelKey) {
	buf.WriteString("#EXT-X-KEY:METHOD=")
	if !key.Encrypted() {
		buf.WriteString("NONE\n")
		return
	}
	buf.WriteString(key.Method)
	writeQuoted(buf, "URI", key.RelURI)
	if key.IV != nil {
		writeUnQuoted(buf, "IV", "0x"+hex.EncodeToString(key.IV))
	}
	buf.WriteRune('\n')
}

func writeRange(buf *bytes.Buffer, tag string, r *ByteRange) {
	buf.WriteString(tag)
	buf.WriteString(r.String())
}

// writeQuoted writes a quoted key-value pair to the buffer preceded by a comma.
func writeQuoted(buf *bytes.Buffer, key, value string) {
	buf.WriteRune(',')
	buf.WriteString(key)
	buf.WriteString(`="`)
	buf.WriteString(value)
	buf.WriteRune('"')
}

func writeUnQuoted(buf *bytes.Buffer, key, value string) {
	buf.WriteRune(',')
	buf.WriteString(key)
	buf.WriteRune('=')
	buf.WriteString(value)
}

func writeFloatValue(buf *bytes.Buffer, value float64, writePrecision int) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		value = 0
	}
	buf.WriteString(strconv.FormatFloat(value, 'f', writePrecision, 64))
}
