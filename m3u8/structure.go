package m3u8

/*
 This file defines data structures related to package.
*/

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrExtM3UAbsent = errors.New("no EXTM3U delimiter")
var ErrNoLevels = errors.New("no level found in manifest")
var ErrInvalidTargetDuration = errors.New("invalid target duration")
var ErrInvalidByteRange = errors.New("invalid byte range")

// InitSegmentSN is the sequence number sentinel carried by init segments.
// Media sequence numbers are never negative, so it cannot collide.
const InitSegmentSN int64 = -1

// PlaylistLevelType tells which stream controller a playlist belongs to.
type PlaylistLevelType string

const (
	LevelTypeMain     PlaylistLevelType = "main"
	LevelTypeAudio    PlaylistLevelType = "audio"
	LevelTypeSubtitle PlaylistLevelType = "subtitle"
)

// Rendition types accepted by ParseMasterPlaylistMedia.
const (
	MediaTypeAudio     = "AUDIO"
	MediaTypeSubtitles = "SUBTITLES"
)

// Encryption methods a LevelKey can carry. Any other METHOD leaves the key
// without a method, which means the fragments are not decryptable by us.
const (
	KeyMethodAES128        = "AES-128"
	KeyMethodSampleAES     = "SAMPLE-AES"
	KeyMethodSampleAESCENC = "SAMPLE-AES-CENC"
)

// Level is a variant stream of a master playlist. Its identity is its index
// in the slice returned by ParseMasterPlaylist.
type Level struct {
	Attrs         AttributeList // raw EXT-X-STREAM-INF attributes
	URL           string        // absolute URL of the media playlist
	Width         int           // RESOLUTION width, 0 if absent
	Height        int           // RESOLUTION height, 0 if absent
	Bitrate       int64         // AVERAGE-BANDWIDTH, or BANDWIDTH when absent
	Name          string        // NAME
	VideoCodec    string        // preferred video codec from CODECS
	AudioCodec    string        // preferred audio codec from CODECS
	UnknownCodecs []string      // CODECS entries of no known family
	Details       *LevelDetails // media playlist, once loaded
}

// AudioGroup associates an AUDIO group id of a variant with the audio codec
// the variant declared.
type AudioGroup struct {
	ID    string
	Codec string
}

// MediaTrack is an alternative rendition declared with EXT-X-MEDIA.
type MediaTrack struct {
	ID         int    // sequential per rendition type, in order of appearance. -1 for a synthesized main track
	GroupID    string // GROUP-ID
	Name       string // NAME, or LANGUAGE when NAME is absent
	Type       string // AUDIO, SUBTITLES or "main"
	Default    bool   // DEFAULT=YES
	AutoSelect bool   // AUTOSELECT=YES
	Forced     bool   // FORCED=YES
	Lang       string // LANGUAGE
	URL        string // absolute URI, empty when the rendition is embedded in the main segments
	AudioCodec string // codec of the matching audio group
}

// Embedded reports whether the rendition lives inside the main playlist's segments.
func (t *MediaTrack) Embedded() bool {
	return t.URL == ""
}

// LevelDetails is a parsed media playlist.
type LevelDetails struct {
	URL                   string      // playlist URL used to resolve fragment URIs
	Type                  string      // EXT-X-PLAYLIST-TYPE, upper-cased
	Version               int         // EXT-X-VERSION, 0 if absent
	Live                  bool        // false once EXT-X-ENDLIST is seen
	TargetDuration        float64     // EXT-X-TARGETDURATION, 0 if absent
	AverageTargetDuration float64     // TotalDuration / number of fragments
	TotalDuration         float64     // sum of fragment durations
	StartSN               int64       // EXT-X-MEDIA-SEQUENCE
	EndSN                 int64       // sequence number of the last fragment
	StartCC               int         // discontinuity counter of the first fragment
	EndCC                 int         // discontinuity counter at the end of the playlist
	StartTimeOffset       *float64    // EXT-X-START:TIME-OFFSET, nil if absent
	Fragments             []*Fragment // media segments in playlist order
	InitSegment           *Fragment   // EXT-X-MAP, or a placeholder when NeedSidxRanges
	NeedSidxRanges        bool        // fMP4 fragments without EXT-X-MAP, ranges come from sidx
	LoadedAt              time.Time   // set by the loader when the text was received
}

func newLevelDetails(baseURL string) *LevelDetails {
	return &LevelDetails{
		URL:  baseURL,
		Live: true,
	}
}

// FragmentBySN returns the media fragment with the given sequence number.
func (d *LevelDetails) FragmentBySN(sn int64) *Fragment {
	idx := sn - d.StartSN
	if idx < 0 || idx >= int64(len(d.Fragments)) {
		return nil
	}
	if f := d.Fragments[idx]; f.SN == sn {
		return f
	}
	return nil
}

// LevelKey describes how fragments are encrypted. A key is shared by every
// fragment that follows its EXT-X-KEY tag up to the next one. It is never
// modified after the parser built it.
type LevelKey struct {
	Method  string // AES-128, SAMPLE-AES, SAMPLE-AES-CENC, or empty when unsupported or NONE
	BaseURI string
	RelURI  string
	IV      []byte // IV attribute, nil when absent
}

// NewLevelKey creates a key without method. The parser fills in the method
// only when it is recognised and a URI is present.
func NewLevelKey(baseURI, relURI string) *LevelKey {
	return &LevelKey{BaseURI: baseURI, RelURI: relURI}
}

// URI returns the absolute key URI, or an empty string.
func (k *LevelKey) URI() string {
	if k == nil || k.RelURI == "" {
		return ""
	}
	return ResolveURL(k.BaseURI, k.RelURI)
}

// Encrypted reports whether fragments using this key must be decrypted.
func (k *LevelKey) Encrypted() bool {
	return k != nil && k.Method != ""
}

// ByteRange is an EXT-X-BYTERANGE sub-range of a resource.
type ByteRange struct {
	Length int64 // <n>
	Offset int64 // [@o]
}

// End returns the offset of the first byte after the range.
func (r ByteRange) End() int64 {
	return r.Offset + r.Length
}

// String formats the range the way it is written in a playlist.
func (r ByteRange) String() string {
	return strconv.FormatInt(r.Length, 10) + "@" + strconv.FormatInt(r.Offset, 10)
}

// Fragment is one media segment of a level, or its init segment when SN
// equals InitSegmentSN.
type Fragment struct {
	SN                 int64             // media sequence number
	CC                 int               // discontinuity counter
	Level              int               // level id
	URLID              int               // redundant stream id
	Type               PlaylistLevelType // main, audio or subtitle
	Start              float64           // seconds from the start of the level
	Duration           float64           // EXTINF duration, NaN until set
	Title              string            // EXTINF title
	BaseURL            string
	RelURL             string
	ByteRange          *ByteRange // nil when the whole resource is the fragment
	LevelKey           *LevelKey  // key in force, nil when no EXT-X-KEY preceded the fragment
	RawProgramDateTime string     // EXT-X-PROGRAM-DATE-TIME as written
	ProgramDateTime    time.Time  // explicit, carried forward or back-filled; zero when unknown
	TagList            [][]string // tags seen for this fragment, in order
}

func newFragment() *Fragment {
	return &Fragment{Duration: math.NaN()}
}

// IsInitSegment reports whether the fragment is a media initialization section.
func (f *Fragment) IsInitSegment() bool {
	return f.SN == InitSegmentSN
}

// URL returns the absolute fragment URL.
func (f *Fragment) URL() string {
	if f.RelURL == "" {
		return ""
	}
	return ResolveURL(f.BaseURL, f.RelURL)
}

// HasDuration reports whether an EXTINF duration was parsed.
func (f *Fragment) HasDuration() bool {
	return !math.IsNaN(f.Duration) && !math.IsInf(f.Duration, 0)
}

// End returns the playback time at which the fragment ends.
func (f *Fragment) End() float64 {
	return f.Start + f.Duration
}

// EndProgramDateTime returns the wall-clock time at which the fragment ends,
// or the zero time when the fragment is undated.
func (f *Fragment) EndProgramDateTime() time.Time {
	if f.ProgramDateTime.IsZero() {
		return time.Time{}
	}
	return f.ProgramDateTime.Add(secondsToDuration(f.Duration))
}

// ByteRangeStartOffset returns the first byte of the range, or 0.
func (f *Fragment) ByteRangeStartOffset() int64 {
	if f.ByteRange == nil {
		return 0
	}
	return f.ByteRange.Offset
}

// ByteRangeEndOffset returns the byte after the range, or 0.
func (f *Fragment) ByteRangeEndOffset() int64 {
	if f.ByteRange == nil {
		return 0
	}
	return f.ByteRange.End()
}

// SetByteRange parses "<length>[@<offset>]". Without an offset the range
// starts where the previous fragment's range ended, or at 0.
func (f *Fragment) SetByteRange(value string, prev *Fragment) error {
	params := strings.SplitN(strings.TrimSpace(value), "@", 2)
	length, err := strconv.ParseInt(params[0], 10, 64)
	if err != nil || length < 0 {
		return fmt.Errorf("%w: %q", ErrInvalidByteRange, value)
	}
	var offset int64
	if len(params) > 1 {
		if offset, err = strconv.ParseInt(params[1], 10, 64); err != nil || offset < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidByteRange, value)
		}
	} else if prev != nil {
		offset = prev.ByteRangeEndOffset()
	}
	f.ByteRange = &ByteRange{Length: length, Offset: offset}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
