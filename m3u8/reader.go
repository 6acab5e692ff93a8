package m3u8

/*
 This file defines functions related to playlist parsing.
*/

import (
	"bufio"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var mp4Suffixes = []string{".mp4", ".m4s", ".m4v", ".m4a"}

// TimeParse allows globally apply and/or override Time Parser function.
// Available variants:
//   - FullTimeParse - implements full featured ISO/IEC 8601:2004
//   - StrictTimeParse - implements only RFC3339 Nanoseconds format
var TimeParse func(value string) (time.Time, error) = FullTimeParse

// ParseMasterPlaylist returns one Level per EXT-X-STREAM-INF tag, in order
// of appearance. The variant URI is the first non-tag line after the tag.
func ParseMasterPlaylist(text, baseURL string) ([]*Level, error) {
	if !HasHeader(text) {
		return nil, ErrExtM3UAbsent
	}
	var levels []*Level
	var pending *Level

	scanLines(text, func(line string) {
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			pending = parseExtXStreamInf(line[len("#EXT-X-STREAM-INF:"):])
		case pending != nil && !strings.HasPrefix(line, "#"):
			pending.URL = ResolveURL(baseURL, line)
			levels = append(levels, pending)
			pending = nil
		}
	})

	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	return levels, nil
}

func parseExtXStreamInf(attrString string) *Level {
	attrs := ParseAttributeList(attrString)
	level := &Level{Attrs: attrs}
	if res, ok := attrs.DecimalResolution("RESOLUTION"); ok {
		level.Width = res.Width
		level.Height = res.Height
	}
	if bw, ok := attrs.DecimalInteger("AVERAGE-BANDWIDTH"); ok {
		level.Bitrate = bw
	} else if bw, ok := attrs.DecimalInteger("BANDWIDTH"); ok {
		level.Bitrate = bw
	}
	level.Name = attrs["NAME"]
	setCodecs(SplitCodecs(attrs["CODECS"]), level)
	if strings.HasPrefix(level.VideoCodec, "avc1") {
		level.VideoCodec = ConvertAVC1ToAVCOTI(level.VideoCodec)
	}
	return level
}

// ParseMasterPlaylistMedia returns the EXT-X-MEDIA renditions of the given
// type (MediaTypeAudio or MediaTypeSubtitles). When audioGroups is not empty
// each rendition gets the codec of its group, or of the first group when
// none matches.
func ParseMasterPlaylistMedia(text, baseURL, mediaType string, audioGroups []AudioGroup) []*MediaTrack {
	var medias []*MediaTrack
	id := 0

	scanLines(text, func(line string) {
		if !strings.HasPrefix(line, "#EXT-X-MEDIA:") {
			return
		}
		attrs := ParseAttributeList(line[len("#EXT-X-MEDIA:"):])
		if attrs["TYPE"] != mediaType {
			return
		}
		media := &MediaTrack{
			ID:         id,
			GroupID:    attrs["GROUP-ID"],
			Name:       attrs["NAME"],
			Type:       mediaType,
			Default:    attrs.Bool("DEFAULT"),
			AutoSelect: attrs.Bool("AUTOSELECT"),
			Forced:     attrs.Bool("FORCED"),
			Lang:       attrs["LANGUAGE"],
		}
		id++
		if uri := attrs["URI"]; uri != "" {
			media.URL = ResolveURL(baseURL, uri)
		}
		if media.Name == "" {
			media.Name = media.Lang
		}
		if len(audioGroups) > 0 {
			media.AudioCodec = audioGroups[0].Codec
			for _, g := range audioGroups {
				if g.ID == media.GroupID {
					media.AudioCodec = g.Codec
					break
				}
			}
		}
		medias = append(medias, media)
	})
	return medias
}

// levelState is the running state of a single media playlist scan.
type levelState struct {
	details            *LevelDetails
	baseURL            string
	levelID            int
	levelType          PlaylistLevelType
	urlID              int
	currentSN          int64
	cc                 int
	totalDuration      float64
	frag               *Fragment // accumulator of the fragment being built
	prevFrag           *Fragment
	levelKey           *LevelKey
	firstPdtIndex      int
	targetDurationSeen bool
}

// ParseLevelPlaylist parses a media playlist. Fragments get levelID,
// levelType and urlID; relative URIs resolve against baseURL.
//
// A missing or non-positive target duration returns the parsed details
// together with ErrInvalidTargetDuration.
func ParseLevelPlaylist(text, baseURL string, levelID int, levelType PlaylistLevelType, urlID int) (*LevelDetails, error) {
	if !HasHeader(text) {
		return nil, ErrExtM3UAbsent
	}
	state := &levelState{
		details:       newLevelDetails(baseURL),
		baseURL:       baseURL,
		levelID:       levelID,
		levelType:     levelType,
		urlID:         urlID,
		frag:          newFragment(),
		firstPdtIndex: -1,
	}

	var err error
	scanLines(text, func(line string) {
		if err != nil {
			return
		}
		err = decodeLineOfLevelPlaylist(state, line)
	})
	if err != nil {
		return nil, err
	}

	return state.finalize()
}

// Parse one line of a media playlist.
func decodeLineOfLevelPlaylist(state *levelState, line string) error {
	frag := state.frag
	details := state.details

	switch {
	case !strings.HasPrefix(line, "#"):
		state.closeFragment(line)
	case strings.HasPrefix(line, "#EXTINF:"):
		value := line[len("#EXTINF:"):]
		duration, title, _ := strings.Cut(value, ",")
		duration = strings.TrimSpace(duration)
		// an unreadable duration leaves the fragment without one, so its URI
		// is skipped
		d, err := strconv.ParseFloat(duration, 64)
		if err != nil {
			d = math.NaN()
		}
		frag.Duration = d
		frag.Title = strings.TrimSpace(title)
		if frag.Title != "" {
			frag.TagList = append(frag.TagList, []string{"INF", duration, frag.Title})
		} else {
			frag.TagList = append(frag.TagList, []string{"INF", duration})
		}
	case strings.HasPrefix(line, "#EXT-X-BYTERANGE:"):
		if err := frag.SetByteRange(line[len("#EXT-X-BYTERANGE:"):], state.prevFrag); err != nil {
			return err
		}
	case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
		frag.RawProgramDateTime = strings.TrimSpace(line[len("#EXT-X-PROGRAM-DATE-TIME:"):])
		frag.TagList = append(frag.TagList, []string{"PROGRAM-DATE-TIME", frag.RawProgramDateTime})
		if state.firstPdtIndex < 0 {
			state.firstPdtIndex = len(details.Fragments)
		}
	case line == "#EXTM3U":
	case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
		details.Type = strings.ToUpper(strings.TrimSpace(line[len("#EXT-X-PLAYLIST-TYPE:"):]))
	case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
		sn, err := strconv.ParseInt(strings.TrimSpace(line[len("#EXT-X-MEDIA-SEQUENCE:"):]), 10, 64)
		if err != nil {
			return fmt.Errorf("media sequence parsing error: %w", err)
		}
		details.StartSN = sn
		state.currentSN = sn
	case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
		td, err := strconv.ParseFloat(strings.TrimSpace(line[len("#EXT-X-TARGETDURATION:"):]), 64)
		if err == nil {
			details.TargetDuration = td
			state.targetDurationSeen = true
		}
	case strings.HasPrefix(line, "#EXT-X-VERSION:"):
		if _, err := fmt.Sscanf(line, "#EXT-X-VERSION:%d", &details.Version); err != nil {
			return fmt.Errorf("version parsing error: %w", err)
		}
	case line == "#EXT-X-ENDLIST":
		details.Live = false
	case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"):
		cc, err := strconv.Atoi(strings.TrimSpace(line[len("#EXT-X-DISCONTINUITY-SEQUENCE:"):]))
		if err != nil {
			return fmt.Errorf("discontinuity sequence parsing error: %w", err)
		}
		state.cc = cc
	case line == "#EXT-X-DISCONTINUITY":
		state.cc++
		frag.TagList = append(frag.TagList, []string{"DIS"})
	case strings.HasPrefix(line, "#EXT-X-KEY:"):
		state.decodeKey(ParseAttributeList(line[len("#EXT-X-KEY:"):]))
	case strings.HasPrefix(line, "#EXT-X-START:"):
		attrs := ParseAttributeList(line[len("#EXT-X-START:"):])
		if offset, ok := attrs.DecimalFloatingPoint("TIME-OFFSET"); ok && !math.IsInf(offset, 0) && !math.IsNaN(offset) {
			details.StartTimeOffset = &offset
		}
	case strings.HasPrefix(line, "#EXT-X-MAP:"):
		return state.decodeMap(ParseAttributeList(line[len("#EXT-X-MAP:"):]))
	default:
		name, value, hasValue := strings.Cut(line[1:], ":")
		if hasValue && value != "" {
			frag.TagList = append(frag.TagList, []string{name, value})
		} else {
			frag.TagList = append(frag.TagList, []string{name})
		}
	}
	return nil
}

// closeFragment turns the accumulator into a media fragment. A URI without
// a preceding EXTINF duration is ignored.
func (s *levelState) closeFragment(uri string) {
	frag := s.frag
	if !frag.HasDuration() {
		return
	}
	frag.SN = s.currentSN
	s.currentSN++
	frag.Type = s.levelType
	frag.Start = s.totalDuration
	frag.LevelKey = s.levelKey
	frag.Level = s.levelID
	frag.CC = s.cc
	frag.URLID = s.urlID
	frag.BaseURL = s.baseURL
	frag.RelURL = uri
	assignProgramDateTime(frag, s.prevFrag)

	s.details.Fragments = append(s.details.Fragments, frag)
	s.prevFrag = frag
	s.totalDuration += frag.Duration
	s.frag = newFragment()
}

// decodeKey replaces the key in force. Fragments already closed keep the
// key they were given. A METHOD we cannot decrypt or a missing URI leaves
// a key without method.
func (s *levelState) decodeKey(attrs AttributeList) {
	method := attrs.EnumeratedString("METHOD")
	if method == "" {
		return
	}
	uri := attrs["URI"]
	key := NewLevelKey(s.baseURL, uri)
	if uri != "" {
		switch method {
		case KeyMethodAES128, KeyMethodSampleAES, KeyMethodSampleAESCENC:
			key.Method = method
			key.IV = attrs.HexadecimalInteger("IV")
		}
	}
	s.levelKey = key
}

// decodeMap turns the accumulator into the init segment and starts a new
// fragment that inherits its program date time.
func (s *levelState) decodeMap(attrs AttributeList) error {
	frag := s.frag
	frag.RelURL = attrs["URI"]
	if br := attrs["BYTERANGE"]; br != "" {
		if err := frag.SetByteRange(br, nil); err != nil {
			return err
		}
	}
	frag.BaseURL = s.baseURL
	frag.Level = s.levelID
	frag.Type = s.levelType
	frag.SN = InitSegmentSN
	s.details.InitSegment = frag

	s.frag = newFragment()
	s.frag.RawProgramDateTime = frag.RawProgramDateTime
	return nil
}

func (s *levelState) finalize() (*LevelDetails, error) {
	details := s.details

	// A trailing EXTINF without URI stays in the accumulator and never
	// reaches the fragment list or the total duration.
	details.TotalDuration = s.totalDuration
	if n := len(details.Fragments); n > 0 {
		details.AverageTargetDuration = s.totalDuration / float64(n)
		details.StartCC = details.Fragments[0].CC
	}
	details.EndSN = s.currentSN - 1
	details.EndCC = s.cc

	if details.InitSegment == nil && len(details.Fragments) > 0 && allMP4(details.Fragments) {
		details.InitSegment = &Fragment{
			SN:       InitSegmentSN,
			Level:    s.levelID,
			Type:     s.levelType,
			BaseURL:  s.baseURL,
			RelURL:   details.Fragments[0].RelURL,
			Duration: math.NaN(),
		}
		details.NeedSidxRanges = true
	}

	if s.firstPdtIndex > 0 && s.firstPdtIndex < len(details.Fragments) {
		backfillProgramDateTimes(details.Fragments, s.firstPdtIndex)
	}
	if !s.targetDurationSeen || !(details.TargetDuration > 0) {
		return details, ErrInvalidTargetDuration
	}
	return details, nil
}

func assignProgramDateTime(frag, prev *Fragment) {
	if frag.RawProgramDateTime != "" {
		if t, err := TimeParse(frag.RawProgramDateTime); err == nil {
			frag.ProgramDateTime = t
			return
		}
	} else if prev != nil && !prev.ProgramDateTime.IsZero() {
		frag.ProgramDateTime = prev.EndProgramDateTime()
		return
	}
	frag.ProgramDateTime = time.Time{}
	frag.RawProgramDateTime = ""
}

// backfillProgramDateTimes walks back from the first dated fragment,
// subtracting each fragment's own duration.
func backfillProgramDateTimes(fragments []*Fragment, firstPdtIndex int) {
	next := fragments[firstPdtIndex]
	if next.ProgramDateTime.IsZero() {
		return
	}
	for i := firstPdtIndex - 1; i >= 0; i-- {
		frag := fragments[i]
		frag.ProgramDateTime = next.ProgramDateTime.Add(-secondsToDuration(frag.Duration))
		next = frag
	}
}

func allMP4(fragments []*Fragment) bool {
	for _, f := range fragments {
		if !hasMP4Suffix(f.RelURL) {
			return false
		}
	}
	return true
}

func hasMP4Suffix(uri string) bool {
	lower := strings.ToLower(uri)
	for _, suffix := range mp4Suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// HasHeader reports whether the text starts with the #EXTM3U tag.
func HasHeader(text string) bool {
	return strings.HasPrefix(text, "#EXTM3U")
}

// IsLevelPlaylist reports whether the text is a media playlist rather than
// a master playlist.
func IsLevelPlaylist(text string) bool {
	return strings.Contains(text, "#EXTINF:") || strings.Contains(text, "#EXT-X-TARGETDURATION:")
}

// ResolveURL resolves ref against base. Unparsable inputs yield ref.
func ResolveURL(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() || base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// scanLines calls fn for every non-empty line with trailing whitespace removed.
func scanLines(text string, fn func(line string)) {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" {
			continue
		}
		fn(line)
	}
}

// DeQuote removes quotes from a string.
func DeQuote(s string) string {
	if len(s) < 2 {
		return s
	}
	if s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// StrictTimeParse implements RFC3339 with Nanoseconds accuracy.
func StrictTimeParse(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

// FullTimeParse implements ISO/IEC 8601:2004.
func FullTimeParse(value string) (time.Time, error) {
	layouts := []string{
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999Z07",
	}
	var (
		err error
		t   time.Time
	)
	for _, layout := range layouts {
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return t, err
}
