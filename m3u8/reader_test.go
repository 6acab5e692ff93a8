package m3u8

/*
Playlist parsing tests.
*/

import (
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
)

const testBaseURL = "https://example.com/hls/master.m3u8"

func readTestPlaylist(t *testing.T, fileName string) string {
	t.Helper()
	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("must open %s: %v", fileName, err)
	}
	return string(data)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseMasterPlaylist(t *testing.T) {
	is := is.New(t)
	levels, err := ParseMasterPlaylist(readTestPlaylist(t, "sample-playlists/master.m3u8"), testBaseURL)
	is.NoErr(err)            // must decode playlist
	is.Equal(len(levels), 3) // must be 3 variants

	low := levels[0]
	is.Equal(low.URL, "https://example.com/hls/low/index.m3u8")
	is.Equal(low.Bitrate, int64(1000000)) // AVERAGE-BANDWIDTH wins over BANDWIDTH
	is.Equal(low.Width, 640)
	is.Equal(low.Height, 360)
	is.Equal(low.VideoCodec, "avc1.42001e") // legacy avc1 form converted
	is.Equal(low.AudioCodec, "mp4a.40.2")
	is.Equal(len(low.UnknownCodecs), 0)
	is.Equal(low.Attrs["AUDIO"], "aac")

	mid := levels[1]
	is.Equal(mid.Name, "720p")
	is.Equal(mid.Bitrate, int64(2560000))
	is.Equal(mid.VideoCodec, "avc1.4d401f") // two-part avc1 left alone
	is.Equal(mid.AudioCodec, "mp4a.40.5")

	high := levels[2]
	is.Equal(high.URL, "https://cdn.example.com/high/index.m3u8") // absolute URI kept
	is.Equal(high.VideoCodec, "avc1.640028")                        // avc1 preferred over hvc1
	is.Equal(high.AudioCodec, "mp4a.40.2")                          // mp4a preferred over ec-3
	is.Equal(high.UnknownCodecs, []string{"stpp.ttml.im1t"})
}

func TestParseMasterPlaylistErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{"no header", "#EXT-X-STREAM-INF:BANDWIDTH=1\nlow.m3u8\n", ErrExtM3UAbsent},
		{"header not first", "\n#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nlow.m3u8\n", ErrExtM3UAbsent},
		{"no variants", "#EXTM3U\n#EXT-X-VERSION:3\n", ErrNoLevels},
		{"variant without uri", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\n", ErrNoLevels},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is := is.New(t)
			_, err := ParseMasterPlaylist(c.text, testBaseURL)
			is.True(errors.Is(err, c.want))
		})
	}
}

func TestParseMasterPlaylistURIAfterTags(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=300000\n#EXT-X-UNKNOWN\n\r\nlow.m3u8\r\n"
	levels, err := ParseMasterPlaylist(text, testBaseURL)
	is.NoErr(err)
	is.Equal(len(levels), 1)
	is.Equal(levels[0].URL, "https://example.com/hls/low.m3u8")
	is.Equal(levels[0].Bitrate, int64(300000))
}

func TestParseMasterPlaylistMedia(t *testing.T) {
	is := is.New(t)
	text := readTestPlaylist(t, "sample-playlists/master.m3u8")
	groups := []AudioGroup{{ID: "other", Codec: "ac-3"}, {ID: "aac", Codec: "mp4a.40.2"}}

	audio := ParseMasterPlaylistMedia(text, testBaseURL, MediaTypeAudio, groups)
	is.Equal(len(audio), 2) // must be 2 audio renditions
	is.Equal(audio[0].ID, 0)
	is.Equal(audio[0].Name, "English")
	is.Equal(audio[0].GroupID, "aac")
	is.True(audio[0].Default)
	is.True(audio[0].AutoSelect)
	is.Equal(audio[0].URL, "https://example.com/hls/audio/en.m3u8")
	is.Equal(audio[0].AudioCodec, "mp4a.40.2") // codec of the matching group
	is.Equal(audio[1].ID, 1)
	is.Equal(audio[1].Name, "fr") // NAME falls back to LANGUAGE
	is.True(!audio[1].Default)

	subs := ParseMasterPlaylistMedia(text, testBaseURL, MediaTypeSubtitles, nil)
	is.Equal(len(subs), 1)
	is.Equal(subs[0].ID, 0) // ids are counted per type
	is.Equal(subs[0].AudioCodec, "")
	is.True(!subs[0].Forced)
}

func TestParseMasterPlaylistMediaFallbackCodec(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"main\",NAME=\"Main\"\n"
	audio := ParseMasterPlaylistMedia(text, testBaseURL, MediaTypeAudio, []AudioGroup{{ID: "aac", Codec: "mp4a.40.5"}})
	is.Equal(len(audio), 1)
	is.True(audio[0].Embedded())               // no URI means embedded
	is.Equal(audio[0].AudioCodec, "mp4a.40.5") // first group as best guess
}

func TestParseLevelPlaylistVOD(t *testing.T) {
	is := is.New(t)
	details, err := ParseLevelPlaylist(readTestPlaylist(t, "sample-playlists/media-vod.m3u8"),
		"https://example.com/vod/index.m3u8", 2, LevelTypeMain, 1)
	is.NoErr(err)
	is.Equal(details.Type, "VOD")
	is.Equal(details.Version, 3)
	is.True(!details.Live)
	is.Equal(details.TargetDuration, 10.0)
	is.Equal(details.StartSN, int64(100))
	is.Equal(details.EndSN, int64(102))
	is.Equal(len(details.Fragments), 3)
	is.True(almostEqual(details.TotalDuration, 21.021))
	is.True(almostEqual(details.AverageTargetDuration, 7.007))
	is.Equal(details.StartCC, 0)
	is.Equal(details.EndCC, 0)
	is.True(details.InitSegment == nil) // .ts fragments need no init segment

	for i, frag := range details.Fragments {
		is.Equal(frag.SN, int64(100+i)) // strictly increasing from MEDIA-SEQUENCE
		is.Equal(frag.Level, 2)
		is.Equal(frag.URLID, 1)
		is.Equal(frag.Type, LevelTypeMain)
		is.True(frag.LevelKey == nil)
		is.True(frag.ProgramDateTime.IsZero())
	}
	is.True(almostEqual(details.Fragments[1].Start, 9.009))
	is.True(almostEqual(details.Fragments[2].Start, 18.018))
	is.Equal(details.Fragments[1].Title, "first title")
	is.Equal(details.Fragments[1].TagList, [][]string{{"INF", "9.009", "first title"}})
	is.Equal(details.Fragments[2].URL(), "https://example.com/vod/segment102.ts")
}

func TestParseLevelPlaylistSequenceAndDuration(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:5\n" +
		"#EXTINF:4.5,\na.ts\n#EXTINF:5,\nb.ts\n#EXTINF:4.25,\nc.ts\n#EXTINF:1.5,\nd.ts\n"
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.Equal(len(details.Fragments), 4)
	is.Equal(details.StartSN, int64(0)) // default sequence base
	is.Equal(details.EndSN, int64(3))
	is.True(details.Live) // no ENDLIST
	var sum float64
	for i, frag := range details.Fragments {
		is.Equal(frag.SN, int64(i))
		is.True(almostEqual(frag.Start, sum))
		sum += frag.Duration
	}
	is.True(almostEqual(details.TotalDuration, 15.25))
	is.True(almostEqual(details.TotalDuration, sum))
}

func TestParseLevelPlaylistDanglingExtInf(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\na.ts\n#EXTINF:10,\nb.ts\n#EXTINF:7.5,\n"
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.Equal(len(details.Fragments), 2)   // dangling EXTINF discarded
	is.Equal(details.TotalDuration, 20.0) // and not counted
	is.Equal(details.EndSN, int64(1))     // nor numbered
	is.Equal(details.AverageTargetDuration, 10.0)
}

func TestParseLevelPlaylistURIWithoutExtInf(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:10\nstray.ts\n#EXTINF:10,\na.ts\n"
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.Equal(len(details.Fragments), 1)
	is.Equal(details.Fragments[0].RelURL, "a.ts")
	is.Equal(details.Fragments[0].SN, int64(0))
}

func TestParseLevelPlaylistMalformedExtInf(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:ten,\nbad.ts\n#EXTINF:4,\na.ts\n#EXTINF:6,\nb.ts\n"
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)                       // the playlist still parses
	is.Equal(len(details.Fragments), 2) // bad.ts is skipped
	is.Equal(details.Fragments[0].RelURL, "a.ts")
	is.Equal(details.Fragments[0].SN, int64(0))
	is.Equal(details.TotalDuration, 10.0)
}

func TestParseLevelPlaylistErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{"no header", "#EXT-X-TARGETDURATION:10\n#EXTINF:10,\na.ts\n", ErrExtM3UAbsent},
		{"no target duration", "#EXTM3U\n#EXTINF:10,\na.ts\n", ErrInvalidTargetDuration},
		{"zero target duration", "#EXTM3U\n#EXT-X-TARGETDURATION:0\n#EXTINF:10,\na.ts\n", ErrInvalidTargetDuration},
		{"bad target duration", "#EXTM3U\n#EXT-X-TARGETDURATION:ten\n", ErrInvalidTargetDuration},
		{"bad byte range", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-BYTERANGE:x@1\n", ErrInvalidByteRange},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is := is.New(t)
			_, err := ParseLevelPlaylist(c.text, testBaseURL, 0, LevelTypeMain, 0)
			is.True(errors.Is(err, c.want))
		})
	}
}

func TestParseLevelPlaylistMissingTargetDurationKeepsDetails(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXTINF:4,\na.ts\n#EXTINF:4,\nb.ts\n#EXT-X-ENDLIST\n"
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.True(errors.Is(err, ErrInvalidTargetDuration))
	is.True(details != nil) // details come back with the error
	is.Equal(len(details.Fragments), 2)
	is.Equal(details.TotalDuration, 8.0)
	is.Equal(details.TargetDuration, 0.0)
}

func TestParseLevelPlaylistByteRange(t *testing.T) {
	is := is.New(t)
	text := `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXTINF:10,
#EXT-X-BYTERANGE:1000@0
main.ts
#EXTINF:10,
#EXT-X-BYTERANGE:500
main.ts
#EXTINF:10,
#EXT-X-BYTERANGE:200@4000
main.ts
#EXTINF:10,
#EXT-X-BYTERANGE:100
main.ts
`
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	frags := details.Fragments
	is.Equal(*frags[0].ByteRange, ByteRange{Length: 1000, Offset: 0})
	is.Equal(*frags[1].ByteRange, ByteRange{Length: 500, Offset: 1000}) // continues previous range
	is.Equal(*frags[2].ByteRange, ByteRange{Length: 200, Offset: 4000})
	is.Equal(*frags[3].ByteRange, ByteRange{Length: 100, Offset: 4200})
	is.Equal(frags[1].ByteRangeStartOffset(), int64(1000))
	is.Equal(frags[1].ByteRangeEndOffset(), int64(1500))
	is.True(details.InitSegment == nil)
}

func TestParseLevelPlaylistKeys(t *testing.T) {
	is := is.New(t)
	details, err := ParseLevelPlaylist(readTestPlaylist(t, "sample-playlists/media-live-encrypted.m3u8"),
		"https://example.com/live/index.m3u8", 0, LevelTypeMain, 0)
	is.NoErr(err)
	frags := details.Fragments
	is.Equal(len(frags), 4)

	k1 := frags[0].LevelKey
	is.True(k1 != nil)
	is.Equal(k1.Method, KeyMethodAES128)
	is.Equal(k1.URI(), "https://keys.example.com/k1")
	is.Equal(len(k1.IV), 16)
	is.Equal(k1.IV[14], byte(0x1e))
	is.Equal(k1.IV[15], byte(0x72))
	is.True(frags[1].LevelKey == k1) // shared until the next EXT-X-KEY

	k2 := frags[2].LevelKey
	is.True(k2 != k1) // new key object, earlier fragments untouched
	is.Equal(k2.URI(), "https://example.com/live/k2.key")
	is.True(k2.IV == nil)
	is.Equal(frags[0].LevelKey.URI(), "https://keys.example.com/k1")

	is.True(!frags[3].LevelKey.Encrypted()) // METHOD=NONE
}

func TestParseLevelPlaylistUnsupportedKey(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-KEY:METHOD=AES-128\n#EXTINF:10,\na.ts\n" +
		"#EXT-X-KEY:METHOD=SAMPLE-AES-CTR,URI=\"k\"\n#EXTINF:10,\nb.ts\n"
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.True(!details.Fragments[0].LevelKey.Encrypted()) // no URI
	is.True(!details.Fragments[1].LevelKey.Encrypted()) // unknown method
	is.Equal(details.Fragments[1].LevelKey.URI(), "https://example.com/hls/k")
}

func TestParseLevelPlaylistDiscontinuity(t *testing.T) {
	is := is.New(t)
	details, err := ParseLevelPlaylist(readTestPlaylist(t, "sample-playlists/media-live-encrypted.m3u8"),
		"https://example.com/live/index.m3u8", 0, LevelTypeMain, 0)
	is.NoErr(err)
	frags := details.Fragments
	is.Equal(frags[0].CC, 3) // DISCONTINUITY-SEQUENCE is absolute
	is.Equal(frags[2].CC, 3)
	is.Equal(frags[3].CC, 4)
	is.Equal(details.StartCC, 3)
	is.Equal(details.EndCC, 4)
	is.Equal(details.StartSN, int64(7794))
	is.Equal(details.EndSN, int64(7797))
	is.True(details.Live)
	is.Equal(frags[3].TagList, [][]string{{"DIS"}, {"INF", "6.0"}})
	is.Equal(frags[2].TagList, [][]string{{"EXT-X-CUE-OUT", "30.0"}, {"INF", "6.0"}}) // unknown tag kept
}

func TestParseLevelPlaylistStart(t *testing.T) {
	cases := []struct {
		tag    string
		want   float64
		absent bool
	}{
		{"#EXT-X-START:TIME-OFFSET=0\n", 0, false},
		{"#EXT-X-START:TIME-OFFSET=-12.5,PRECISE=YES\n", -12.5, false},
		{"#EXT-X-START:PRECISE=YES\n", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		is := is.New(t)
		text := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n" + c.tag + "#EXTINF:10,\na.ts\n"
		details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
		is.NoErr(err)
		if c.absent {
			is.True(details.StartTimeOffset == nil)
			continue
		}
		is.True(details.StartTimeOffset != nil)
		is.Equal(*details.StartTimeOffset, c.want)
	}
}

func TestParseLevelPlaylistMap(t *testing.T) {
	is := is.New(t)
	text := `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-PROGRAM-DATE-TIME:2024-03-01T10:00:00.000Z
#EXT-X-MAP:URI="init.mp4",BYTERANGE="720@0"
#EXTINF:4,
seg0.m4s
#EXTINF:4,
seg1.m4s
`
	details, err := ParseLevelPlaylist(text, "https://example.com/fmp4/index.m3u8", 5, LevelTypeAudio, 0)
	is.NoErr(err)
	init := details.InitSegment
	is.True(init != nil)
	is.True(init.IsInitSegment())
	is.Equal(init.URL(), "https://example.com/fmp4/init.mp4")
	is.Equal(*init.ByteRange, ByteRange{Length: 720, Offset: 0})
	is.Equal(init.Level, 5)
	is.Equal(init.Type, LevelTypeAudio)
	is.True(!details.NeedSidxRanges)

	// the first media fragment is seeded with the init segment's date
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	is.True(details.Fragments[0].ProgramDateTime.Equal(want))
	is.True(details.Fragments[1].ProgramDateTime.Equal(want.Add(4 * time.Second)))
	is.Equal(details.Fragments[0].SN, int64(0))
}

func TestParseLevelPlaylistNeedSidxRanges(t *testing.T) {
	is := is.New(t)
	details, err := ParseLevelPlaylist(readTestPlaylist(t, "sample-playlists/media-fmp4-nomap.m3u8"),
		"https://example.com/vod/index.m3u8", 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.True(details.NeedSidxRanges)
	is.True(details.InitSegment != nil)
	is.True(details.InitSegment.IsInitSegment())
	is.Equal(details.InitSegment.URL(), "https://example.com/vod/video.mp4")
	is.True(details.InitSegment.ByteRange == nil)

	mixed := "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXTINF:4,\na.mp4\n#EXTINF:4,\nb.ts\n"
	details, err = ParseLevelPlaylist(mixed, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.True(!details.NeedSidxRanges) // every fragment must be MP4
	is.True(details.InitSegment == nil)
}

func TestParseLevelPlaylistProgramDateTime(t *testing.T) {
	is := is.New(t)
	text := `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXTINF:4,
a.ts
#EXTINF:6,
b.ts
#EXT-X-PROGRAM-DATE-TIME:2024-03-01T10:00:10.000Z
#EXTINF:10,
c.ts
#EXTINF:10,
d.ts
`
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	frags := details.Fragments
	t0 := time.Date(2024, 3, 1, 10, 0, 10, 0, time.UTC)
	is.True(frags[2].ProgramDateTime.Equal(t0))
	is.Equal(frags[2].RawProgramDateTime, "2024-03-01T10:00:10.000Z")
	is.True(frags[3].ProgramDateTime.Equal(t0.Add(10 * time.Second))) // previous end
	is.Equal(frags[3].RawProgramDateTime, "")

	// back-filled by subtracting each fragment's own duration
	is.True(frags[1].ProgramDateTime.Equal(t0.Add(-6 * time.Second)))
	is.True(frags[0].ProgramDateTime.Equal(t0.Add(-10 * time.Second)))
	is.True(frags[3].EndProgramDateTime().Equal(t0.Add(20 * time.Second)))
}

func TestParseLevelPlaylistInvalidProgramDateTime(t *testing.T) {
	is := is.New(t)
	text := "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-PROGRAM-DATE-TIME:yesterday\n#EXTINF:10,\na.ts\n#EXTINF:10,\nb.ts\n"
	details, err := ParseLevelPlaylist(text, testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.True(details.Fragments[0].ProgramDateTime.IsZero())
	is.Equal(details.Fragments[0].RawProgramDateTime, "") // cleared when unparsable
	is.True(details.Fragments[1].ProgramDateTime.IsZero())
}

func TestFragmentBySN(t *testing.T) {
	is := is.New(t)
	details, err := ParseLevelPlaylist(readTestPlaylist(t, "sample-playlists/media-vod.m3u8"), testBaseURL, 0, LevelTypeMain, 0)
	is.NoErr(err)
	is.Equal(details.FragmentBySN(101).RelURL, "segment101.ts")
	is.True(details.FragmentBySN(99) == nil)
	is.True(details.FragmentBySN(103) == nil)
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		base, ref, want string
	}{
		{"https://example.com/a/b/index.m3u8", "seg.ts", "https://example.com/a/b/seg.ts"},
		{"https://example.com/a/b/index.m3u8", "../c/seg.ts", "https://example.com/a/c/seg.ts"},
		{"https://example.com/a/b/index.m3u8", "/root.ts", "https://example.com/root.ts"},
		{"https://example.com/a/index.m3u8", "https://cdn.example.com/x.ts", "https://cdn.example.com/x.ts"},
		{"https://example.com/a/index.m3u8", "seg.ts?token=1", "https://example.com/a/seg.ts?token=1"},
		{"", "seg.ts", "seg.ts"},
	}
	for _, c := range cases {
		is := is.New(t)
		is.Equal(ResolveURL(c.base, c.ref), c.want)
	}
}

func TestIsLevelPlaylist(t *testing.T) {
	is := is.New(t)
	is.True(IsLevelPlaylist(readTestPlaylist(t, "sample-playlists/media-vod.m3u8")))
	is.True(!IsLevelPlaylist(readTestPlaylist(t, "sample-playlists/master.m3u8")))
	is.True(IsLevelPlaylist("#EXTM3U\n#EXT-X-TARGETDURATION:6\n"))
}

func TestTimeParse(t *testing.T) {
	is := is.New(t)
	for _, v := range []string{
		"2024-03-01T10:00:00Z",
		"2024-03-01T10:00:00.123+0100",
		"2024-03-01T10:00:00.123+01:00",
		"2024-03-01T10:00:00+01",
	} {
		_, err := FullTimeParse(v)
		is.NoErr(err) // must parse ISO 8601 variants
	}
	_, err := StrictTimeParse("2024-03-01T10:00:00+0100")
	is.True(err != nil) // RFC3339 only
}
