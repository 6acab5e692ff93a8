// Package event defines the payloads exchanged between engine components and
// the Hub that delivers them.
//
// Every payload type maps to exactly one Name. Components register a handler
// map at construction time; the hub dispatches synchronously on the caller's
// goroutine.
package event

import (
	"time"

	"github.com/mogiioin/hlsengine/m3u8"
	"github.com/mogiioin/hlsengine/media"
)

// Name identifies an event.
type Name string

const (
	MediaAttaching       Name = "hlsMediaAttaching"
	MediaAttached        Name = "hlsMediaAttached"
	MediaDetaching       Name = "hlsMediaDetaching"
	MediaDetached        Name = "hlsMediaDetached"
	BufferReset          Name = "hlsBufferReset"
	BufferCodecs         Name = "hlsBufferCodecs"
	BufferCreated        Name = "hlsBufferCreated"
	BufferAppending      Name = "hlsBufferAppending"
	BufferAppended       Name = "hlsBufferAppended"
	BufferEOS            Name = "hlsBufferEos"
	BufferFlushing       Name = "hlsBufferFlushing"
	BufferFlushed        Name = "hlsBufferFlushed"
	ManifestLoading      Name = "hlsManifestLoading"
	ManifestLoaded       Name = "hlsManifestLoaded"
	ManifestParsed       Name = "hlsManifestParsed"
	LevelLoading         Name = "hlsLevelLoading"
	LevelLoaded          Name = "hlsLevelLoaded"
	LevelUpdated         Name = "hlsLevelUpdated"
	LevelPTSUpdated      Name = "hlsLevelPtsUpdated"
	AudioTrackLoading    Name = "hlsAudioTrackLoading"
	AudioTrackLoaded     Name = "hlsAudioTrackLoaded"
	SubtitleTrackLoading Name = "hlsSubtitleTrackLoading"
	SubtitleTrackLoaded  Name = "hlsSubtitleTrackLoaded"
	Error                Name = "hlsError"
)

// Names lists every event in declaration order.
var Names = []Name{
	MediaAttaching, MediaAttached, MediaDetaching, MediaDetached,
	BufferReset, BufferCodecs, BufferCreated, BufferAppending, BufferAppended,
	BufferEOS, BufferFlushing, BufferFlushed,
	ManifestLoading, ManifestLoaded, ManifestParsed,
	LevelLoading, LevelLoaded, LevelUpdated, LevelPTSUpdated,
	AudioTrackLoading, AudioTrackLoaded, SubtitleTrackLoading, SubtitleTrackLoaded,
	Error,
}

// Payload is implemented by every event payload.
type Payload interface {
	EventName() Name
}

// Track types used as source buffer keys.
const (
	TrackAudio = "audio"
	TrackVideo = "video"
)

// Segment content kinds.
const (
	ContentInitSegment = "initSegment"
	ContentData        = "data"
)

// LoadStats describe one playlist fetch.
type LoadStats struct {
	Requested time.Time
	FirstByte time.Time
	Loaded    time.Time
	Bytes     int64
}

// TrackCodec is a track declared by a stream controller before buffers exist.
type TrackCodec struct {
	Container  string
	Codec      string
	LevelCodec string
	ID         string
}

// Track is a track with its created source buffer.
type Track struct {
	Buffer     media.SourceBuffer
	Codec      string
	Container  string
	LevelCodec string
	ID         string
}

type MediaAttachingData struct {
	Media media.Element
}

type MediaAttachedData struct {
	Media media.Element
}

type MediaDetachingData struct{}

type MediaDetachedData struct{}

type BufferResetData struct{}

// BufferCodecsData maps track type to its declared codec.
type BufferCodecsData struct {
	Tracks map[string]TrackCodec
}

type BufferCreatedData struct {
	Tracks map[string]Track
}

// BufferAppendingData is one segment to append.
type BufferAppendingData struct {
	Type    string
	Data    []byte
	Parent  string
	Content string
}

// BufferAppendedData reports a completed append with the buffered ranges of
// every source buffer.
type BufferAppendedData struct {
	Parent     string
	Pending    int
	TimeRanges map[string]media.TimeRanges
}

// BufferEOSData marks Type as ended. An empty Type marks every buffer.
type BufferEOSData struct {
	Type string
}

// BufferFlushingData requests removal of [StartOffset, EndOffset). An empty
// Type flushes video then audio.
type BufferFlushingData struct {
	StartOffset float64
	EndOffset   float64
	Type        string
}

type BufferFlushedData struct{}

type ManifestLoadingData struct {
	URL string
}

type ManifestLoadedData struct {
	Levels         []*m3u8.Level
	AudioTracks    []*m3u8.MediaTrack
	SubtitleTracks []*m3u8.MediaTrack
	URL            string
	Stats          LoadStats
}

type ManifestParsedData struct {
	Levels   []*m3u8.Level
	AltAudio bool
}

type LevelLoadingData struct {
	URL   string
	Level int
	ID    int
}

type LevelLoadedData struct {
	Details *m3u8.LevelDetails
	Level   int
	ID      int
	Stats   LoadStats
}

type LevelUpdatedData struct {
	Details *m3u8.LevelDetails
	Level   int
}

// LevelPTSUpdatedData reports the presentation start of a track after
// demuxing.
type LevelPTSUpdatedData struct {
	Details *m3u8.LevelDetails
	Level   int
	Type    string
	Start   float64
	End     float64
}

type AudioTrackLoadingData struct {
	URL string
	ID  int
}

type AudioTrackLoadedData struct {
	Details *m3u8.LevelDetails
	ID      int
	Stats   LoadStats
}

type SubtitleTrackLoadingData struct {
	URL string
	ID  int
}

type SubtitleTrackLoadedData struct {
	Details *m3u8.LevelDetails
	ID      int
	Stats   LoadStats
}

func (MediaAttachingData) EventName() Name       { return MediaAttaching }
func (MediaAttachedData) EventName() Name        { return MediaAttached }
func (MediaDetachingData) EventName() Name       { return MediaDetaching }
func (MediaDetachedData) EventName() Name        { return MediaDetached }
func (BufferResetData) EventName() Name          { return BufferReset }
func (BufferCodecsData) EventName() Name         { return BufferCodecs }
func (BufferCreatedData) EventName() Name        { return BufferCreated }
func (BufferAppendingData) EventName() Name      { return BufferAppending }
func (BufferAppendedData) EventName() Name       { return BufferAppended }
func (BufferEOSData) EventName() Name            { return BufferEOS }
func (BufferFlushingData) EventName() Name       { return BufferFlushing }
func (BufferFlushedData) EventName() Name        { return BufferFlushed }
func (ManifestLoadingData) EventName() Name      { return ManifestLoading }
func (ManifestLoadedData) EventName() Name       { return ManifestLoaded }
func (ManifestParsedData) EventName() Name       { return ManifestParsed }
func (LevelLoadingData) EventName() Name         { return LevelLoading }
func (LevelLoadedData) EventName() Name          { return LevelLoaded }
func (LevelUpdatedData) EventName() Name         { return LevelUpdated }
func (LevelPTSUpdatedData) EventName() Name      { return LevelPTSUpdated }
func (AudioTrackLoadingData) EventName() Name    { return AudioTrackLoading }
func (AudioTrackLoadedData) EventName() Name     { return AudioTrackLoaded }
func (SubtitleTrackLoadingData) EventName() Name { return SubtitleTrackLoading }
func (SubtitleTrackLoadedData) EventName() Name  { return SubtitleTrackLoaded }
func (*ErrorData) EventName() Name               { return Error }
