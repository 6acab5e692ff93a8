// Package buffer feeds demuxed segments into host source buffers and keeps
// track of what ended up buffered.
package buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/mogiioin/hlsengine/config"
	"github.com/mogiioin/hlsengine/event"
	"github.com/mogiioin/hlsengine/media"
)

// MaxTracks is the number of track types (one audio, one video) after which
// source buffers are created without waiting for more codec declarations.
const MaxTracks = 2

const (
	// minRemoveLength is the smallest overlap, in seconds, worth a remove call.
	minRemoveLength = 0.5

	// maxAudioOffsetDrift is the timestamp offset drift, in seconds, tolerated
	// for MPEG audio before the offset is reset.
	maxAudioOffsetDrift = 0.1

	defaultTargetDuration = 10

	mpegAudioContainer = "audio/mpeg"
)

// State is the attachment state of the controller.
type State int

const (
	Detached State = iota
	Attaching
	Open
	Detaching
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attaching:
		return "attaching"
	case Open:
		return "open"
	case Detaching:
		return "detaching"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// AppendState tells whether an append is in flight.
type AppendState int

const (
	AppendIdle AppendState = iota
	Appending
)

// FlushState tells whether queued flush ranges wait for a remove to complete.
type FlushState int

const (
	FlushIdle FlushState = iota
	Flushing
)

type flushRange struct {
	start, end float64
	typ        string
}

type sourceBuffer struct {
	media.SourceBuffer
	ended bool
	offs  []func()
}

func (sb *sourceBuffer) detach() {
	for _, off := range sb.offs {
		off()
	}
	sb.offs = nil
}

// Controller creates source buffers once track codecs are known, serializes
// appends and removes on them, signals end of stream, and keeps the media
// source duration in line with the loaded level.
//
// It reacts to hub events and is not safe for concurrent use: events and host
// callbacks must be delivered from one goroutine.
type Controller struct {
	hub      *event.Hub
	reg      *event.Registration
	provider media.Provider
	cfg      config.BufferConfig
	logger   *slog.Logger

	state       State
	media       media.Element
	mediaSource media.Source
	objectURL   string
	sourceOffs  []func()
	openOff     func()

	// duration last set on the media source, NaN until known
	msDuration          float64
	levelDuration       float64
	levelTargetDuration float64
	live                bool

	appendState               AppendState
	flushState                FlushState
	needsEOS                  bool
	bufferCodecEventsExpected int

	segments   []event.BufferAppendingData
	flushRange []flushRange
	parent     string

	appended           int
	appendError        int
	flushBufferCounter int

	pendingTracks map[string]event.TrackCodec
	pendingOrder  []string
	tracks        map[string]event.Track
	buffers       map[string]*sourceBuffer
	bufferOrder   []string

	audioTimestampOffset *float64
}

// NewController returns a controller registered on hub.
func NewController(hub *event.Hub, provider media.Provider, cfg config.BufferConfig) *Controller {
	c := &Controller{
		hub:                 hub,
		provider:            provider,
		cfg:                 cfg,
		logger:              hub.Logger("buffer-controller"),
		msDuration:          math.NaN(),
		levelDuration:       math.NaN(),
		levelTargetDuration: defaultTargetDuration,
	}
	c.resetMaps()
	c.reg = hub.Register("buffer-controller", map[event.Name]event.Handler{
		event.MediaAttaching:  event.Handle(c.onMediaAttaching),
		event.MediaDetaching:  event.Handle(c.onMediaDetaching),
		event.ManifestParsed:  event.Handle(c.onManifestParsed),
		event.BufferReset:     event.Handle(c.onBufferReset),
		event.BufferAppending: event.Handle(c.onBufferAppending),
		event.BufferCodecs:    event.Handle(c.onBufferCodecs),
		event.BufferEOS:       event.Handle(c.onBufferEOS),
		event.BufferFlushing:  event.Handle(c.onBufferFlushing),
		event.LevelPTSUpdated: event.Handle(c.onLevelPTSUpdated),
		event.LevelUpdated:    event.Handle(c.onLevelUpdated),
	})
	return c
}

// Destroy unregisters the controller from its hub.
func (c *Controller) Destroy() {
	c.reg.Destroy()
}

// State returns the attachment state.
func (c *Controller) State() State { return c.state }

// AppendState returns whether an append is in flight.
func (c *Controller) AppendState() AppendState { return c.appendState }

// FlushState returns whether flush ranges are waiting.
func (c *Controller) FlushState() FlushState { return c.flushState }

// PendingSegments returns the number of queued segments.
func (c *Controller) PendingSegments() int { return len(c.segments) }

// PendingFlushRanges returns the number of queued flush ranges.
func (c *Controller) PendingFlushRanges() int { return len(c.flushRange) }

// AppendErrors returns the number of consecutive failed append submissions.
func (c *Controller) AppendErrors() int { return c.appendError }

// Tracks returns the tracks with a created source buffer.
func (c *Controller) Tracks() map[string]event.Track {
	out := make(map[string]event.Track, len(c.tracks))
	for k, v := range c.tracks {
		out[k] = v
	}
	return out
}

// Buffered returns the buffered ranges of the source buffer of type typ.
func (c *Controller) Buffered(typ string) media.Ranges {
	sb, ok := c.buffers[typ]
	if !ok {
		return nil
	}
	tr, err := sb.Buffered()
	if err != nil {
		return nil
	}
	return media.ToRanges(tr)
}

func (c *Controller) resetMaps() {
	c.pendingTracks = make(map[string]event.TrackCodec)
	c.pendingOrder = nil
	c.tracks = make(map[string]event.Track)
	c.buffers = make(map[string]*sourceBuffer)
	c.bufferOrder = nil
}

func (c *Controller) onManifestParsed(data event.ManifestParsedData) error {
	// alternate audio means a second stream controller declares its own track
	c.bufferCodecEventsExpected = 1
	if data.AltAudio {
		c.bufferCodecEventsExpected = 2
	}
	c.logger.Debug("buffer codec events expected", slog.Int("count", c.bufferCodecEventsExpected))
	return nil
}

func (c *Controller) onMediaAttaching(data event.MediaAttachingData) error {
	if data.Media == nil || c.provider == nil {
		return nil
	}
	c.media = data.Media
	ms := c.provider.NewMediaSource()
	c.mediaSource = ms
	c.openOff = ms.OnSourceOpen(c.onMediaSourceOpen)
	c.sourceOffs = []func(){
		c.openOff,
		ms.OnSourceEnded(func() { c.logger.Debug("media source ended") }),
		ms.OnSourceClose(func() { c.logger.Debug("media source closed") }),
	}
	c.objectURL = c.provider.CreateObjectURL(ms)
	c.media.SetSrc(c.objectURL)
	c.state = Attaching
	return nil
}

func (c *Controller) onMediaSourceOpen() {
	c.logger.Debug("media source opened")
	// only the first open notification counts
	if c.openOff != nil {
		c.openOff()
		c.openOff = nil
	}
	c.state = Open
	c.hub.Trigger(event.MediaAttachedData{Media: c.media})
	c.checkPendingTracks()
}

func (c *Controller) onMediaDetaching(event.MediaDetachingData) error {
	c.logger.Debug("media source detaching")
	if ms := c.mediaSource; ms != nil {
		c.state = Detaching
		if ms.ReadyState() == media.ReadyStateOpen {
			// a pending append makes this fail, which is fine while detaching
			if err := ms.EndOfStream(); err != nil {
				c.logger.Warn("endOfStream failed while detaching", slog.String("error", err.Error()))
			}
		}
		for _, off := range c.sourceOffs {
			off()
		}
		c.sourceOffs = nil
		c.openOff = nil
		for _, sb := range c.buffers {
			sb.detach()
		}

		if c.media != nil {
			if c.objectURL != "" {
				c.provider.RevokeObjectURL(c.objectURL)
			}
			// the element may have been taken over by someone else
			if c.media.Src() == c.objectURL {
				c.media.RemoveSrc()
				c.media.Load()
			} else {
				c.logger.Warn("media src was changed by a third party, skip cleanup")
			}
		}

		c.mediaSource = nil
		c.media = nil
		c.objectURL = ""
		c.resetMaps()
		c.segments = nil
		c.flushRange = nil
		c.appended = 0
		c.appendError = 0
		c.flushBufferCounter = 0
		c.appendState = AppendIdle
		c.flushState = FlushIdle
		c.needsEOS = false
		c.audioTimestampOffset = nil
		c.msDuration = math.NaN()
	}
	c.state = Detached
	c.hub.Trigger(event.MediaDetachedData{})
	return nil
}

func (c *Controller) onBufferReset(event.BufferResetData) error {
	for _, typ := range c.bufferOrder {
		sb := c.buffers[typ]
		if c.mediaSource != nil {
			if err := c.mediaSource.RemoveSourceBuffer(sb.SourceBuffer); err != nil {
				c.logger.Debug("removeSourceBuffer failed", slog.String("type", typ), slog.String("error", err.Error()))
			}
		}
		sb.detach()
	}
	c.buffers = make(map[string]*sourceBuffer)
	c.bufferOrder = nil
	c.flushRange = nil
	c.segments = nil
	c.appended = 0
	c.appendState = AppendIdle
	c.flushState = FlushIdle
	c.needsEOS = false
	return nil
}

func (c *Controller) onBufferCodecs(data event.BufferCodecsData) error {
	// codecs declared after buffer creation are ignored
	if len(c.buffers) > 0 {
		return nil
	}
	names := make([]string, 0, len(data.Tracks))
	for name := range data.Tracks {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, ok := c.pendingTracks[name]; !ok {
			c.pendingOrder = append(c.pendingOrder, name)
		}
		c.pendingTracks[name] = data.Tracks[name]
	}
	c.bufferCodecEventsExpected = max(c.bufferCodecEventsExpected-1, 0)
	if c.mediaSource != nil && c.mediaSource.ReadyState() == media.ReadyStateOpen {
		c.checkPendingTracks()
	}
	return nil
}

// checkPendingTracks creates all source buffers at once when every expected
// codec declaration arrived or both track types are known. Hosts may reject
// a new source buffer once data was appended to a sibling.
func (c *Controller) checkPendingTracks() {
	count := len(c.pendingTracks)
	if (count > 0 && c.bufferCodecEventsExpected == 0) || count >= MaxTracks {
		c.createSourceBuffers()
		c.pendingTracks = make(map[string]event.TrackCodec)
		c.pendingOrder = nil
		c.doAppending()
	}
}

func (c *Controller) createSourceBuffers() {
	ms := c.mediaSource
	if ms == nil {
		return
	}
	for _, name := range c.pendingOrder {
		if _, ok := c.buffers[name]; ok {
			continue
		}
		track := c.pendingTracks[name]
		codec := track.Codec
		if track.LevelCodec != "" {
			codec = track.LevelCodec
		}
		mimeType := track.Container + ";codecs=" + codec
		c.logger.Info("creating source buffer", slog.String("type", name), slog.String("mime", mimeType))
		sb, err := ms.AddSourceBuffer(mimeType)
		if err != nil {
			c.logger.Error("error while trying to add source buffer", slog.String("mime", mimeType), slog.String("error", err.Error()))
			c.hub.Trigger(&event.ErrorData{
				Type:     event.MediaError,
				Details:  event.BufferAddCodecError,
				MimeType: mimeType,
				Err:      err,
			})
			continue
		}
		wrapped := &sourceBuffer{SourceBuffer: sb}
		wrapped.offs = []func(){
			sb.OnUpdateEnd(c.onSBUpdateEnd),
			sb.OnError(c.onSBUpdateError),
		}
		c.buffers[name] = wrapped
		c.bufferOrder = append(c.bufferOrder, name)
		c.tracks[name] = event.Track{
			Buffer:     sb,
			Codec:      codec,
			Container:  track.Container,
			LevelCodec: track.LevelCodec,
			ID:         track.ID,
		}
	}
	c.hub.Trigger(event.BufferCreatedData{Tracks: c.Tracks()})
}

func (c *Controller) onBufferAppending(data event.BufferAppendingData) error {
	if c.flushState == Flushing {
		c.logger.Debug("segment dropped while flushing", slog.String("type", data.Type), slog.String("parent", data.Parent))
		return nil
	}
	c.segments = append(c.segments, data)
	c.doAppending()
	return nil
}

// doAppending submits the head segment when no append is in flight.
func (c *Controller) doAppending() {
	if len(c.buffers) == 0 {
		return
	}
	if c.media == nil || c.media.Err() != nil {
		c.segments = nil
		c.logger.Error("trying to append although a media error occurred, flush segments and abort")
		return
	}
	if c.appendState == Appending || len(c.segments) == 0 {
		return
	}
	segment := c.segments[0]
	c.segments = c.segments[1:]

	sb, ok := c.buffers[segment.Type]
	if !ok {
		// the host failed to create a buffer for this type
		c.onSBUpdateEnd()
		return
	}
	if sb.Updating() {
		c.segments = slices.Insert(c.segments, 0, segment)
		return
	}
	sb.ended = false
	c.parent = segment.Parent
	if err := sb.AppendBuffer(segment.Data); err != nil {
		c.appendFailed(segment, err)
		return
	}
	c.appendError = 0
	c.appended++
	c.appendState = Appending
}

func (c *Controller) appendFailed(segment event.BufferAppendingData, err error) {
	c.logger.Error("error while trying to append buffer", slog.String("type", segment.Type), slog.String("error", err.Error()))
	c.segments = slices.Insert(c.segments, 0, segment)
	e := &event.ErrorData{
		Type:   event.MediaError,
		Parent: segment.Parent,
		Err:    err,
	}
	if errors.Is(err, media.ErrQuotaExceeded) {
		// stop appending until the host evicts data
		c.segments = nil
		e.Details = event.BufferFullError
	} else {
		c.appendError++
		e.Details = event.BufferAppendError
		if c.appendError > c.cfg.AppendErrorMaxRetry {
			c.logger.Error("append retries exhausted", slog.Int("retries", c.cfg.AppendErrorMaxRetry))
			c.segments = nil
			e.Fatal = true
		}
	}
	c.hub.Trigger(e)
}

func (c *Controller) onSBUpdateEnd() {
	if c.audioTimestampOffset != nil {
		if audio, ok := c.buffers[event.TrackAudio]; ok {
			c.logger.Warn("change mpeg audio timestamp offset",
				slog.Float64("from", audio.TimestampOffset()),
				slog.Float64("to", *c.audioTimestampOffset),
			)
			if err := audio.SetTimestampOffset(*c.audioTimestampOffset); err != nil {
				c.logger.Warn("cannot set audio timestamp offset", slog.String("error", err.Error()))
			}
			c.audioTimestampOffset = nil
		}
	}
	if c.flushState == Flushing {
		c.doFlush()
	}
	if c.needsEOS {
		c.checkEOS()
	}
	c.appendState = AppendIdle

	parent := c.parent
	pending := 0
	for _, s := range c.segments {
		if s.Parent == parent {
			pending++
		}
	}
	timeRanges := make(map[string]media.TimeRanges, len(c.buffers))
	for _, typ := range c.bufferOrder {
		tr, err := c.buffers[typ].Buffered()
		if err != nil {
			c.logger.Warn("cannot read buffered ranges", slog.String("type", typ), slog.String("error", err.Error()))
			continue
		}
		timeRanges[typ] = tr
	}
	c.hub.Trigger(event.BufferAppendedData{Parent: parent, Pending: pending, TimeRanges: timeRanges})

	if c.flushState != Flushing {
		c.doAppending()
	}
	c.updateMediaElementDuration()
	// appending goes first
	if pending == 0 {
		c.flushLiveBackBuffer()
	}
}

func (c *Controller) onSBUpdateError(err error) {
	c.logger.Error("source buffer error", slog.String("error", err.Error()))
	// not fatal by itself; an update end follows
	c.hub.Trigger(&event.ErrorData{
		Type:    event.MediaError,
		Details: event.BufferAppendingError,
		Err:     err,
	})
}

func (c *Controller) onBufferEOS(data event.BufferEOSData) error {
	for _, typ := range c.bufferOrder {
		if data.Type == "" || data.Type == typ {
			if sb := c.buffers[typ]; !sb.ended {
				sb.ended = true
				c.logger.Debug("source buffer now EOS", slog.String("type", typ))
			}
		}
	}
	c.checkEOS()
	return nil
}

// checkEOS signals end of stream once every buffer is ended and idle.
func (c *Controller) checkEOS() {
	ms := c.mediaSource
	if ms == nil || ms.ReadyState() != media.ReadyStateOpen {
		c.needsEOS = false
		return
	}
	for _, typ := range c.bufferOrder {
		sb := c.buffers[typ]
		if !sb.ended {
			return
		}
		if sb.Updating() {
			c.needsEOS = true
			return
		}
	}
	c.logger.Info("all media data available, signal endOfStream")
	if err := ms.EndOfStream(); err != nil {
		c.logger.Warn("exception while calling endOfStream", slog.String("error", err.Error()))
	}
	c.needsEOS = false
}

func (c *Controller) onBufferFlushing(data event.BufferFlushingData) error {
	if data.Type != "" {
		c.flushRange = append(c.flushRange, flushRange{start: data.StartOffset, end: data.EndOffset, typ: data.Type})
	} else {
		c.flushRange = append(c.flushRange,
			flushRange{start: data.StartOffset, end: data.EndOffset, typ: event.TrackVideo},
			flushRange{start: data.StartOffset, end: data.EndOffset, typ: event.TrackAudio},
		)
	}
	c.flushBufferCounter = 0
	c.doFlush()
	return nil
}

// doFlush drains flush ranges in order. A range whose remove is in flight
// stays at the head until the next update end.
func (c *Controller) doFlush() {
	for len(c.flushRange) > 0 {
		r := c.flushRange[0]
		if !c.flushBuffer(r.start, r.end, r.typ) {
			c.flushState = Flushing
			return
		}
		c.flushRange = c.flushRange[1:]
		c.flushBufferCounter = 0
	}

	c.flushState = FlushIdle
	// recompute the appended count used to bound remove attempts
	appended := 0
	for _, typ := range c.bufferOrder {
		tr, err := c.buffers[typ].Buffered()
		if err != nil {
			c.logger.Error("error while accessing buffered ranges", slog.String("type", typ))
			continue
		}
		appended += tr.Len()
	}
	c.appended = appended
	c.hub.Trigger(event.BufferFlushedData{})
}

// flushBuffer reports true once nothing is left to remove in [start, end)
// for typ.
func (c *Controller) flushBuffer(start, end float64, typ string) bool {
	if len(c.buffers) == 0 {
		return true
	}
	c.logger.Debug("flush buffer",
		slog.Float64("pos", c.currentTime()),
		slog.Float64("start", start),
		slog.Float64("end", end),
		slog.String("type", typ),
	)
	if c.flushBufferCounter >= c.appended {
		c.logger.Warn("abort flushing, too many retries")
		return true
	}
	sb, ok := c.buffers[typ]
	if !ok {
		return true
	}
	sb.ended = false
	if sb.Updating() {
		c.logger.Debug("cannot flush, source buffer updating", slog.String("type", typ))
		return false
	}
	if c.removeBufferRange(typ, sb, start, end) {
		c.flushBufferCounter++
		return false
	}
	return true
}

// removeBufferRange removes the first buffered range overlapping
// [start, end) by more than minRemoveLength. It reports whether a remove was
// requested.
func (c *Controller) removeBufferRange(typ string, sb *sourceBuffer, start, end float64) bool {
	tr, err := sb.Buffered()
	if err != nil {
		c.logger.Warn("removeBufferRange failed", slog.String("type", typ), slog.String("error", err.Error()))
		return false
	}
	for i := 0; i < tr.Len(); i++ {
		bufStart, bufEnd := tr.Start(i), tr.End(i)
		removeStart := max(bufStart, start)
		removeEnd := min(bufEnd, end)
		if min(removeEnd, bufEnd)-removeStart <= minRemoveLength {
			continue
		}
		c.logger.Debug("source buffer remove",
			slog.String("type", typ),
			slog.Float64("start", removeStart),
			slog.Float64("end", removeEnd),
			slog.String("buffered", media.FormatRanges(tr)),
			slog.Float64("pos", c.currentTime()),
		)
		if err := sb.Remove(removeStart, removeEnd); err != nil {
			c.logger.Warn("removeBufferRange failed", slog.String("type", typ), slog.String("error", err.Error()))
			return false
		}
		return true
	}
	return false
}

// flushLiveBackBuffer trims data behind the playhead for live streams, never
// closer than one target duration.
func (c *Controller) flushLiveBackBuffer() {
	if c.media == nil || !c.live || !c.cfg.LiveBackBufferEnabled() {
		return
	}
	target := c.media.CurrentTime() - max(c.cfg.LiveBackBufferLength, c.levelTargetDuration)
	for i := len(c.bufferOrder) - 1; i >= 0; i-- {
		typ := c.bufferOrder[i]
		sb := c.buffers[typ]
		tr, err := sb.Buffered()
		if err != nil || tr.Len() == 0 {
			continue
		}
		if target > tr.Start(0) {
			c.removeBufferRange(typ, sb, 0, target)
		}
	}
}

func (c *Controller) onLevelUpdated(data event.LevelUpdatedData) error {
	details := data.Details
	if details == nil || len(details.Fragments) == 0 {
		return nil
	}
	c.levelDuration = details.TotalDuration + details.Fragments[0].Start
	switch {
	case details.AverageTargetDuration > 0:
		c.levelTargetDuration = details.AverageTargetDuration
	case details.TargetDuration > 0:
		c.levelTargetDuration = details.TargetDuration
	default:
		c.levelTargetDuration = defaultTargetDuration
	}
	c.live = details.Live
	c.updateMediaElementDuration()
	return nil
}

// updateMediaElementDuration only ever grows the media source duration, so
// switching to a shorter level does not drop buffered content. Live streams
// may override it to +Inf.
func (c *Controller) updateMediaElementDuration() {
	if math.IsNaN(c.levelDuration) || c.media == nil || c.mediaSource == nil ||
		c.media.ReadyState() == media.HaveNothing ||
		c.mediaSource.ReadyState() != media.ReadyStateOpen {
		return
	}
	for _, sb := range c.buffers {
		if sb.Updating() {
			return
		}
	}
	duration := c.media.Duration()
	if math.IsNaN(c.msDuration) {
		c.msDuration = c.mediaSource.Duration()
	}

	switch {
	case c.live && c.cfg.LiveDurationInfinity:
		if math.IsInf(c.msDuration, 1) {
			return
		}
		c.logger.Info("media source duration set to Infinity")
		c.setDuration(math.Inf(1))
	case math.IsNaN(c.msDuration) ||
		c.levelDuration > c.msDuration && (c.levelDuration > duration || math.IsNaN(duration) || math.IsInf(duration, 0)):
		c.logger.Info("updating media source duration", slog.Float64("duration", c.levelDuration))
		c.setDuration(c.levelDuration)
	}
}

func (c *Controller) setDuration(d float64) {
	if err := c.mediaSource.SetDuration(d); err != nil {
		c.logger.Warn("cannot set media source duration", slog.String("error", err.Error()))
		return
	}
	c.msDuration = d
}

func (c *Controller) onLevelPTSUpdated(data event.LevelPTSUpdatedData) error {
	audioTrack, ok := c.tracks[event.TrackAudio]
	if data.Type != event.TrackAudio || !ok || audioTrack.Container != mpegAudioContainer {
		return nil
	}
	audio, ok := c.buffers[event.TrackAudio]
	if !ok {
		c.hub.Trigger(&event.ErrorData{
			Type:    event.OtherError,
			Details: event.InternalException,
			Fatal:   true,
			Event:   event.LevelPTSUpdated,
			Reason:  "level PTS updated and source buffer for audio uninitialized",
		})
		return nil
	}
	// MPEG audio appended after a seek or level switch lands at the wrong
	// place unless the timestamp offset follows the level PTS
	if math.Abs(audio.TimestampOffset()-data.Start) <= maxAudioOffsetDrift {
		return nil
	}
	updating := audio.Updating()
	if err := audio.Abort(); err != nil {
		c.logger.Warn("cannot abort audio buffer", slog.String("error", err.Error()))
	}
	if updating {
		start := data.Start
		c.audioTimestampOffset = &start
		return nil
	}
	c.logger.Warn("change mpeg audio timestamp offset",
		slog.Float64("from", audio.TimestampOffset()),
		slog.Float64("to", data.Start),
	)
	if err := audio.SetTimestampOffset(data.Start); err != nil {
		c.logger.Warn("cannot set audio timestamp offset", slog.String("error", err.Error()))
	}
	return nil
}

func (c *Controller) currentTime() float64 {
	if c.media == nil {
		return math.NaN()
	}
	return c.media.CurrentTime()
}
