// Package loader fetches playlists, parses them and announces the result on
// the event hub.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mogiioin/hlsengine/abr"
	"github.com/mogiioin/hlsengine/config"
	"github.com/mogiioin/hlsengine/event"
	"github.com/mogiioin/hlsengine/internal/observability"
	"github.com/mogiioin/hlsengine/m3u8"
)

// Request describes one fetch. RangeEnd is exclusive; a zero RangeEnd
// fetches the whole resource.
type Request struct {
	URL        string
	RangeStart int64
	RangeEnd   int64
}

// HasRange reports whether only a byte range is requested.
func (r Request) HasRange() bool {
	return r.RangeEnd > r.RangeStart
}

// Response is a fetched resource.
type Response struct {
	URL   string // final URL, used to resolve relative URIs
	Data  []byte
	Stats event.LoadStats
}

// Fetcher retrieves resources. Implementations must honour ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// ContextType is the kind of playlist requested.
type ContextType string

const (
	ContextManifest      ContextType = "manifest"
	ContextLevel         ContextType = "level"
	ContextAudioTrack    ContextType = "audioTrack"
	ContextSubtitleTrack ContextType = "subtitleTrack"
)

// levelType maps a context to the playlist level type of its fragments.
func (t ContextType) levelType() m3u8.PlaylistLevelType {
	switch t {
	case ContextAudioTrack:
		return m3u8.LevelTypeAudio
	case ContextSubtitleTrack:
		return m3u8.LevelTypeSubtitle
	default:
		return m3u8.LevelTypeMain
	}
}

type loadContext struct {
	typ   ContextType
	url   string
	level int
	id    int
}

// Option configures a PlaylistLoader.
type Option func(*PlaylistLoader)

// WithEstimator feeds the throughput of every fetch to est.
func WithEstimator(est *abr.BandwidthEstimator) Option {
	return func(l *PlaylistLoader) {
		l.estimator = est
	}
}

// PlaylistLoader loads manifests and media playlists on request events and
// triggers the matching loaded events. Fetches run on the dispatching
// goroutine, bounded by the configured timeouts.
type PlaylistLoader struct {
	hub       *event.Hub
	reg       *event.Registration
	fetcher   Fetcher
	cfg       config.LoaderConfig
	estimator *abr.BandwidthEstimator
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPlaylistLoader returns a loader registered on hub.
func NewPlaylistLoader(hub *event.Hub, fetcher Fetcher, cfg config.LoaderConfig, opts ...Option) *PlaylistLoader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &PlaylistLoader{
		hub:     hub,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  hub.Logger("playlist-loader"),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.reg = hub.Register("playlist-loader", map[event.Name]event.Handler{
		event.ManifestLoading: event.Handle(func(d event.ManifestLoadingData) error {
			l.load(loadContext{typ: ContextManifest, url: d.URL})
			return nil
		}),
		event.LevelLoading: event.Handle(func(d event.LevelLoadingData) error {
			l.load(loadContext{typ: ContextLevel, url: d.URL, level: d.Level, id: d.ID})
			return nil
		}),
		event.AudioTrackLoading: event.Handle(func(d event.AudioTrackLoadingData) error {
			l.load(loadContext{typ: ContextAudioTrack, url: d.URL, id: d.ID})
			return nil
		}),
		event.SubtitleTrackLoading: event.Handle(func(d event.SubtitleTrackLoadingData) error {
			l.load(loadContext{typ: ContextSubtitleTrack, url: d.URL, id: d.ID})
			return nil
		}),
	})
	return l
}

// Destroy cancels in-flight fetches and unregisters the loader.
func (l *PlaylistLoader) Destroy() {
	l.cancel()
	l.reg.Destroy()
}

func (l *PlaylistLoader) timeout(typ ContextType) time.Duration {
	if typ == ContextManifest {
		return l.cfg.ManifestLoadingTimeout
	}
	return l.cfg.LevelLoadingTimeout
}

func (l *PlaylistLoader) fetch(lc loadContext, req Request, timeout time.Duration) (resp *Response, err error) {
	ctx, cancel := context.WithTimeout(l.ctx, timeout)
	defer cancel()
	defer observability.TimedOperation(ctx, l.logger, "fetch "+string(lc.typ), &err)()

	resp, err = l.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if l.estimator != nil && resp.Stats.Bytes > 0 {
		elapsed := resp.Stats.Loaded.Sub(resp.Stats.Requested)
		l.estimator.Sample(float64(elapsed)/float64(time.Millisecond), resp.Stats.Bytes)
	}
	return resp, nil
}

func (l *PlaylistLoader) load(lc loadContext) {
	l.logger.Debug("loading playlist",
		slog.String("type", string(lc.typ)),
		slog.Int("level", lc.level),
		slog.Int("id", lc.id),
		slog.String("url", lc.url),
	)
	resp, err := l.fetch(lc, Request{URL: lc.url}, l.timeout(lc.typ))
	if err != nil {
		l.handleNetworkError(lc, err)
		return
	}
	url := resp.URL
	if url == "" {
		url = lc.url
	}
	text := string(resp.Data)

	if !m3u8.HasHeader(text) {
		l.handleParsingError(url, m3u8.ErrExtM3UAbsent)
		return
	}
	// an empty media playlist has a target duration but no EXTINF yet
	if m3u8.IsLevelPlaylist(text) {
		l.handleLevelPlaylist(lc, url, text, resp.Stats)
	} else {
		l.handleMasterPlaylist(url, text, resp.Stats)
	}
}

func (l *PlaylistLoader) handleMasterPlaylist(url, text string, stats event.LoadStats) {
	levels, err := m3u8.ParseMasterPlaylist(text, url)
	if err != nil {
		l.handleParsingError(url, err)
		return
	}

	audioGroups := make([]m3u8.AudioGroup, 0, len(levels))
	for _, level := range levels {
		audioGroups = append(audioGroups, m3u8.AudioGroup{ID: level.Attrs["AUDIO"], Codec: level.AudioCodec})
	}
	audioTracks := m3u8.ParseMasterPlaylistMedia(text, url, m3u8.MediaTypeAudio, audioGroups)
	subtitles := m3u8.ParseMasterPlaylistMedia(text, url, m3u8.MediaTypeSubtitles, nil)

	if len(audioTracks) > 0 {
		embeddedAudioFound := false
		for _, track := range audioTracks {
			if track.Embedded() {
				embeddedAudioFound = true
				break
			}
		}
		// variants muxing their own audio next to alternate renditions
		// need a track to switch back to
		if !embeddedAudioFound && levels[0].AudioCodec != "" && levels[0].Attrs["AUDIO"] == "" {
			l.logger.Info("audio codec signaled in quality level, but no embedded audio track signaled, create one")
			mainTrack := &m3u8.MediaTrack{ID: -1, Type: "main", Name: "main"}
			audioTracks = append([]*m3u8.MediaTrack{mainTrack}, audioTracks...)
		}
	}

	l.hub.Trigger(event.ManifestLoadedData{
		Levels:         levels,
		AudioTracks:    audioTracks,
		SubtitleTracks: subtitles,
		URL:            url,
		Stats:          stats,
	})
}

func (l *PlaylistLoader) handleLevelPlaylist(lc loadContext, url, text string, stats event.LoadStats) {
	levelID := lc.level
	if lc.typ != ContextLevel && lc.typ != ContextManifest {
		levelID = lc.id
	}
	details, err := m3u8.ParseLevelPlaylist(text, url, levelID, lc.typ.levelType(), lc.id)
	// a missing target duration is reported after the manifest was announced
	if err != nil && !errors.Is(err, m3u8.ErrInvalidTargetDuration) {
		l.handleParsingError(url, err)
		return
	}
	details.LoadedAt = stats.Loaded

	// a media playlist loaded as manifest stands for a single level
	if lc.typ == ContextManifest {
		l.hub.Trigger(event.ManifestLoadedData{
			Levels: []*m3u8.Level{{URL: url, Details: details}},
			URL:    url,
			Stats:  stats,
		})
	}

	if details.NeedSidxRanges && details.InitSegment != nil {
		if !l.loadSegmentIndex(lc, details) {
			return
		}
	}
	l.handlePlaylistLoaded(lc, url, details, stats)
}

// loadSegmentIndex fetches the head of the init segment and applies its sidx
// box. The fetch is bounded by the fragment timeout. A missing sidx leaves
// the details unchanged. It reports false when a network error was triggered.
func (l *PlaylistLoader) loadSegmentIndex(lc loadContext, details *m3u8.LevelDetails) bool {
	sidxURL := details.InitSegment.URL()
	resp, err := l.fetch(lc, Request{URL: sidxURL, RangeStart: 0, RangeEnd: m3u8.SidxRequestSize}, l.cfg.FragLoadingTimeout)
	if err != nil {
		l.handleNetworkError(loadContext{typ: lc.typ, url: sidxURL, level: lc.level, id: lc.id}, err)
		return false
	}
	index, err := m3u8.ParseSegmentIndex(resp.Data)
	if err != nil {
		l.logger.Warn("segment index unavailable", slog.String("url", sidxURL), slog.String("error", err.Error()))
		return true
	}
	details.ApplySegmentIndex(index)
	return true
}

func (l *PlaylistLoader) handlePlaylistLoaded(lc loadContext, url string, details *m3u8.LevelDetails, stats event.LoadStats) {
	if !(details.TargetDuration > 0) {
		l.handleParsingError(url, m3u8.ErrInvalidTargetDuration)
		return
	}
	switch lc.typ {
	case ContextManifest, ContextLevel:
		l.hub.Trigger(event.LevelLoadedData{Details: details, Level: lc.level, ID: lc.id, Stats: stats})
	case ContextAudioTrack:
		l.hub.Trigger(event.AudioTrackLoadedData{Details: details, ID: lc.id, Stats: stats})
	case ContextSubtitleTrack:
		l.hub.Trigger(event.SubtitleTrackLoadedData{Details: details, ID: lc.id, Stats: stats})
	}
}

func (l *PlaylistLoader) handleParsingError(url string, err error) {
	l.hub.Trigger(&event.ErrorData{
		Type:    event.NetworkError,
		Details: event.ManifestParsingError,
		Fatal:   true,
		URL:     url,
		Reason:  err.Error(),
		Err:     err,
	})
}

func (l *PlaylistLoader) handleNetworkError(lc loadContext, err error) {
	if errors.Is(err, context.Canceled) && l.ctx.Err() != nil {
		l.logger.Debug("load cancelled", slog.String("url", lc.url))
		return
	}
	timeout := IsTimeout(err)
	l.logger.Info(fmt.Sprintf("a network error occurred while loading a %s playlist", lc.typ),
		slog.Bool("timeout", timeout),
		slog.String("error", err.Error()),
	)

	e := &event.ErrorData{Type: event.NetworkError, URL: lc.url, Err: err}
	switch lc.typ {
	case ContextManifest:
		e.Details = pick(timeout, event.ManifestLoadTimeout, event.ManifestLoadError)
		e.Fatal = true
	case ContextLevel:
		e.Details = pick(timeout, event.LevelLoadTimeout, event.LevelLoadError)
	case ContextAudioTrack:
		e.Details = pick(timeout, event.AudioTrackLoadTimeout, event.AudioTrackLoadError)
	default:
		e.Details = event.SubtitleTrackLoadError
	}
	l.hub.Trigger(e)
}

func pick(timeout bool, onTimeout, onError event.ErrorDetail) event.ErrorDetail {
	if timeout {
		return onTimeout
	}
	return onError
}
