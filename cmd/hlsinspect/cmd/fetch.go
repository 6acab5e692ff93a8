package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mogiioin/hlsengine/event"
	"github.com/mogiioin/hlsengine/loader"
	"github.com/mogiioin/hlsengine/m3u8"
)

// fileFetcher reads playlists and init segments from the local filesystem.
type fileFetcher struct{}

func (fileFetcher) Fetch(ctx context.Context, req loader.Request) (*loader.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	requested := time.Now()
	data, err := os.ReadFile(strings.TrimPrefix(req.URL, "file://"))
	if err != nil {
		return nil, err
	}
	if req.HasRange() {
		end := min(req.RangeEnd, int64(len(data)))
		start := min(req.RangeStart, end)
		data = data[start:end]
	}
	loaded := time.Now()
	return &loader.Response{
		URL:  req.URL,
		Data: data,
		Stats: event.LoadStats{
			Requested: requested,
			FirstByte: loaded,
			Loaded:    loaded,
			Bytes:     int64(len(data)),
		},
	}, nil
}

func isRemote(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

func fetcherFor(target string) loader.Fetcher {
	if isRemote(target) {
		return loader.NewHTTPFetcher(appConfig.Loader, logger)
	}
	return fileFetcher{}
}

// loadResult collects what the playlist loader announced.
type loadResult struct {
	manifest *event.ManifestLoadedData
	level    *event.LevelLoadedData
}

// loadPlaylist loads target through a playlist loader on hub. When target is
// a master playlist and level is not negative, that level is loaded too.
func loadPlaylist(hub *event.Hub, target string, level int) (*loadResult, error) {
	res := &loadResult{}
	var loadErr *event.ErrorData
	offs := []func(){
		hub.On(event.ManifestLoaded, event.Handle(func(d event.ManifestLoadedData) error {
			res.manifest = &d
			return nil
		})),
		hub.On(event.LevelLoaded, event.Handle(func(d event.LevelLoadedData) error {
			res.level = &d
			return nil
		})),
		hub.On(event.Error, event.Handle(func(e *event.ErrorData) error {
			if loadErr == nil {
				loadErr = e
			}
			return nil
		})),
	}
	defer func() {
		for _, off := range offs {
			off()
		}
	}()

	l := loader.NewPlaylistLoader(hub, fetcherFor(target), appConfig.Loader)
	defer l.Destroy()

	hub.Trigger(event.ManifestLoadingData{URL: target})
	if loadErr != nil {
		return nil, loadErr
	}
	if res.manifest == nil {
		return nil, fmt.Errorf("no manifest loaded from %s", target)
	}
	if res.level != nil || level < 0 {
		return res, nil
	}

	if level >= len(res.manifest.Levels) {
		return nil, fmt.Errorf("level %d out of range, manifest has %d levels", level, len(res.manifest.Levels))
	}
	hub.Trigger(event.LevelLoadingData{URL: res.manifest.Levels[level].URL, Level: level})
	if loadErr != nil {
		return nil, loadErr
	}
	if res.level != nil {
		res.manifest.Levels[level].Details = res.level.Details
	}
	return res, nil
}

// details returns the loaded media playlist, if any.
func (r *loadResult) details() *m3u8.LevelDetails {
	if r.level == nil {
		return nil
	}
	return r.level.Details
}
