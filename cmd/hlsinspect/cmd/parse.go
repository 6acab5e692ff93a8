package cmd

import (
	"fmt"

	"github.com/mogiioin/hlsengine/event"
	"github.com/mogiioin/hlsengine/m3u8"
	"github.com/spf13/cobra"
)

var (
	parseLevel   int
	parseRewrite bool
)

type levelSummary struct {
	URL        string `yaml:"url" json:"url"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Bitrate    int64  `yaml:"bitrate" json:"bitrate"`
	Resolution string `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	VideoCodec string `yaml:"video_codec,omitempty" json:"video_codec,omitempty"`
	AudioCodec string `yaml:"audio_codec,omitempty" json:"audio_codec,omitempty"`
}

type trackSummary struct {
	ID      int    `yaml:"id" json:"id"`
	Type    string `yaml:"type" json:"type"`
	Name    string `yaml:"name" json:"name"`
	GroupID string `yaml:"group_id,omitempty" json:"group_id,omitempty"`
	Lang    string `yaml:"lang,omitempty" json:"lang,omitempty"`
	Default bool   `yaml:"default" json:"default"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
}

type fragmentSummary struct {
	SN        int64   `yaml:"sn" json:"sn"`
	CC        int     `yaml:"cc" json:"cc"`
	Start     float64 `yaml:"start" json:"start"`
	Duration  float64 `yaml:"duration" json:"duration"`
	URL       string  `yaml:"url" json:"url"`
	ByteRange string  `yaml:"byte_range,omitempty" json:"byte_range,omitempty"`
	Encrypted bool    `yaml:"encrypted,omitempty" json:"encrypted,omitempty"`
}

type mediaSummary struct {
	Live             bool              `yaml:"live" json:"live"`
	Version          int               `yaml:"version" json:"version"`
	MinVersion       uint8             `yaml:"min_version" json:"min_version"`
	MinVersionReason string            `yaml:"min_version_reason,omitempty" json:"min_version_reason,omitempty"`
	TargetDuration   float64           `yaml:"target_duration" json:"target_duration"`
	TotalDuration    float64           `yaml:"total_duration" json:"total_duration"`
	StartSN          int64             `yaml:"start_sn" json:"start_sn"`
	EndSN            int64             `yaml:"end_sn" json:"end_sn"`
	InitSegment      string            `yaml:"init_segment,omitempty" json:"init_segment,omitempty"`
	Fragments        []fragmentSummary `yaml:"fragments" json:"fragments"`
}

type playlistSummary struct {
	URL            string         `yaml:"url" json:"url"`
	Levels         []levelSummary `yaml:"levels" json:"levels"`
	AudioTracks    []trackSummary `yaml:"audio_tracks,omitempty" json:"audio_tracks,omitempty"`
	SubtitleTracks []trackSummary `yaml:"subtitle_tracks,omitempty" json:"subtitle_tracks,omitempty"`
	Media          *mediaSummary  `yaml:"media,omitempty" json:"media,omitempty"`
}

// parseCmd represents the parse command.
var parseCmd = &cobra.Command{
	Use:   "parse <file|url>",
	Short: "Parse a master or media playlist",
	Long: `Load a playlist through the playlist loader and print the parsed levels,
alternate tracks and fragments. For a master playlist, --level also loads
that variant's media playlist.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().IntVar(&parseLevel, "level", -1, "also load the media playlist of this level")
	parseCmd.Flags().BoolVar(&parseRewrite, "rewrite", false, "print the media playlist re-encoded instead of a summary")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	hub := event.NewHub(logger)
	res, err := loadPlaylist(hub, args[0], parseLevel)
	if err != nil {
		return err
	}

	details := res.details()
	if parseRewrite {
		if details == nil {
			return fmt.Errorf("no media playlist to rewrite, use --level with a master playlist")
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), details.String())
		return err
	}

	summary := summarize(res)
	return render(cmd.OutOrStdout(), summary, func(p *printer) {
		printSummary(p, summary)
	})
}

func summarize(res *loadResult) playlistSummary {
	s := playlistSummary{URL: res.manifest.URL}
	for _, l := range res.manifest.Levels {
		ls := levelSummary{
			URL:        l.URL,
			Name:       l.Name,
			Bitrate:    l.Bitrate,
			VideoCodec: l.VideoCodec,
			AudioCodec: l.AudioCodec,
		}
		if l.Width > 0 && l.Height > 0 {
			ls.Resolution = fmt.Sprintf("%dx%d", l.Width, l.Height)
		}
		s.Levels = append(s.Levels, ls)
	}
	s.AudioTracks = summarizeTracks(res.manifest.AudioTracks)
	s.SubtitleTracks = summarizeTracks(res.manifest.SubtitleTracks)
	if d := res.details(); d != nil {
		s.Media = summarizeMedia(d)
	}
	return s
}

func summarizeTracks(tracks []*m3u8.MediaTrack) []trackSummary {
	var out []trackSummary
	for _, t := range tracks {
		out = append(out, trackSummary{
			ID:      t.ID,
			Type:    t.Type,
			Name:    t.Name,
			GroupID: t.GroupID,
			Lang:    t.Lang,
			Default: t.Default,
			URL:     t.URL,
		})
	}
	return out
}

func summarizeMedia(d *m3u8.LevelDetails) *mediaSummary {
	minVersion, reason := d.CalcMinVersion()
	m := &mediaSummary{
		Live:             d.Live,
		Version:          d.Version,
		MinVersion:       minVersion,
		MinVersionReason: reason,
		TargetDuration:   d.TargetDuration,
		TotalDuration:    d.TotalDuration,
		StartSN:          d.StartSN,
		EndSN:            d.EndSN,
	}
	if d.InitSegment != nil {
		m.InitSegment = d.InitSegment.URL()
		if d.InitSegment.ByteRange != nil {
			m.InitSegment += " range=" + d.InitSegment.ByteRange.String()
		}
	}
	for _, f := range d.Fragments {
		fs := fragmentSummary{
			SN:        f.SN,
			CC:        f.CC,
			Start:     f.Start,
			Duration:  f.Duration,
			URL:       f.URL(),
			Encrypted: f.LevelKey != nil && f.LevelKey.Encrypted(),
		}
		if f.ByteRange != nil {
			fs.ByteRange = f.ByteRange.String()
		}
		m.Fragments = append(m.Fragments, fs)
	}
	return m
}

func printSummary(p *printer, s playlistSummary) {
	p.printf("playlist: %s\n", s.URL)
	if len(s.Levels) > 0 {
		p.printf("levels: %d\n", len(s.Levels))
		for i, l := range s.Levels {
			p.printf("  [%d] %d bps %s video=%s audio=%s %s\n", i, l.Bitrate, l.Resolution, l.VideoCodec, l.AudioCodec, l.URL)
		}
	}
	for _, group := range []struct {
		title  string
		tracks []trackSummary
	}{{"audio tracks", s.AudioTracks}, {"subtitle tracks", s.SubtitleTracks}} {
		if len(group.tracks) == 0 {
			continue
		}
		p.printf("%s: %d\n", group.title, len(group.tracks))
		for _, t := range group.tracks {
			p.printf("  [%d] %s %q lang=%s default=%t %s\n", t.ID, t.GroupID, t.Name, t.Lang, t.Default, t.URL)
		}
	}
	if m := s.Media; m != nil {
		p.printf("media: live=%t version=%d (min %d) target=%gs total=%gs sn=%d..%d\n",
			m.Live, m.Version, m.MinVersion, m.TargetDuration, m.TotalDuration, m.StartSN, m.EndSN)
		if m.MinVersionReason != "" {
			p.printf("  min version reason: %s\n", m.MinVersionReason)
		}
		if m.InitSegment != "" {
			p.printf("  init: %s\n", m.InitSegment)
		}
		for _, f := range m.Fragments {
			p.printf("  #%d cc=%d %8.3fs +%.3fs %s", f.SN, f.CC, f.Start, f.Duration, f.URL)
			if f.ByteRange != "" {
				p.printf(" range=%s", f.ByteRange)
			}
			if f.Encrypted {
				p.printf(" (encrypted)")
			}
			p.printf("\n")
		}
	}
}
