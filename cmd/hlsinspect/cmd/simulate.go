package cmd

import (
	"fmt"
	"math"
	"sort"

	"github.com/mogiioin/hlsengine/buffer"
	"github.com/mogiioin/hlsengine/event"
	"github.com/mogiioin/hlsengine/m3u8"
	"github.com/mogiioin/hlsengine/media"
	"github.com/mogiioin/hlsengine/media/memhost"
	"github.com/spf13/cobra"
)

var (
	simLevel    int
	simLive     bool
	simPosition float64
	simCodec    string
	simMaxBytes int
)

type rangeSummary struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

type bufferInfoSummary struct {
	Len       float64  `yaml:"len" json:"len"`
	Start     float64  `yaml:"start" json:"start"`
	End       float64  `yaml:"end" json:"end"`
	NextStart *float64 `yaml:"next_start,omitempty" json:"next_start,omitempty"`
}

type simulationReport struct {
	URL        string            `yaml:"url" json:"url"`
	Live       bool              `yaml:"live" json:"live"`
	Fragments  int               `yaml:"fragments" json:"fragments"`
	MimeType   string            `yaml:"mime_type" json:"mime_type"`
	Buffered   []rangeSummary    `yaml:"buffered" json:"buffered"`
	Duration   string            `yaml:"duration" json:"duration"`
	ReadyState media.ReadyState  `yaml:"ready_state" json:"ready_state"`
	Position   float64           `yaml:"position" json:"position"`
	BufferInfo bufferInfoSummary `yaml:"buffer_info" json:"buffer_info"`
	Events     map[string]int    `yaml:"events" json:"events"`
	Errors     []string          `yaml:"errors,omitempty" json:"errors,omitempty"`
}

// simulateCmd represents the simulate command.
var simulateCmd = &cobra.Command{
	Use:   "simulate <file|url>",
	Short: "Replay a media playlist through the buffer controller",
	Long: `Load a media playlist, attach an in-memory media host, declare a video
track and append one synthetic segment per fragment through the buffer
controller. VoD playlists are ended with end of stream. Prints the buffered
ranges, the media source state and the buffered range around --position.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simLevel, "level", 0, "level to load when the playlist is a master playlist")
	simulateCmd.Flags().BoolVar(&simLive, "live", false, "treat the playlist as live")
	simulateCmd.Flags().Float64Var(&simPosition, "position", 0, "playback position in seconds")
	simulateCmd.Flags().StringVar(&simCodec, "codec", "avc1.42e01e", "video codec declared for the track")
	simulateCmd.Flags().IntVar(&simMaxBytes, "max-buffer-bytes", 0, "source buffer quota in bytes, 0 for none")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	hub := event.NewHub(logger)
	res, err := loadPlaylist(hub, args[0], simLevel)
	if err != nil {
		return err
	}
	details := res.details()
	if details == nil {
		return fmt.Errorf("no media playlist loaded from %s", args[0])
	}
	if simLive {
		details.Live = true
	}

	report, err := simulate(hub, res, details)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), report, func(p *printer) {
		printReport(p, report)
	})
}

func simulate(hub *event.Hub, res *loadResult, details *m3u8.LevelDetails) (*simulationReport, error) {
	report := &simulationReport{
		URL:       res.manifest.URL,
		Live:      details.Live,
		Fragments: len(details.Fragments),
		Position:  simPosition,
		Events:    map[string]int{},
	}
	for _, name := range event.Names {
		hub.On(name, func(p event.Payload) error {
			report.Events[string(p.EventName())]++
			if e, ok := p.(*event.ErrorData); ok {
				report.Errors = append(report.Errors, e.Error())
			}
			return nil
		})
	}

	host := memhost.New()
	host.MaxBufferBytes = simMaxBytes
	ctrl := buffer.NewController(hub, host, appConfig.Buffer)
	defer ctrl.Destroy()
	el := host.NewElement()
	el.SetCurrentTime(simPosition)

	hub.Trigger(event.ManifestParsedData{Levels: res.manifest.Levels})
	hub.Trigger(event.MediaAttachingData{Media: el})
	host.RunPending(0)
	if ctrl.State() != buffer.Open {
		return nil, fmt.Errorf("media source did not open")
	}

	container := "video/mp2t"
	if details.InitSegment != nil {
		container = "video/mp4"
	}
	report.MimeType = container + ";codecs=" + simCodec
	hub.Trigger(event.BufferCodecsData{Tracks: map[string]event.TrackCodec{
		event.TrackVideo: {Container: container, Codec: simCodec},
	}})
	hub.Trigger(event.LevelUpdatedData{Details: details})

	if details.InitSegment != nil {
		hub.Trigger(event.BufferAppendingData{
			Type:    event.TrackVideo,
			Data:    memhost.EncodeInitSegment(nil),
			Parent:  string(m3u8.LevelTypeMain),
			Content: event.ContentInitSegment,
		})
	}
	for _, frag := range details.Fragments {
		hub.Trigger(event.BufferAppendingData{
			Type:    event.TrackVideo,
			Data:    memhost.EncodeSegment(frag.Start, frag.End(), []byte(frag.URL())),
			Parent:  string(m3u8.LevelTypeMain),
			Content: event.ContentData,
		})
		// the host completes one operation at a time
		host.RunPending(0)
	}
	if !details.Live {
		hub.Trigger(event.BufferEOSData{})
		host.RunPending(0)
	}

	for _, r := range ctrl.Buffered(event.TrackVideo) {
		report.Buffered = append(report.Buffered, rangeSummary{Start: r.Start, End: r.End})
	}
	if ms := el.MediaSource(); ms != nil {
		report.Duration = formatSeconds(ms.Duration())
		report.ReadyState = ms.ReadyState()
	}
	info := buffer.BufferInfo(el, simPosition, appConfig.Buffer.MaxBufferHole)
	report.BufferInfo = bufferInfoSummary{Len: info.Len, Start: info.Start, End: info.End, NextStart: info.NextStart}
	return report, nil
}

func formatSeconds(s float64) string {
	switch {
	case math.IsNaN(s):
		return "unknown"
	case math.IsInf(s, 1):
		return "infinity"
	}
	return fmt.Sprintf("%.3f", s)
}

func printReport(p *printer, r *simulationReport) {
	p.printf("playlist: %s (%d fragments, live=%t)\n", r.URL, r.Fragments, r.Live)
	p.printf("source buffer: %s\n", r.MimeType)
	p.printf("media source: %s, duration %s\n", r.ReadyState, r.Duration)
	p.printf("buffered:")
	if len(r.Buffered) == 0 {
		p.printf(" none")
	}
	for _, b := range r.Buffered {
		p.printf(" [%.3f, %.3f)", b.Start, b.End)
	}
	p.printf("\n")
	p.printf("at %.3fs: %.3fs buffered in [%.3f, %.3f)", r.Position, r.BufferInfo.Len, r.BufferInfo.Start, r.BufferInfo.End)
	if r.BufferInfo.NextStart != nil {
		p.printf(", next range at %.3f", *r.BufferInfo.NextStart)
	}
	p.printf("\n")

	names := make([]string, 0, len(r.Events))
	for name := range r.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	p.printf("events:\n")
	for _, name := range names {
		p.printf("  %-22s %d\n", name, r.Events[name])
	}
	for _, e := range r.Errors {
		p.printf("error: %s\n", e)
	}
}
