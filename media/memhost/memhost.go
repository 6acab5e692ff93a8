// Package memhost is an in-memory implementation of the media host
// capabilities. Appends and removes complete when the owner runs the pending
// tasks, which makes the asynchronous host behaviour deterministic in tests
// and in the hlsinspect simulator.
//
// Segments appended to a source buffer carry their time range in a small
// header written by EncodeSegment. A segment with an empty range is treated
// as an initialization segment.
//
// A Host and everything it creates must be used from a single goroutine.
package memhost

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/mogiioin/hlsengine/media"
)

const (
	segmentMagic      = "MHSG"
	segmentHeaderSize = len(segmentMagic) + 16
)

// ErrDecode is reported through the error callback when an appended payload
// is not a memhost segment.
var ErrDecode = errors.New("memhost: cannot decode segment")

// EncodeSegment returns a payload that buffers [start, end) once appended.
func EncodeSegment(start, end float64, payload []byte) []byte {
	out := make([]byte, segmentHeaderSize, segmentHeaderSize+len(payload))
	copy(out, segmentMagic)
	binary.BigEndian.PutUint64(out[4:], math.Float64bits(start))
	binary.BigEndian.PutUint64(out[12:], math.Float64bits(end))
	return append(out, payload...)
}

// EncodeInitSegment returns a payload that buffers nothing.
func EncodeInitSegment(payload []byte) []byte {
	return EncodeSegment(0, 0, payload)
}

// DecodeSegment reads the range written by EncodeSegment.
func DecodeSegment(data []byte) (start, end float64, payload []byte, err error) {
	if len(data) < segmentHeaderSize || string(data[:4]) != segmentMagic {
		return 0, 0, nil, ErrDecode
	}
	start = math.Float64frombits(binary.BigEndian.Uint64(data[4:]))
	end = math.Float64frombits(binary.BigEndian.Uint64(data[12:]))
	return start, end, data[segmentHeaderSize:], nil
}

// Host creates media sources and elements and runs their pending tasks.
type Host struct {
	// MaxBufferBytes caps the bytes each source buffer holds. Zero means no limit.
	MaxBufferBytes int
	// SupportedTypes lists accepted container prefixes such as "video/mp4".
	SupportedTypes []string

	tasks   []func()
	sources map[string]*MediaSource
}

// New returns a host accepting MP4 and MPEG-TS containers.
func New() *Host {
	return &Host{
		SupportedTypes: []string{"video/mp4", "audio/mp4", "video/mp2t", "audio/mpeg"},
		sources:        make(map[string]*MediaSource),
	}
}

var _ media.Provider = (*Host)(nil)

// NewMediaSource returns a closed media source.
func (h *Host) NewMediaSource() media.Source {
	return &MediaSource{
		host:       h,
		readyState: media.ReadyStateClosed,
		duration:   math.NaN(),
	}
}

// CreateObjectURL returns a blob URL referencing the media source.
func (h *Host) CreateObjectURL(ms media.Source) string {
	src, ok := ms.(*MediaSource)
	if !ok {
		return ""
	}
	url := "blob:memhost/" + uuid.NewString()
	h.sources[url] = src
	return url
}

// RevokeObjectURL forgets a blob URL. Elements already attached stay attached.
func (h *Host) RevokeObjectURL(url string) {
	delete(h.sources, url)
}

// IsTypeSupported matches the container part of the MIME type.
func (h *Host) IsTypeSupported(mimeType string) bool {
	container, _, _ := strings.Cut(mimeType, ";")
	container = strings.TrimSpace(container)
	for _, t := range h.SupportedTypes {
		if strings.EqualFold(container, t) {
			return true
		}
	}
	return false
}

// NewElement returns a detached media element.
func (h *Host) NewElement() *Element {
	return &Element{host: h}
}

// Pending returns the number of tasks waiting to run.
func (h *Host) Pending() int {
	return len(h.tasks)
}

// Step runs the oldest pending task. It reports false when none was pending.
func (h *Host) Step() bool {
	if len(h.tasks) == 0 {
		return false
	}
	task := h.tasks[0]
	h.tasks = h.tasks[1:]
	task()
	return true
}

// RunPending runs tasks, including the ones they schedule, until none is
// left, and returns how many ran. It stops after limit tasks when limit > 0.
func (h *Host) RunPending(limit int) int {
	n := 0
	for (limit <= 0 || n < limit) && h.Step() {
		n++
	}
	return n
}

func (h *Host) schedule(task func()) {
	h.tasks = append(h.tasks, task)
}

// Element is an in-memory media element.
type Element struct {
	host        *Host
	src         string
	source      *MediaSource
	currentTime float64
	readyState  int
	err         error
}

var _ media.Element = (*Element)(nil)

func (e *Element) Src() string { return e.src }

// SetSrc attaches the media source referenced by a blob URL. The source
// opens on the next task.
func (e *Element) SetSrc(src string) {
	e.src = src
	ms, ok := e.host.sources[src]
	if !ok {
		return
	}
	if e.source != nil && e.source != ms {
		e.source.close()
	}
	e.source = ms
	ms.element = e
	e.host.schedule(ms.open)
}

// RemoveSrc clears the source attribute. The media source stays attached
// until Load.
func (e *Element) RemoveSrc() { e.src = "" }

// Load detaches the media source when the source attribute no longer
// references it.
func (e *Element) Load() {
	if e.source == nil {
		return
	}
	if ms, ok := e.host.sources[e.src]; ok && ms == e.source {
		return
	}
	e.source.close()
	e.source = nil
	e.readyState = media.HaveNothing
}

// MediaSource returns the attached media source, or nil.
func (e *Element) MediaSource() *MediaSource { return e.source }

func (e *Element) CurrentTime() float64 { return e.currentTime }

// SetCurrentTime moves the playback position.
func (e *Element) SetCurrentTime(t float64) { e.currentTime = t }

// Duration returns the attached source duration, or NaN.
func (e *Element) Duration() float64 {
	if e.source == nil {
		return math.NaN()
	}
	return e.source.duration
}

func (e *Element) ReadyState() int { return e.readyState }

// SetReadyState overrides the ready state.
func (e *Element) SetReadyState(state int) { e.readyState = state }

func (e *Element) Err() error { return e.err }

// SetErr puts the element in an error state.
func (e *Element) SetErr(err error) { e.err = err }

// Buffered returns the ranges buffered by every source buffer.
func (e *Element) Buffered() (media.TimeRanges, error) {
	if e.source == nil || len(e.source.buffers) == 0 {
		return media.Ranges(nil), nil
	}
	out := e.source.buffers[0].ranges()
	for _, sb := range e.source.buffers[1:] {
		out = out.Intersect(sb.ranges())
	}
	return out, nil
}

func (e *Element) segmentAppended() {
	if e.readyState < media.HaveMetadata {
		e.readyState = media.HaveMetadata
	}
}

// MediaSource is an in-memory media source.
type MediaSource struct {
	host       *Host
	element    *Element
	readyState media.ReadyState
	duration   float64
	buffers    []*SourceBuffer

	openListeners  listeners[func()]
	endedListeners listeners[func()]
	closeListeners listeners[func()]
}

var _ media.Source = (*MediaSource)(nil)

func (ms *MediaSource) ReadyState() media.ReadyState { return ms.readyState }

func (ms *MediaSource) Duration() float64 { return ms.duration }

// SetDuration fails while closed, while a buffer is updating, or for a
// negative or NaN value.
func (ms *MediaSource) SetDuration(d float64) error {
	if ms.readyState != media.ReadyStateOpen || ms.anyUpdating() {
		return media.ErrInvalidState
	}
	if math.IsNaN(d) || d < 0 {
		return fmt.Errorf("memhost: invalid duration %v", d)
	}
	ms.duration = d
	return nil
}

// AddSourceBuffer creates a source buffer for a supported MIME type.
func (ms *MediaSource) AddSourceBuffer(mimeType string) (media.SourceBuffer, error) {
	if ms.readyState != media.ReadyStateOpen {
		return nil, media.ErrInvalidState
	}
	if !ms.host.IsTypeSupported(mimeType) {
		return nil, fmt.Errorf("%w: %s", media.ErrNotSupported, mimeType)
	}
	sb := &SourceBuffer{host: ms.host, parent: ms, mimeType: mimeType}
	ms.buffers = append(ms.buffers, sb)
	return sb, nil
}

// RemoveSourceBuffer detaches a source buffer, aborting its pending operation.
func (ms *MediaSource) RemoveSourceBuffer(sb media.SourceBuffer) error {
	for i, b := range ms.buffers {
		if media.SourceBuffer(b) == sb {
			b.generation++
			b.updating = false
			b.parent = nil
			ms.buffers = append(ms.buffers[:i], ms.buffers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memhost: source buffer not found")
}

// EndOfStream marks the stream ended and sets the duration to the highest
// buffered end.
func (ms *MediaSource) EndOfStream() error {
	if ms.readyState != media.ReadyStateOpen || ms.anyUpdating() {
		return media.ErrInvalidState
	}
	ms.readyState = media.ReadyStateEnded
	highest := 0.0
	for _, sb := range ms.buffers {
		if r := sb.ranges(); len(r) > 0 {
			highest = max(highest, r[len(r)-1].End)
		}
	}
	if highest > 0 {
		ms.duration = highest
	}
	ms.host.schedule(func() { ms.endedListeners.fire(func(fn func()) { fn() }) })
	return nil
}

// SourceBuffers returns the buffers in creation order.
func (ms *MediaSource) SourceBuffers() []*SourceBuffer {
	return append([]*SourceBuffer(nil), ms.buffers...)
}

func (ms *MediaSource) OnSourceOpen(fn func()) func() { return ms.openListeners.add(fn) }

func (ms *MediaSource) OnSourceEnded(fn func()) func() { return ms.endedListeners.add(fn) }

func (ms *MediaSource) OnSourceClose(fn func()) func() { return ms.closeListeners.add(fn) }

func (ms *MediaSource) open() {
	if ms.readyState == media.ReadyStateOpen {
		return
	}
	ms.readyState = media.ReadyStateOpen
	ms.openListeners.fire(func(fn func()) { fn() })
}

func (ms *MediaSource) close() {
	ms.readyState = media.ReadyStateClosed
	ms.duration = math.NaN()
	for _, sb := range ms.buffers {
		sb.generation++
		sb.updating = false
		sb.parent = nil
	}
	ms.buffers = nil
	ms.element = nil
	ms.host.schedule(func() { ms.closeListeners.fire(func(fn func()) { fn() }) })
}

func (ms *MediaSource) anyUpdating() bool {
	for _, sb := range ms.buffers {
		if sb.updating {
			return true
		}
	}
	return false
}

type segment struct {
	start, end float64
	size       int
}

// SourceBuffer is an in-memory source buffer.
type SourceBuffer struct {
	host            *Host
	parent          *MediaSource
	mimeType        string
	updating        bool
	generation      int
	segments        []segment
	timestampOffset float64
	failNext        error
	keepOnRemove    bool
	appends         int
	removes         []media.TimeRange

	updateEndListeners listeners[func()]
	errorListeners     listeners[func(error)]
}

var _ media.SourceBuffer = (*SourceBuffer)(nil)

// MimeType returns the type the buffer was created with.
func (sb *SourceBuffer) MimeType() string { return sb.mimeType }

func (sb *SourceBuffer) Updating() bool { return sb.updating }

// Buffered returns the merged ranges of the appended segments.
func (sb *SourceBuffer) Buffered() (media.TimeRanges, error) {
	if sb.parent == nil {
		return nil, media.ErrInvalidState
	}
	return sb.ranges(), nil
}

// Size returns the bytes held.
func (sb *SourceBuffer) Size() int {
	n := 0
	for _, s := range sb.segments {
		n += s.size
	}
	return n
}

// Appends returns the number of completed appends.
func (sb *SourceBuffer) Appends() int { return sb.appends }

// Removes returns the ranges passed to Remove, in call order.
func (sb *SourceBuffer) Removes() []media.TimeRange { return sb.removes }

// FailNextAppend makes the next AppendBuffer call return err.
func (sb *SourceBuffer) FailNextAppend(err error) { sb.failNext = err }

// KeepOnRemove makes removes complete without dropping any data.
func (sb *SourceBuffer) KeepOnRemove(keep bool) { sb.keepOnRemove = keep }

// AppendBuffer starts an append. It fails with media.ErrQuotaExceeded when
// the host limit would be exceeded.
func (sb *SourceBuffer) AppendBuffer(data []byte) error {
	if sb.parent == nil || sb.updating {
		return media.ErrInvalidState
	}
	if err := sb.failNext; err != nil {
		sb.failNext = nil
		return err
	}
	if limit := sb.host.MaxBufferBytes; limit > 0 && sb.Size()+len(data) > limit {
		return media.ErrQuotaExceeded
	}
	if sb.parent.readyState == media.ReadyStateEnded {
		sb.parent.open()
	}
	sb.updating = true
	gen := sb.generation
	sb.host.schedule(func() {
		if gen != sb.generation {
			return
		}
		sb.updating = false
		start, end, _, err := DecodeSegment(data)
		if err != nil {
			sb.errorListeners.fire(func(fn func(error)) { fn(err) })
			sb.fireUpdateEnd()
			return
		}
		if end > start {
			sb.segments = append(sb.segments, segment{
				start: start + sb.timestampOffset,
				end:   end + sb.timestampOffset,
				size:  len(data),
			})
		}
		sb.appends++
		if sb.parent != nil && sb.parent.element != nil {
			sb.parent.element.segmentAppended()
		}
		sb.fireUpdateEnd()
	})
	return nil
}

// Remove starts removing [start, end).
func (sb *SourceBuffer) Remove(start, end float64) error {
	if sb.parent == nil || sb.updating {
		return media.ErrInvalidState
	}
	if math.IsNaN(start) || start < 0 || !(end > start) {
		return fmt.Errorf("memhost: invalid remove range [%v, %v)", start, end)
	}
	sb.removes = append(sb.removes, media.TimeRange{Start: start, End: end})
	sb.updating = true
	gen := sb.generation
	sb.host.schedule(func() {
		if gen != sb.generation {
			return
		}
		sb.updating = false
		if !sb.keepOnRemove {
			sb.segments = removeSegments(sb.segments, start, end)
		}
		sb.fireUpdateEnd()
	})
	return nil
}

// Abort cancels the pending append. An update end callback follows when an
// operation was cancelled.
func (sb *SourceBuffer) Abort() error {
	if sb.parent == nil {
		return media.ErrInvalidState
	}
	if !sb.updating {
		return nil
	}
	sb.generation++
	sb.updating = false
	sb.host.schedule(sb.fireUpdateEnd)
	return nil
}

func (sb *SourceBuffer) TimestampOffset() float64 { return sb.timestampOffset }

// SetTimestampOffset fails while the buffer is updating.
func (sb *SourceBuffer) SetTimestampOffset(offset float64) error {
	if sb.parent == nil || sb.updating {
		return media.ErrInvalidState
	}
	sb.timestampOffset = offset
	return nil
}

func (sb *SourceBuffer) OnUpdateEnd(fn func()) func() { return sb.updateEndListeners.add(fn) }

func (sb *SourceBuffer) OnError(fn func(error)) func() { return sb.errorListeners.add(fn) }

func (sb *SourceBuffer) fireUpdateEnd() {
	sb.updateEndListeners.fire(func(fn func()) { fn() })
}

func (sb *SourceBuffer) ranges() media.Ranges {
	r := make(media.Ranges, 0, len(sb.segments))
	for _, s := range sb.segments {
		r = append(r, media.TimeRange{Start: s.start, End: s.end})
	}
	return r.Normalize()
}

// removeSegments cuts [start, end) out of the segments, keeping byte sizes
// proportional to what remains.
func removeSegments(segments []segment, start, end float64) []segment {
	var out []segment
	for _, s := range segments {
		if s.end <= start || s.start >= end {
			out = append(out, s)
			continue
		}
		length := s.end - s.start
		for _, part := range (media.Ranges{{Start: s.start, End: s.end}}).Subtract(start, end) {
			out = append(out, segment{
				start: part.Start,
				end:   part.End,
				size:  int(float64(s.size) * (part.End - part.Start) / length),
			})
		}
	}
	return out
}

type listener[F any] struct {
	id int
	fn F
}

// listeners keeps callbacks in registration order.
type listeners[F any] struct {
	next int
	list []listener[F]
}

func (l *listeners[F]) add(fn F) func() {
	l.next++
	id := l.next
	l.list = append(l.list, listener[F]{id: id, fn: fn})
	return func() {
		for i, e := range l.list {
			if e.id == id {
				l.list = append(l.list[:i:i], l.list[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners[F]) fire(call func(F)) {
	for _, e := range append([]listener[F](nil), l.list...) {
		call(e.fn)
	}
}
