// Package media defines the host capabilities the buffer controller drives:
// a media element, a media source bound to it and the source buffers the
// media source hands out.
//
// All methods are called from a single goroutine. Completion of asynchronous
// operations (AppendBuffer, Remove) is reported through the registered
// callbacks, never by blocking the caller.
package media

import (
	"errors"
)

// ErrQuotaExceeded is returned by SourceBuffer.AppendBuffer when the host
// cannot hold more data for the buffer.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ErrInvalidState is returned when an operation is not allowed in the current
// state, for example appending while the buffer is updating.
var ErrInvalidState = errors.New("invalid state")

// ErrNotSupported is returned by AddSourceBuffer for an unsupported MIME type.
var ErrNotSupported = errors.New("type not supported")

// Element ready states.
const (
	HaveNothing = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// ReadyState of a media source.
type ReadyState string

const (
	ReadyStateClosed ReadyState = "closed"
	ReadyStateOpen   ReadyState = "open"
	ReadyStateEnded  ReadyState = "ended"
)

// Bufferable reports the time ranges held by an element or a source buffer.
type Bufferable interface {
	Buffered() (TimeRanges, error)
}

// Element is the playback element media sources attach to.
type Element interface {
	Bufferable
	Src() string
	SetSrc(src string)
	RemoveSrc()
	Load()
	CurrentTime() float64
	Duration() float64
	ReadyState() int
	Err() error
}

// Source is a media source object. It opens once an element references it
// through an object URL.
type Source interface {
	ReadyState() ReadyState
	Duration() float64
	SetDuration(d float64) error
	AddSourceBuffer(mimeType string) (SourceBuffer, error)
	RemoveSourceBuffer(sb SourceBuffer) error
	EndOfStream() error
	OnSourceOpen(fn func()) (off func())
	OnSourceEnded(fn func()) (off func())
	OnSourceClose(fn func()) (off func())
}

// SourceBuffer accepts one append or remove at a time. Updating reports true
// from the call until the matching update end callback.
type SourceBuffer interface {
	Bufferable
	Updating() bool
	AppendBuffer(data []byte) error
	Remove(start, end float64) error
	Abort() error
	TimestampOffset() float64
	SetTimestampOffset(offset float64) error
	OnUpdateEnd(fn func()) (off func())
	OnError(fn func(err error)) (off func())
}

// Provider creates media sources and binds them to elements. It stands in
// for the global capability probing of a browser.
type Provider interface {
	NewMediaSource() Source
	CreateObjectURL(ms Source) string
	RevokeObjectURL(url string)
	IsTypeSupported(mimeType string) bool
}

// BaselineMimeType is the MIME type every usable host must support.
const BaselineMimeType = `video/mp4; codecs="avc1.42E01E,mp4a.40.2"`

// IsSupported reports whether the provider can play baseline H.264/AAC in MP4.
func IsSupported(p Provider) bool {
	return p != nil && p.IsTypeSupported(BaselineMimeType)
}
