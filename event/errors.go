package event

import (
	"fmt"
	"strings"
)

// ErrorType groups error details.
type ErrorType string

const (
	NetworkError ErrorType = "networkError"
	MediaError   ErrorType = "mediaError"
	MuxError     ErrorType = "muxError"
	OtherError   ErrorType = "otherError"
)

// ErrorDetail names a specific failure.
type ErrorDetail string

const (
	ManifestLoadError      ErrorDetail = "manifestLoadError"
	ManifestLoadTimeout    ErrorDetail = "manifestLoadTimeOut"
	ManifestParsingError   ErrorDetail = "manifestParsingError"
	LevelLoadError         ErrorDetail = "levelLoadError"
	LevelLoadTimeout       ErrorDetail = "levelLoadTimeOut"
	AudioTrackLoadError    ErrorDetail = "audioTrackLoadError"
	AudioTrackLoadTimeout  ErrorDetail = "audioTrackLoadTimeOut"
	SubtitleTrackLoadError ErrorDetail = "subtitleTrackLoadError"
	BufferAddCodecError    ErrorDetail = "bufferAddCodecError"
	BufferAppendError      ErrorDetail = "bufferAppendError"
	BufferAppendingError   ErrorDetail = "bufferAppendingError"
	BufferFullError        ErrorDetail = "bufferFullError"
	InternalException      ErrorDetail = "internalException"
)

// ErrorData is the payload of the Error event. It is also an error so that
// parse and load failures can be returned and wrapped directly.
type ErrorData struct {
	Type     ErrorType
	Details  ErrorDetail
	Fatal    bool
	Reason   string
	URL      string
	MimeType string
	Parent   string
	Event    Name // event being handled when the error happened
	Err      error
}

func (e *ErrorData) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Type, e.Details)
	if e.Fatal {
		sb.WriteString(" (fatal)")
	}
	if e.Reason != "" {
		sb.WriteString(": " + e.Reason)
	}
	if e.URL != "" {
		sb.WriteString(" url=" + e.URL)
	}
	if e.MimeType != "" {
		sb.WriteString(" mime=" + e.MimeType)
	}
	if e.Event != "" {
		sb.WriteString(" event=" + string(e.Event))
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *ErrorData) Unwrap() error { return e.Err }
