package event

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/oklog/ulid/v2"
)

func newTestHub(buf *bytes.Buffer) *Hub {
	return NewHub(slog.New(slog.NewTextHandler(buf, nil)))
}

func TestEveryNameHasOnePayload(t *testing.T) {
	is := is.New(t)
	payloads := []Payload{
		MediaAttachingData{}, MediaAttachedData{}, MediaDetachingData{}, MediaDetachedData{},
		BufferResetData{}, BufferCodecsData{}, BufferCreatedData{}, BufferAppendingData{}, BufferAppendedData{},
		BufferEOSData{}, BufferFlushingData{}, BufferFlushedData{},
		ManifestLoadingData{}, ManifestLoadedData{}, ManifestParsedData{},
		LevelLoadingData{}, LevelLoadedData{}, LevelUpdatedData{}, LevelPTSUpdatedData{},
		AudioTrackLoadingData{}, AudioTrackLoadedData{}, SubtitleTrackLoadingData{}, SubtitleTrackLoadedData{},
		&ErrorData{},
	}
	is.Equal(len(payloads), len(Names))
	seen := map[Name]bool{}
	for i, p := range payloads {
		is.Equal(p.EventName(), Names[i])
		is.True(!seen[p.EventName()]) // duplicate payload name
		seen[p.EventName()] = true
	}
}

func TestRegisterAndTrigger(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	hub := newTestHub(&buf)

	var order []string
	reg := hub.Register("first", map[Name]Handler{
		BufferEOS: Handle(func(d BufferEOSData) error {
			order = append(order, "first:"+d.Type)
			return nil
		}),
		BufferFlushed: Handle(func(BufferFlushedData) error {
			order = append(order, "flushed")
			return nil
		}),
	})
	hub.On(BufferEOS, func(p Payload) error {
		order = append(order, "second")
		return nil
	})

	hub.Trigger(BufferEOSData{Type: TrackAudio})
	hub.Trigger(BufferFlushedData{})
	is.Equal(order, []string{"first:audio", "second", "flushed"})

	reg.Destroy()
	reg.Destroy() // idempotent
	order = nil
	hub.Trigger(BufferEOSData{})
	hub.Trigger(BufferFlushedData{})
	is.Equal(order, []string{"second"})
}

func TestOff(t *testing.T) {
	is := is.New(t)
	hub := newTestHub(&bytes.Buffer{})
	calls := 0
	off := hub.On(MediaDetached, func(Payload) error {
		calls++
		return nil
	})
	hub.Trigger(MediaDetachedData{})
	off()
	hub.Trigger(MediaDetachedData{})
	is.Equal(calls, 1)
}

func TestDispatchBoundary(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	hub := newTestHub(&buf)

	var reported []*ErrorData
	hub.On(Error, Handle(func(e *ErrorData) error {
		reported = append(reported, e)
		return nil
	}))
	boom := errors.New("boom")
	hub.Register("failing", map[Name]Handler{
		BufferReset: func(Payload) error {
			return boom
		},
		BufferCodecs: func(Payload) error {
			panic("nil map")
		},
	})
	delivered := 0
	hub.On(BufferCodecs, func(Payload) error {
		delivered++
		return nil
	})

	hub.Trigger(BufferResetData{})
	hub.Trigger(BufferCodecsData{})

	is.Equal(len(reported), 2)
	is.Equal(reported[0].Type, OtherError)
	is.Equal(reported[0].Details, InternalException)
	is.True(!reported[0].Fatal)
	is.Equal(reported[0].Event, BufferReset)
	is.True(errors.Is(reported[0], boom))
	is.True(errors.Is(reported[1], ErrHandlerPanic))
	is.Equal(reported[1].Event, BufferCodecs)
	is.Equal(delivered, 1) // later listeners still run after a panic
	is.True(strings.Contains(buf.String(), "internal error while handling event"))
	is.True(strings.Contains(buf.String(), "handler=failing"))
}

func TestErrorHandlerFailureDoesNotRecurse(t *testing.T) {
	is := is.New(t)
	hub := newTestHub(&bytes.Buffer{})
	calls := 0
	hub.On(Error, func(Payload) error {
		calls++
		return errors.New("error handler failed")
	})
	hub.Trigger(&ErrorData{Type: MediaError, Details: BufferFullError})
	is.Equal(calls, 1)
}

func TestHandleWrongType(t *testing.T) {
	is := is.New(t)
	h := Handle(func(BufferEOSData) error { return nil })
	err := h(BufferResetData{})
	is.True(errors.Is(err, ErrPayloadType))
}

func TestRegisterUnknownNamePanics(t *testing.T) {
	is := is.New(t)
	hub := newTestHub(&bytes.Buffer{})
	defer func() {
		is.True(recover() != nil) // unknown event names are rejected
	}()
	hub.Register("bad", map[Name]Handler{"hlsNoSuchEvent": func(Payload) error { return nil }})
}

func TestSession(t *testing.T) {
	is := is.New(t)
	var buf bytes.Buffer
	hub := newTestHub(&buf)
	_, err := ulid.Parse(hub.Session())
	is.NoErr(err)
	is.True(hub.Session() != newTestHub(&buf).Session())

	hub.Logger("test").Info("hello")
	is.True(strings.Contains(buf.String(), "session="+hub.Session()))
	is.True(strings.Contains(buf.String(), "component=test"))
}

func TestErrorDataString(t *testing.T) {
	is := is.New(t)
	cause := errors.New("quota")
	e := &ErrorData{Type: MediaError, Details: BufferFullError, Fatal: true, Reason: "full", MimeType: "video/mp4", Err: cause}
	is.Equal(e.Error(), "mediaError: bufferFullError (fatal): full mime=video/mp4: quota")
	is.True(errors.Is(e, cause))

	var target *ErrorData
	wrapped := errors.Join(errors.New("context"), e)
	is.True(errors.As(wrapped, &target))
	is.Equal(target.Details, BufferFullError)
}
