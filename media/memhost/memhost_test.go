package memhost

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/mogiioin/hlsengine/media"
)

const mp4Type = `video/mp4; codecs="avc1.42e01e"`

func openSource(t *testing.T, h *Host) (*Element, *MediaSource) {
	t.Helper()
	is := is.New(t)
	el := h.NewElement()
	ms := h.NewMediaSource().(*MediaSource)
	opened := 0
	ms.OnSourceOpen(func() { opened++ })
	url := h.CreateObjectURL(ms)
	is.True(strings.HasPrefix(url, "blob:memhost/"))
	el.SetSrc(url)
	is.Equal(ms.ReadyState(), media.ReadyStateClosed) // opens asynchronously
	h.RunPending(0)
	is.Equal(ms.ReadyState(), media.ReadyStateOpen)
	is.Equal(opened, 1)
	return el, ms
}

func TestSegmentCodec(t *testing.T) {
	is := is.New(t)
	data := EncodeSegment(1.5, 3.25, []byte("payload"))
	start, end, payload, err := DecodeSegment(data)
	is.NoErr(err)
	is.Equal(start, 1.5)
	is.Equal(end, 3.25)
	is.Equal(string(payload), "payload")

	_, _, _, err = DecodeSegment([]byte("garbage"))
	is.True(errors.Is(err, ErrDecode))
}

func TestAppendAndBuffered(t *testing.T) {
	is := is.New(t)
	h := New()
	el, ms := openSource(t, h)

	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	sb := sbi.(*SourceBuffer)
	updates := 0
	sb.OnUpdateEnd(func() { updates++ })

	is.NoErr(sb.AppendBuffer(EncodeInitSegment(nil)))
	is.True(sb.Updating())
	is.True(errors.Is(sb.AppendBuffer(EncodeSegment(0, 4, nil)), media.ErrInvalidState)) // one operation at a time
	h.RunPending(0)
	is.True(!sb.Updating())
	is.Equal(updates, 1)
	is.Equal(el.ReadyState(), media.HaveMetadata)

	is.NoErr(sb.AppendBuffer(EncodeSegment(0, 4, nil)))
	h.RunPending(0)
	is.NoErr(sb.AppendBuffer(EncodeSegment(4, 8, nil)))
	h.RunPending(0)
	buffered, err := el.Buffered()
	is.NoErr(err)
	is.Equal(media.ToRanges(buffered), media.Ranges{{Start: 0, End: 8}})
	is.Equal(sb.Appends(), 3)
}

func TestTimestampOffset(t *testing.T) {
	is := is.New(t)
	h := New()
	_, ms := openSource(t, h)
	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	is.NoErr(sbi.SetTimestampOffset(10))
	is.NoErr(sbi.AppendBuffer(EncodeSegment(0, 2, nil)))
	is.True(errors.Is(sbi.SetTimestampOffset(0), media.ErrInvalidState))
	h.RunPending(0)
	buffered, err := sbi.Buffered()
	is.NoErr(err)
	is.Equal(media.ToRanges(buffered), media.Ranges{{Start: 10, End: 12}})
}

func TestAppendErrors(t *testing.T) {
	is := is.New(t)
	h := New()
	h.MaxBufferBytes = 100
	_, ms := openSource(t, h)
	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	sb := sbi.(*SourceBuffer)

	is.True(errors.Is(sb.AppendBuffer(EncodeSegment(0, 1, make([]byte, 200))), media.ErrQuotaExceeded))
	is.True(!sb.Updating())

	boom := errors.New("boom")
	sb.FailNextAppend(boom)
	is.True(errors.Is(sb.AppendBuffer(EncodeSegment(0, 1, nil)), boom))
	is.NoErr(sb.AppendBuffer(EncodeSegment(0, 1, nil))) // failure is consumed

	h.RunPending(0)
	var got error
	updates := 0
	sb.OnError(func(err error) { got = err })
	sb.OnUpdateEnd(func() { updates++ })
	is.NoErr(sb.AppendBuffer([]byte("not a segment")))
	h.RunPending(0)
	is.True(errors.Is(got, ErrDecode))
	is.Equal(updates, 1) // error is followed by update end
}

func TestRemove(t *testing.T) {
	is := is.New(t)
	h := New()
	_, ms := openSource(t, h)
	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	sb := sbi.(*SourceBuffer)
	is.NoErr(sb.AppendBuffer(EncodeSegment(0, 10, make([]byte, 100))))
	h.RunPending(0)

	is.NoErr(sb.Remove(2, 4))
	is.True(sb.Updating())
	h.RunPending(0)
	buffered, _ := sb.Buffered()
	is.Equal(media.ToRanges(buffered), media.Ranges{{Start: 0, End: 2}, {Start: 4, End: 10}})
	is.Equal(sb.Size(), 96) // 120 byte segment keeps 8 of 10 seconds
	is.Equal(sb.Removes(), []media.TimeRange{{Start: 2, End: 4}})

	is.True(sb.Remove(5, 5) != nil)          // empty range
	is.True(sb.Remove(-1, 5) != nil)         // negative start
	is.True(sb.Remove(math.NaN(), 5) != nil) // NaN start
}

func TestKeepOnRemove(t *testing.T) {
	is := is.New(t)
	h := New()
	_, ms := openSource(t, h)
	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	sb := sbi.(*SourceBuffer)
	is.NoErr(sb.AppendBuffer(EncodeSegment(0, 10, make([]byte, 100))))
	h.RunPending(0)

	updates := 0
	sb.OnUpdateEnd(func() { updates++ })
	sb.KeepOnRemove(true)
	is.NoErr(sb.Remove(2, 4))
	h.RunPending(0)
	is.Equal(updates, 1) // the remove still completes
	buffered, _ := sb.Buffered()
	is.Equal(media.ToRanges(buffered), media.Ranges{{Start: 0, End: 10}})
}

func TestAbort(t *testing.T) {
	is := is.New(t)
	h := New()
	_, ms := openSource(t, h)
	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	updates := 0
	sbi.OnUpdateEnd(func() { updates++ })
	is.NoErr(sbi.AppendBuffer(EncodeSegment(0, 4, nil)))
	is.NoErr(sbi.Abort())
	is.True(!sbi.Updating())
	h.RunPending(0)
	is.Equal(updates, 1)
	buffered, _ := sbi.Buffered()
	is.Equal(buffered.Len(), 0) // cancelled append buffers nothing
}

func TestDurationAndEndOfStream(t *testing.T) {
	is := is.New(t)
	h := New()
	el, ms := openSource(t, h)
	is.True(math.IsNaN(el.Duration()))
	is.NoErr(ms.SetDuration(30))
	is.Equal(el.Duration(), 30.0)
	is.True(ms.SetDuration(-1) != nil)

	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	is.NoErr(sbi.AppendBuffer(EncodeSegment(0, 12, nil)))
	is.True(errors.Is(ms.EndOfStream(), media.ErrInvalidState)) // updating
	h.RunPending(0)

	ended := 0
	ms.OnSourceEnded(func() { ended++ })
	is.NoErr(ms.EndOfStream())
	is.Equal(ms.ReadyState(), media.ReadyStateEnded)
	is.Equal(ms.Duration(), 12.0)
	h.RunPending(0)
	is.Equal(ended, 1)

	is.NoErr(sbi.AppendBuffer(EncodeSegment(12, 14, nil)))
	is.Equal(ms.ReadyState(), media.ReadyStateOpen) // append reopens
}

func TestAddSourceBufferChecks(t *testing.T) {
	is := is.New(t)
	h := New()
	closed := h.NewMediaSource()
	_, err := closed.AddSourceBuffer(mp4Type)
	is.True(errors.Is(err, media.ErrInvalidState))

	_, ms := openSource(t, h)
	_, err = ms.AddSourceBuffer("video/webm")
	is.True(errors.Is(err, media.ErrNotSupported))
	is.True(media.IsSupported(h))
}

func TestDetach(t *testing.T) {
	is := is.New(t)
	h := New()
	el, ms := openSource(t, h)
	sbi, err := ms.AddSourceBuffer(mp4Type)
	is.NoErr(err)
	closed := 0
	ms.OnSourceClose(func() { closed++ })

	el.RemoveSrc()
	el.Load()
	is.Equal(ms.ReadyState(), media.ReadyStateClosed)
	is.True(el.MediaSource() == nil)
	is.Equal(len(ms.SourceBuffers()), 0)
	_, err = sbi.Buffered()
	is.True(errors.Is(err, media.ErrInvalidState)) // buffer removed with its source
	h.RunPending(0)
	is.Equal(closed, 1)
}

func TestBufferedIntersection(t *testing.T) {
	is := is.New(t)
	h := New()
	el, ms := openSource(t, h)
	video, _ := ms.AddSourceBuffer(mp4Type)
	audio, _ := ms.AddSourceBuffer(`audio/mp4; codecs="mp4a.40.2"`)
	is.NoErr(video.AppendBuffer(EncodeSegment(0, 10, nil)))
	is.NoErr(audio.AppendBuffer(EncodeSegment(2, 12, nil)))
	h.RunPending(0)
	buffered, err := el.Buffered()
	is.NoErr(err)
	is.Equal(media.ToRanges(buffered), media.Ranges{{Start: 2, End: 10}})
}

func TestListenerOff(t *testing.T) {
	is := is.New(t)
	var l listeners[func()]
	calls := 0
	off := l.add(func() { calls++ })
	l.add(func() { calls += 10 })
	off()
	l.fire(func(fn func()) { fn() })
	is.Equal(calls, 10)
}
