package m3u8

/*
 This file defines byte-range recovery for fragmented MP4 levels without
 EXT-X-MAP, from the sidx box at the start of the first resource.
*/

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/abema/go-mp4"
)

// SidxRequestSize is the number of leading init segment bytes fetched to
// find the sidx box.
const SidxRequestSize = 2048

var ErrNoSegmentIndex = errors.New("no sidx box found")
var ErrHierarchicalSegmentIndex = errors.New("sidx has hierarchical references")

// SegmentReference is one subsegment listed in a sidx box. Start and End are
// inclusive byte offsets in the resource.
type SegmentReference struct {
	Size     uint32
	Duration float64 // seconds
	Start    int64
	End      int64
}

// SegmentIndex is the content of a sidx box plus the end of the moov box.
type SegmentIndex struct {
	Version                  uint8
	Timescale                uint32
	EarliestPresentationTime uint64
	References               []SegmentReference
	MoovEndOffset            int64
}

// ParseSegmentIndex scans the top-level boxes of data for a sidx box. The
// data may be truncated; boxes past its end are not needed.
func ParseSegmentIndex(data []byte) (*SegmentIndex, error) {
	r := bytes.NewReader(data)
	var index *SegmentIndex
	var moovEnd int64

	for {
		bi, err := mp4.ReadBoxInfo(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, fmt.Errorf("read box: %w", err)
		}
		switch bi.Type {
		case mp4.BoxTypeMoov():
			moovEnd = int64(bi.Offset + bi.Size)
		case mp4.BoxTypeSidx():
			if index, err = readSidx(r, bi); err != nil {
				return nil, err
			}
		}
		if bi.Offset+bi.Size >= uint64(len(data)) {
			break
		}
		if _, err := bi.SeekToEnd(r); err != nil {
			return nil, err
		}
	}

	if index == nil {
		return nil, ErrNoSegmentIndex
	}
	index.MoovEndOffset = moovEnd
	return index, nil
}

func readSidx(r io.ReadSeeker, bi *mp4.BoxInfo) (*SegmentIndex, error) {
	if _, err := bi.SeekToPayload(r); err != nil {
		return nil, err
	}
	var sidx mp4.Sidx
	if _, err := mp4.Unmarshal(r, bi.Size-bi.HeaderSize, &sidx, bi.Context); err != nil {
		return nil, fmt.Errorf("unmarshal sidx: %w", err)
	}

	index := &SegmentIndex{
		Version:                  sidx.GetVersion(),
		Timescale:                sidx.Timescale,
		EarliestPresentationTime: sidx.GetEarliestPresentationTime(),
	}
	start := int64(bi.Offset+bi.Size) + int64(sidx.GetFirstOffset())
	for _, ref := range sidx.References {
		if ref.ReferenceType {
			return nil, ErrHierarchicalSegmentIndex
		}
		var duration float64
		if sidx.Timescale > 0 {
			duration = float64(ref.SubsegmentDuration) / float64(sidx.Timescale)
		}
		index.References = append(index.References, SegmentReference{
			Size:     ref.ReferencedSize,
			Duration: duration,
			Start:    start,
			End:      start + int64(ref.ReferencedSize) - 1,
		})
		start += int64(ref.ReferencedSize)
	}
	return index, nil
}

// ApplySegmentIndex gives fragments that have no byte range the range of
// the matching subsegment, and the init segment the range up to the end of
// the moov box.
func (d *LevelDetails) ApplySegmentIndex(index *SegmentIndex) {
	for i, ref := range index.References {
		if i >= len(d.Fragments) {
			break
		}
		frag := d.Fragments[i]
		if frag.ByteRange == nil {
			frag.ByteRange = &ByteRange{Length: ref.End - ref.Start + 1, Offset: ref.Start}
		}
	}
	if d.InitSegment != nil {
		d.InitSegment.ByteRange = &ByteRange{Length: index.MoovEndOffset}
	}
}
