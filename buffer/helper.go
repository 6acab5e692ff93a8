package buffer

/*
 This file defines the buffered range accounting used to decide how much
 media is playable ahead of a position.
*/

import (
	"sort"

	"github.com/mogiioin/hlsengine/media"
)

// BufferedResult describes the buffered range around a position.
type BufferedResult struct {
	Len       float64 // playable length from the position to End, zero in a hole
	Start     float64
	End       float64
	NextStart *float64 // start of the next range after a hole, nil if none
}

// BufferedInfo coalesces ranges separated by less than maxHoleDuration and
// locates pos among them. The input slice is not modified.
func BufferedInfo(ranges media.Ranges, pos, maxHoleDuration float64) BufferedResult {
	buffered := make(media.Ranges, len(ranges))
	copy(buffered, ranges)
	sort.SliceStable(buffered, func(i, j int) bool {
		if buffered[i].Start != buffered[j].Start {
			return buffered[i].Start < buffered[j].Start
		}
		return buffered[i].End > buffered[j].End
	})

	var merged media.Ranges
	for _, r := range buffered {
		n := len(merged)
		if n > 0 && r.Start-merged[n-1].End < maxHoleDuration {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}

	res := BufferedResult{Start: pos, End: pos}
	for _, r := range merged {
		if pos+maxHoleDuration >= r.Start && pos < r.End {
			res.Start = r.Start
			res.End = r.End
			res.Len = r.End - pos
		} else if pos+maxHoleDuration < r.Start {
			next := r.Start
			res.NextStart = &next
			break
		}
	}
	return res
}

// BufferInfo reads the buffered ranges of b and returns BufferedInfo for pos.
// A nil Bufferable or one failing to report its ranges yields an empty result.
func BufferInfo(b media.Bufferable, pos, maxHoleDuration float64) BufferedResult {
	if b == nil {
		return BufferedResult{Start: pos, End: pos}
	}
	tr, err := b.Buffered()
	if err != nil || tr == nil {
		return BufferedResult{Start: pos, End: pos}
	}
	return BufferedInfo(media.ToRanges(tr), pos, maxHoleDuration)
}

// IsBuffered reports whether pos falls inside a buffered range of b, bounds
// included.
func IsBuffered(b media.Bufferable, pos float64) bool {
	if b == nil {
		return false
	}
	tr, err := b.Buffered()
	if err != nil || tr == nil {
		return false
	}
	for i := 0; i < tr.Len(); i++ {
		if pos >= tr.Start(i) && pos <= tr.End(i) {
			return true
		}
	}
	return false
}
