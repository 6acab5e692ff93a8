package media

import (
	"sort"
	"strconv"
	"strings"
)

// TimeRanges is a read-only list of [start, end) ranges in seconds.
type TimeRanges interface {
	Len() int
	Start(i int) float64
	End(i int) float64
}

// TimeRange is one buffered range.
type TimeRange struct {
	Start float64
	End   float64
}

// Ranges is a TimeRanges backed by a slice.
type Ranges []TimeRange

func (r Ranges) Len() int { return len(r) }

func (r Ranges) Start(i int) float64 { return r[i].Start }

func (r Ranges) End(i int) float64 { return r[i].End }

// ToRanges copies any TimeRanges into a slice. A nil input gives nil.
func ToRanges(tr TimeRanges) Ranges {
	if tr == nil {
		return nil
	}
	out := make(Ranges, 0, tr.Len())
	for i := 0; i < tr.Len(); i++ {
		out = append(out, TimeRange{Start: tr.Start(i), End: tr.End(i)})
	}
	return out
}

// Normalize returns the ranges sorted by start with overlapping and touching
// ranges merged. Empty ranges are dropped.
func (r Ranges) Normalize() Ranges {
	in := make(Ranges, 0, len(r))
	for _, tr := range r {
		if tr.End > tr.Start {
			in = append(in, tr)
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start < in[j].Start })
	var out Ranges
	for _, tr := range in {
		if n := len(out); n > 0 && tr.Start <= out[n-1].End {
			if tr.End > out[n-1].End {
				out[n-1].End = tr.End
			}
			continue
		}
		out = append(out, tr)
	}
	return out
}

// Subtract removes [start, end) from the ranges.
func (r Ranges) Subtract(start, end float64) Ranges {
	var out Ranges
	for _, tr := range r {
		if tr.End <= start || tr.Start >= end {
			out = append(out, tr)
			continue
		}
		if tr.Start < start {
			out = append(out, TimeRange{Start: tr.Start, End: start})
		}
		if tr.End > end {
			out = append(out, TimeRange{Start: end, End: tr.End})
		}
	}
	return out
}

// Intersect returns the ranges covered by both inputs.
func (r Ranges) Intersect(other Ranges) Ranges {
	var out Ranges
	a, b := r.Normalize(), other.Normalize()
	for i, j := 0, 0; i < len(a) && j < len(b); {
		start := max(a[i].Start, b[j].Start)
		end := min(a[i].End, b[j].End)
		if end > start {
			out = append(out, TimeRange{Start: start, End: end})
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

// FormatRanges renders ranges as "[0.000,10.000][12.000,20.000]" for logs.
func FormatRanges(tr TimeRanges) string {
	if tr == nil {
		return "[]"
	}
	var sb strings.Builder
	for i := 0; i < tr.Len(); i++ {
		sb.WriteByte('[')
		sb.WriteString(strconv.FormatFloat(tr.Start(i), 'f', 3, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(tr.End(i), 'f', 3, 64))
		sb.WriteByte(']')
	}
	if sb.Len() == 0 {
		return "[]"
	}
	return sb.String()
}
