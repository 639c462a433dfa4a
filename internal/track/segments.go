package track

import (
	"github.com/vk/seqcore/internal/segment"
	"github.com/vk/seqcore/internal/timerange"
)

// SectionRange is one range reported by a track at compile time.
type SectionRange struct {
	Range        timerange.Range
	SectionIndex int
	Flags        Flags
}

// SectionBounds describes a section for DefaultSegments.
type SectionBounds struct {
	Range    timerange.Range
	PreRoll  float32
	PostRoll float32
}

// DefaultSegments reports each section's own range plus its pre- and
// post-roll ranges, which are skipped when the adjoining bound is open.
func DefaultSegments(sections []SectionBounds) []SectionRange {
	var out []SectionRange
	for i, s := range sections {
		if s.Range.IsEmpty() {
			continue
		}
		if s.PreRoll > 0 && !s.Range.Lower.IsOpen() {
			lo := s.Range.Lower
			upper := timerange.ExclusiveBound(lo.Value)
			if lo.Kind == timerange.Exclusive {
				upper = timerange.InclusiveBound(lo.Value)
			}
			out = append(out, SectionRange{
				Range:        timerange.Range{Lower: timerange.InclusiveBound(lo.Value - s.PreRoll), Upper: upper},
				SectionIndex: i,
				Flags:        PreRoll,
			})
		}

		out = append(out, SectionRange{Range: s.Range, SectionIndex: i})

		if s.PostRoll > 0 && !s.Range.Upper.IsOpen() {
			hi := s.Range.Upper
			lower := timerange.ExclusiveBound(hi.Value)
			if hi.Kind == timerange.Exclusive {
				lower = timerange.InclusiveBound(hi.Value)
			}
			out = append(out, SectionRange{
				Range:        timerange.Range{Lower: lower, Upper: timerange.InclusiveBound(hi.Value + s.PostRoll)},
				SectionIndex: i,
				Flags:        PostRoll,
			})
		}
	}
	return out
}

// CompileSegments runs the segment compiler over a track's section ranges.
func CompileSegments(ranges []SectionRange) []Segment {
	entries := make([]segment.Entry[SectionEval], len(ranges))
	for i, r := range ranges {
		entries[i] = segment.Entry[SectionEval]{
			Range:  r.Range,
			Entity: SectionEval{SectionIndex: r.SectionIndex, Flags: r.Flags},
		}
	}
	return segment.Compile(entries)
}
