package evaluation

import (
	"fmt"
	"sort"

	"github.com/vk/seqcore/internal/segment"
	"github.com/vk/seqcore/internal/timerange"
)

// Field maps root time onto evaluation groups. Ranges, Groups and Meta are
// parallel arrays and Ranges are sorted and disjoint.
type Field struct {
	Ranges []timerange.Range
	Groups []Group
	Meta   []MetaData
}

// Len returns the number of segments.
func (f *Field) Len() int { return len(f.Ranges) }

// Add appends a segment. Segments must be added in time order.
func (f *Field) Add(r timerange.Range, g Group, m MetaData) {
	f.Ranges = append(f.Ranges, r)
	f.Groups = append(f.Groups, g)
	f.Meta = append(f.Meta, m)
}

// Find returns the index of the segment containing t, or -1.
func (f *Field) Find(t float32) int {
	return segment.FindRange(len(f.Ranges), func(i int) timerange.Range { return f.Ranges[i] }, t)
}

// Resolve picks the segment to evaluate for er: the one containing the
// current time, else the last segment the range swept over in the direction
// of playback. It returns -1 when er touches no segment.
func (f *Field) Resolve(er timerange.EvaluationRange) int {
	if idx := f.Find(er.Time()); idx >= 0 {
		return idx
	}
	if er.Range.IsEmpty() {
		return -1
	}
	n := len(f.Ranges)
	// first segment ending after the sweep starts
	first := sort.Search(n, func(i int) bool {
		return f.Ranges[i].UpperCut().Compare(er.Range.LowerCut()) > 0
	})
	// last segment starting before the sweep ends
	last := sort.Search(n, func(i int) bool {
		return f.Ranges[i].LowerCut().Compare(er.Range.UpperCut()) >= 0
	}) - 1
	if first > last {
		return -1
	}
	idx := last
	if er.Direction == timerange.Backwards {
		idx = first
	}
	if !f.Ranges[idx].Overlaps(er.Range) {
		return -1
	}
	return idx
}

// Validate checks the structural invariants of the field.
func (f *Field) Validate() error {
	if len(f.Ranges) != len(f.Groups) || len(f.Ranges) != len(f.Meta) {
		return fmt.Errorf("field arrays differ in length: %d ranges, %d groups, %d metadata",
			len(f.Ranges), len(f.Groups), len(f.Meta))
	}
	for i, r := range f.Ranges {
		if r.IsEmpty() {
			return fmt.Errorf("field segment %d is empty", i)
		}
		if i > 0 && f.Ranges[i-1].UpperCut().Compare(r.LowerCut()) > 0 {
			return fmt.Errorf("field segments %d %s and %d %s overlap or are out of order",
				i-1, f.Ranges[i-1], i, r)
		}
	}
	return nil
}
