// Package evaluation holds the compiled evaluation field: the sorted list of
// segments covering a root sequence, the ordered group of track pointers
// evaluated in each, and a summary of which entities each segment activates.
package evaluation

import (
	"fmt"

	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/track"
)

// SegmentPtr points at one compiled segment of one track in one sequence
// instance.
type SegmentPtr struct {
	SequenceID   hierarchy.SequenceID
	TrackID      track.ID
	SegmentIndex int
}

func (p SegmentPtr) String() string {
	return fmt.Sprintf("%s/%d/%d", p.SequenceID, p.TrackID, p.SegmentIndex)
}

// GroupLUTIndex describes one flush of a bucket inside Group.Ptrs: NumInit
// pointers that need a setup pass starting at Offset, followed by NumEval
// pointers to evaluate.
type GroupLUTIndex struct {
	Bucket  string
	Offset  int
	NumInit int
	NumEval int
}

// Group is the ordered work for one segment. Flushes run in LUT order and
// each one is applied before the next begins.
type Group struct {
	LUT  []GroupLUTIndex
	Ptrs []SegmentPtr
}

// Flush is a view onto one LUT entry.
type Flush struct {
	Bucket string
	Init   []SegmentPtr
	Eval   []SegmentPtr
}

// Flushes expands the LUT into views over Ptrs.
func (g Group) Flushes() []Flush {
	out := make([]Flush, len(g.LUT))
	for i, lut := range g.LUT {
		initEnd := lut.Offset + lut.NumInit
		out[i] = Flush{
			Bucket: lut.Bucket,
			Init:   g.Ptrs[lut.Offset:initEnd:initEnd],
			Eval:   g.Ptrs[initEnd : initEnd+lut.NumEval : initEnd+lut.NumEval],
		}
	}
	return out
}

// IsEmpty reports whether the group has no work.
func (g Group) IsEmpty() bool { return len(g.LUT) == 0 }

// GroupBuilder appends flushes to a Group.
type GroupBuilder struct {
	group Group
}

// AddFlush appends one flush. Init pointers are stored ahead of eval
// pointers.
func (b *GroupBuilder) AddFlush(bucket string, init, eval []SegmentPtr) {
	if len(init) == 0 && len(eval) == 0 {
		return
	}
	b.group.LUT = append(b.group.LUT, GroupLUTIndex{
		Bucket:  bucket,
		Offset:  len(b.group.Ptrs),
		NumInit: len(init),
		NumEval: len(eval),
	})
	b.group.Ptrs = append(b.group.Ptrs, init...)
	b.group.Ptrs = append(b.group.Ptrs, eval...)
}

// Build returns the finished group.
func (b *GroupBuilder) Build() Group { return b.group }
