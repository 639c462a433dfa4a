package template

import (
	"cmp"
	"slices"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/evaluation"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/segment"
	"github.com/vk/seqcore/internal/track"
)

// groupItem is one segment pointer with everything its position in the
// evaluation order depends on.
type groupItem struct {
	ptr            evaluation.SegmentPtr
	bucket         string
	bucketPriority int
	bias           int
	priority       int
	requiresInit   bool
	sections       []track.SectionEval
}

// compareItems orders by bucket priority (descending), bucket name, then
// hierarchical bias (ascending) and finally track priority (descending).
func compareItems(a, b groupItem) int {
	if c := cmp.Compare(b.bucketPriority, a.bucketPriority); c != 0 {
		return c
	}
	if c := cmp.Compare(a.bucket, b.bucket); c != 0 {
		return c
	}
	if c := cmp.Compare(a.bias, b.bias); c != 0 {
		return c
	}
	return cmp.Compare(b.priority, a.priority)
}

// buildGroup sorts items and splits them into one flush per bucket. Items
// that need a setup pass appear in the flush's init list and again in its
// eval list. The returned keys carry each entity's evaluation order.
func buildGroup(items []groupItem) (evaluation.Group, []evaluation.OrderedKey) {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, compareItems)

	var b evaluation.GroupBuilder
	var keys []evaluation.OrderedKey
	var init, eval []evaluation.SegmentPtr
	for i, it := range sorted {
		if i > 0 && it.bucket != sorted[i-1].bucket {
			b.AddFlush(sorted[i-1].bucket, init, eval)
			init, eval = nil, nil
		}
		if it.requiresInit {
			init = append(init, it.ptr)
		}
		eval = append(eval, it.ptr)
		for _, s := range it.sections {
			keys = append(keys, evaluation.OrderedKey{
				Key: track.EntityKey{
					SequenceID:   it.ptr.SequenceID,
					TrackID:      it.ptr.TrackID,
					SectionIndex: s.SectionIndex,
				},
				Order: i,
			})
		}
	}
	if len(sorted) > 0 {
		b.AddFlush(sorted[len(sorted)-1].bucket, init, eval)
	}
	return b.Build(), keys
}

func (gen *generation) findTrack(ptr evaluation.SegmentPtr) (*track.EvaluationTrack, bool) {
	if ptr.SequenceID == hierarchy.Root {
		return gen.ledger.FindTrack(ptr.TrackID)
	}
	sub, ok := gen.subs[ptr.SequenceID]
	if !ok {
		return nil, false
	}
	return sub.Ledger.FindTrack(ptr.TrackID)
}

func (gen *generation) buildField() evaluation.Field {
	logger := ctxlog.FromContext(gen.ctx)

	var field evaluation.Field
	for _, seg := range segment.Compile(gen.entries) {
		var items []groupItem
		var seqs []hierarchy.SequenceID
		for _, e := range seg.Entities {
			if e.sequence != hierarchy.Root {
				seqs = append(seqs, e.sequence)
			}
			if e.presence {
				continue
			}
			et, ok := gen.findTrack(e.ptr)
			if !ok {
				logger.Warn("Compiled pointer refers to a missing track, skipping.", "pointer", e.ptr.String())
				continue
			}
			trackSeg, ok := et.Segment(e.ptr.SegmentIndex)
			if !ok {
				logger.Warn("Compiled pointer refers to a missing segment, skipping.", "pointer", e.ptr.String())
				continue
			}
			prio, known := gen.g.registry.BucketPriority(et.Bucket)
			if !known {
				logger.Debug("Track bucket is not declared, using priority 0.", "track", et.Name, "bucket", et.Bucket)
			}
			items = append(items, groupItem{
				ptr:            e.ptr,
				bucket:         et.Bucket,
				bucketPriority: prio,
				bias:           gen.hierarchy.Bias(e.ptr.SequenceID),
				priority:       et.Priority,
				requiresInit:   et.RequiresInit(),
				sections:       trackSeg.Entities,
			})
		}
		group, keys := buildGroup(items)
		field.Add(seg.Range, group, evaluation.NewMetaData(keys, seqs))
	}
	return field
}
