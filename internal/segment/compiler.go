// Package segment compiles overlapping time ranges into a sorted list of
// disjoint segments, each listing the entities active across it.
package segment

import (
	"slices"

	"github.com/vk/seqcore/internal/timerange"
)

// Entry pairs an entity with the range over which it is active.
type Entry[T comparable] struct {
	Range  timerange.Range
	Entity T
}

// Segment is a maximal span of time over which the set of active entities
// does not change.
type Segment[T comparable] struct {
	Range    timerange.Range
	Entities []T
}

type event struct {
	cut   timerange.Cut
	entry int
	open  bool
}

// Compile sweeps the boundaries of every entry and returns the disjoint
// segments covering the union of the input ranges. Entities inside a segment
// are ordered by their first appearance in entries. Touching segments with
// identical entity lists are merged. Empty ranges are ignored.
func Compile[T comparable](entries []Entry[T]) []Segment[T] {
	if len(entries) == 0 {
		return nil
	}

	firstSeen := make(map[T]int, len(entries))
	events := make([]event, 0, len(entries)*2)
	for i, e := range entries {
		if e.Range.IsEmpty() {
			continue
		}
		if _, ok := firstSeen[e.Entity]; !ok {
			firstSeen[e.Entity] = i
		}
		events = append(events,
			event{cut: e.Range.LowerCut(), entry: i, open: true},
			event{cut: e.Range.UpperCut(), entry: i, open: false},
		)
	}
	if len(events) == 0 {
		return nil
	}

	slices.SortStableFunc(events, func(a, b event) int {
		return a.cut.Compare(b.cut)
	})

	active := make(map[T]int)
	var out []Segment[T]
	for i := 0; i < len(events); {
		// All events sharing one cut are applied together. Because lower and
		// upper bounds map onto cuts, an exclusive close and an inclusive open
		// at the same value already sort apart and never produce a zero-width
		// segment.
		at := events[i].cut
		for ; i < len(events) && events[i].cut.Compare(at) == 0; i++ {
			ent := entries[events[i].entry].Entity
			if events[i].open {
				active[ent]++
				continue
			}
			if active[ent]--; active[ent] == 0 {
				delete(active, ent)
			}
		}
		if len(active) == 0 || i == len(events) {
			continue
		}

		next := events[i].cut
		rng := timerange.FromCuts(at, next)
		ents := sortedActive(active, firstSeen)

		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.Range.UpperCut().Compare(at) == 0 && slices.Equal(prev.Entities, ents) {
				prev.Range = timerange.FromCuts(prev.Range.LowerCut(), next)
				continue
			}
		}
		out = append(out, Segment[T]{Range: rng, Entities: ents})
	}
	return out
}

func sortedActive[T comparable](active map[T]int, firstSeen map[T]int) []T {
	ents := make([]T, 0, len(active))
	for ent := range active {
		ents = append(ents, ent)
	}
	slices.SortFunc(ents, func(a, b T) int {
		return firstSeen[a] - firstSeen[b]
	})
	return ents
}

// Find returns the index of the segment containing t, or -1.
func Find[T comparable](segments []Segment[T], t float32) int {
	return FindRange(len(segments), func(i int) timerange.Range { return segments[i].Range }, t)
}

// FindRange performs the same lookup as Find over any sorted, disjoint list
// of n ranges.
func FindRange(n int, at func(int) timerange.Range, t float32) int {
	probe := timerange.Cut{Value: t, After: true}
	lo, hi := 0, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if at(mid).UpperCut().Compare(probe) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n && at(lo).Contains(t) {
		return lo
	}
	return -1
}

// Ranges returns the ranges of segments in order.
func Ranges[T comparable](segments []Segment[T]) []timerange.Range {
	out := make([]timerange.Range, len(segments))
	for i, s := range segments {
		out[i] = s.Range
	}
	return out
}
