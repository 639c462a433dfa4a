package evaluation

import (
	"cmp"
	"slices"

	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/track"
)

// OrderedKey is an active entity together with its position in the
// segment's evaluation order.
type OrderedKey struct {
	Key   track.EntityKey
	Order int
}

// MetaData summarises what one segment activates. Both slices are sorted by
// key so two summaries can be diffed with a single merge.
type MetaData struct {
	ActiveSequences []hierarchy.SequenceID
	ActiveEntities  []OrderedKey
}

// NewMetaData sorts and deduplicates its inputs. When a key appears twice
// the lower order wins.
func NewMetaData(entities []OrderedKey, sequences []hierarchy.SequenceID) MetaData {
	ents := slices.Clone(entities)
	slices.SortFunc(ents, func(a, b OrderedKey) int {
		if c := CompareKeys(a.Key, b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.Order, b.Order)
	})
	ents = slices.CompactFunc(ents, func(a, b OrderedKey) bool { return a.Key == b.Key })

	seqs := slices.Clone(sequences)
	slices.Sort(seqs)
	seqs = slices.Compact(seqs)

	return MetaData{ActiveSequences: seqs, ActiveEntities: ents}
}

// CompareKeys orders entity keys by sequence, track, then section.
func CompareKeys(a, b track.EntityKey) int {
	if c := cmp.Compare(a.SequenceID, b.SequenceID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TrackID, b.TrackID); c != 0 {
		return c
	}
	return cmp.Compare(a.SectionIndex, b.SectionIndex)
}

// Diff compares m, the current frame, against last. Entered entities are
// active only in m and exited ones only in last. Each result is sorted by
// evaluation order.
func (m MetaData) Diff(last MetaData) (entered, exited []OrderedKey) {
	cur, prev := m.ActiveEntities, last.ActiveEntities
	i, j := 0, 0
	for i < len(cur) || j < len(prev) {
		switch {
		case j == len(prev):
			entered = append(entered, cur[i])
			i++
		case i == len(cur):
			exited = append(exited, prev[j])
			j++
		default:
			switch c := CompareKeys(cur[i].Key, prev[j].Key); {
			case c < 0:
				entered = append(entered, cur[i])
				i++
			case c > 0:
				exited = append(exited, prev[j])
				j++
			default:
				i++
				j++
			}
		}
	}
	byOrder := func(a, b OrderedKey) int { return cmp.Compare(a.Order, b.Order) }
	slices.SortStableFunc(entered, byOrder)
	slices.SortStableFunc(exited, byOrder)
	return entered, exited
}

// DiffSequences returns the sequences that became active and those that
// expired relative to last.
func (m MetaData) DiffSequences(last MetaData) (entered, expired []hierarchy.SequenceID) {
	cur, prev := m.ActiveSequences, last.ActiveSequences
	i, j := 0, 0
	for i < len(cur) || j < len(prev) {
		switch {
		case j == len(prev) || (i < len(cur) && cur[i] < prev[j]):
			entered = append(entered, cur[i])
			i++
		case i == len(cur) || cur[i] > prev[j]:
			expired = append(expired, prev[j])
			j++
		default:
			i++
			j++
		}
	}
	return entered, expired
}

// IsActive reports whether key is active.
func (m MetaData) IsActive(key track.EntityKey) bool {
	_, found := slices.BinarySearchFunc(m.ActiveEntities, key, func(e OrderedKey, k track.EntityKey) int {
		return CompareKeys(e.Key, k)
	})
	return found
}
