// Package ledger maps track signatures to the compiled tracks of one
// template, with reference counting so unchanged content is compiled once.
package ledger

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vk/seqcore/internal/signature"
	"github.com/vk/seqcore/internal/track"
)

// Ledger is not safe for concurrent mutation. Templates own their ledger
// and publish it read-only once built.
type Ledger struct {
	nextID    track.ID
	bySig     map[signature.Signature][]track.ID
	refs      map[track.ID]int
	tracks    map[track.ID]*track.EvaluationTrack
	stale     map[track.ID]*track.EvaluationTrack
	keepStale bool
}

// New returns an empty ledger. When keepStale is set, evicted tracks remain
// findable until PurgeStale is called.
func New(keepStale bool) *Ledger {
	return &Ledger{
		nextID:    1,
		bySig:     make(map[signature.Signature][]track.ID),
		refs:      make(map[track.ID]int),
		tracks:    make(map[track.ID]*track.EvaluationTrack),
		stale:     make(map[track.ID]*track.EvaluationTrack),
		keepStale: keepStale,
	}
}

// FindTrackIDs returns the ids registered under sig.
func (l *Ledger) FindTrackIDs(sig signature.Signature) []track.ID {
	return l.bySig[sig]
}

// AddTrack registers a compiled track under sig. A new signature allocates a
// fresh id. A known signature gains a reference on each of its ids and the
// first id is returned; compiled is ignored in that case.
func (l *Ledger) AddTrack(sig signature.Signature, compiled *track.EvaluationTrack) track.ID {
	if ids, ok := l.bySig[sig]; ok {
		for _, id := range ids {
			l.refs[id]++
		}
		return ids[0]
	}

	id := l.nextID
	l.nextID++
	l.bySig[sig] = []track.ID{id}
	l.refs[id] = 1
	l.tracks[id] = compiled
	delete(l.stale, id)
	return id
}

// RemoveTrack drops one reference from every id registered under sig.
// Tracks whose count reaches zero are evicted. Removing a signature that has
// no references is a programming error and panics.
func (l *Ledger) RemoveTrack(sig signature.Signature) {
	ids, ok := l.bySig[sig]
	if !ok {
		panic(fmt.Sprintf("ledger: RemoveTrack called for unreferenced signature %s", sig))
	}

	var live []track.ID
	for _, id := range ids {
		if l.refs[id]--; l.refs[id] > 0 {
			live = append(live, id)
			continue
		}
		delete(l.refs, id)
		if l.keepStale {
			l.stale[id] = l.tracks[id]
		}
		delete(l.tracks, id)
	}
	if len(live) == 0 {
		delete(l.bySig, sig)
	} else {
		l.bySig[sig] = live
	}
}

// FindTrack returns the compiled track for id, falling back to the stale
// table.
func (l *Ledger) FindTrack(id track.ID) (*track.EvaluationTrack, bool) {
	if t, ok := l.tracks[id]; ok {
		return t, true
	}
	t, ok := l.stale[id]
	return t, ok
}

// IsStale reports whether id was evicted but is still retained.
func (l *Ledger) IsStale(id track.ID) bool {
	_, ok := l.stale[id]
	return ok
}

// PurgeStale drops every retained stale track and returns how many there
// were.
func (l *Ledger) PurgeStale() int {
	n := len(l.stale)
	clear(l.stale)
	return n
}

// Signatures returns every live signature in a stable order.
func (l *Ledger) Signatures() []signature.Signature {
	sigs := slices.Collect(maps.Keys(l.bySig))
	slices.SortFunc(sigs, func(a, b signature.Signature) int {
		return slices.Compare(a[:], b[:])
	})
	return sigs
}

// IDs returns every live track id in ascending order.
func (l *Ledger) IDs() []track.ID {
	return slices.Sorted(maps.Keys(l.tracks))
}

// Len returns the number of live tracks.
func (l *Ledger) Len() int { return len(l.tracks) }

// RefCount returns the reference count of id.
func (l *Ledger) RefCount(id track.ID) int { return l.refs[id] }

// Clone returns a copy sharing the immutable compiled tracks.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		nextID:    l.nextID,
		bySig:     make(map[signature.Signature][]track.ID, len(l.bySig)),
		refs:      maps.Clone(l.refs),
		tracks:    maps.Clone(l.tracks),
		stale:     maps.Clone(l.stale),
		keepStale: l.keepStale,
	}
	for sig, ids := range l.bySig {
		c.bySig[sig] = slices.Clone(ids)
	}
	return c
}
