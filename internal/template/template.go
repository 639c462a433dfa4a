// Package template compiles sequences into evaluation templates and caches
// them per sequence.
//
// A Template is immutable once built. Regeneration clones the previous
// template's ledger, builds a complete replacement and publishes it with an
// atomic swap, so readers holding the old template never see a partial one.
package template

import (
	"errors"

	"github.com/vk/seqcore/internal/evaluation"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/ledger"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/signature"
	"github.com/vk/seqcore/internal/track"
)

var (
	// ErrSequenceNotFound is returned when a sequence name is not in the library.
	ErrSequenceNotFound = errors.New("sequence not found")
	// ErrRecursiveSequence is returned when a sequence plays itself.
	ErrRecursiveSequence = errors.New("recursive sequence")
)

// Params are the compile-time settings a template was built with. A
// template built with different params is stale.
type Params struct {
	// KeepStaleTracks retains evicted tracks until PurgeStaleTracks so that
	// end hooks can still run one frame after a track is removed.
	KeepStaleTracks bool
}

// SourceSignature records the signature a sequence had when compiled.
type SourceSignature struct {
	Sequence  *sequence.Sequence
	Signature signature.Signature
}

// Template is the compiled form of one sequence.
type Template struct {
	Name      string
	Sequence  *sequence.Sequence
	Signature signature.Signature
	Params    Params
	Ledger    *ledger.Ledger
	Field     evaluation.Field
	Hierarchy *hierarchy.Hierarchy
	Sources   []SourceSignature

	// subTemplates holds the template of every sub-sequence instance,
	// keyed by its id in Hierarchy.
	subTemplates map[hierarchy.SequenceID]*Template
	// staleSubs are sub-sequences that left the hierarchy but are retained
	// for one more frame.
	staleSubs   map[hierarchy.SequenceID]bool
	invalidated bool
}

// IsStale reports whether any source sequence changed since compilation,
// the params differ, or the template was invalidated.
func (t *Template) IsStale(p Params) bool {
	if t.invalidated || t.Params != p {
		return true
	}
	for _, src := range t.Sources {
		if src.Sequence.Signature() != src.Signature {
			return true
		}
	}
	return false
}

// SubTemplate returns the template played by sub-sequence id.
func (t *Template) SubTemplate(id hierarchy.SequenceID) (*Template, bool) {
	if id == hierarchy.Root {
		return t, true
	}
	sub, ok := t.subTemplates[id]
	return sub, ok
}

// FindTrack resolves the compiled track owned by sequence id.
func (t *Template) FindTrack(id hierarchy.SequenceID, trackID track.ID) (*track.EvaluationTrack, bool) {
	owner, ok := t.SubTemplate(id)
	if !ok {
		return nil, false
	}
	return owner.Ledger.FindTrack(trackID)
}

// FindSegment resolves the compiled segment a pointer refers to.
func (t *Template) FindSegment(ptr evaluation.SegmentPtr) (*track.EvaluationTrack, track.Segment, bool) {
	et, ok := t.FindTrack(ptr.SequenceID, ptr.TrackID)
	if !ok {
		return nil, track.Segment{}, false
	}
	seg, ok := et.Segment(ptr.SegmentIndex)
	return et, seg, ok
}

// SequenceName returns the sequence played by id.
func (t *Template) SequenceName(id hierarchy.SequenceID) string {
	if sub, ok := t.SubTemplate(id); ok {
		return sub.Name
	}
	return ""
}

// withoutStale returns a copy of t whose ledgers no longer retain evicted
// tracks or departed sub-sequences, or t itself when there is nothing to drop.
func (t *Template) withoutStale() (*Template, int) {
	dropped := len(t.staleSubs)
	lg := t.Ledger.Clone()
	dropped += lg.PurgeStale()

	subs := make(map[hierarchy.SequenceID]*Template, len(t.subTemplates))
	for id, sub := range t.subTemplates {
		if t.staleSubs[id] {
			continue
		}
		// Nested templates are already flattened into t.subTemplates, so
		// only their own ledgers need purging here.
		slg := sub.Ledger.Clone()
		if n := slg.PurgeStale(); n > 0 {
			dropped += n
			cp := *sub
			cp.Ledger = slg
			sub = &cp
		}
		subs[id] = sub
	}
	if dropped == 0 {
		return t, 0
	}

	c := *t
	c.Ledger = lg
	c.staleSubs = nil
	c.subTemplates = subs
	return &c, dropped
}
