// Package sequence is the runtime content model: sequences, their object
// bindings, tracks and sections. Every mutator re-signs the object it
// changes and the sequence that owns it, which is what invalidates compiled
// templates.
//
// Content objects are not safe for concurrent mutation. Compilation reads
// them, so edits must not overlap with a template regeneration.
package sequence

import (
	"github.com/vk/seqcore/internal/signature"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/zclconf/go-cty/cty"
)

// Sequence is a timeline of tracks, some of which animate bound objects.
type Sequence struct {
	signature.Signed

	Name               string
	PlaybackRange      timerange.Range
	FixedFrameInterval float32

	tracks   []*Track
	bindings []*Binding
}

// New returns an empty sequence playing over [start, end].
func New(name string, start, end float32) *Sequence {
	if end < start {
		end = start
	}
	return &Sequence{Name: name, PlaybackRange: timerange.Closed(start, end)}
}

// Tracks returns the tracks that are not attached to a binding.
func (s *Sequence) Tracks() []*Track { return s.tracks }

// Bindings returns the object bindings of the sequence.
func (s *Sequence) Bindings() []*Binding { return s.bindings }

// AddTrack attaches t to the sequence itself.
func (s *Sequence) AddTrack(t *Track) {
	t.owner = s
	s.tracks = append(s.tracks, t)
	s.MarkAsChanged()
}

// RemoveTrack detaches t and reports whether it was found, searching both
// master tracks and bindings.
func (s *Sequence) RemoveTrack(t *Track) bool {
	if removeTrack(&s.tracks, t) {
		s.MarkAsChanged()
		return true
	}
	for _, b := range s.bindings {
		if removeTrack(&b.tracks, t) {
			s.MarkAsChanged()
			return true
		}
	}
	return false
}

// AddBinding attaches b to the sequence.
func (s *Sequence) AddBinding(b *Binding) {
	b.owner = s
	for _, t := range b.tracks {
		t.owner = s
	}
	s.bindings = append(s.bindings, b)
	s.MarkAsChanged()
}

// FindBinding returns the binding with the given name.
func (s *Sequence) FindBinding(name string) (*Binding, bool) {
	for _, b := range s.bindings {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// SetPlaybackRange replaces the playback range, clamping end to start.
func (s *Sequence) SetPlaybackRange(start, end float32) {
	if end < start {
		end = start
	}
	s.PlaybackRange = timerange.Closed(start, end)
	s.MarkAsChanged()
}

// AllTracks visits every track with the binding that owns it, or nil for
// master tracks. Master tracks come first.
func (s *Sequence) AllTracks(visit func(b *Binding, t *Track)) {
	for _, t := range s.tracks {
		visit(nil, t)
	}
	for _, b := range s.bindings {
		for _, t := range b.tracks {
			visit(b, t)
		}
	}
}

// SubSequenceRefs returns the names of every sequence referenced by a
// sub-sequence section.
func (s *Sequence) SubSequenceRefs() []string {
	var refs []string
	s.AllTracks(func(_ *Binding, t *Track) {
		for _, sec := range t.sections {
			if sec.SubSequence != nil {
				refs = append(refs, sec.SubSequence.Sequence)
			}
		}
	})
	return refs
}

// Binding is an object animated by a sequence.
type Binding struct {
	Name       string
	Spawnable  bool
	Class      string
	Possess    string
	Properties cty.Value

	tracks []*Track
	owner  *Sequence
}

// ID returns the binding id, unique across all sequences.
func (b *Binding) ID() string {
	if b.owner == nil {
		return b.Name
	}
	return BindingID(b.owner.Name, b.Name)
}

// BindingID composes the id of binding name in sequence seq.
func BindingID(seq, name string) string {
	return seq + "." + name
}

// Tracks returns the tracks attached to the binding.
func (b *Binding) Tracks() []*Track { return b.tracks }

// AddTrack attaches t to the binding.
func (b *Binding) AddTrack(t *Track) {
	t.owner = b.owner
	t.binding = b
	b.tracks = append(b.tracks, t)
	if b.owner != nil {
		b.owner.MarkAsChanged()
	}
}

func removeTrack(list *[]*Track, t *Track) bool {
	for i, x := range *list {
		if x == t {
			*list = append((*list)[:i], (*list)[i+1:]...)
			t.owner = nil
			return true
		}
	}
	return false
}
