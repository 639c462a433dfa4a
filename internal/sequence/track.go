package sequence

import (
	"maps"
	"slices"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/signature"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/zclconf/go-cty/cty"
)

// Track is a named channel of a given kind, split into sections.
type Track struct {
	signature.Signed

	Kind     string
	Name     string
	Bucket   string
	Priority int

	arguments map[string]cty.Value
	sections  []*Section
	owner     *Sequence
	binding   *Binding
}

// NewTrack returns an empty track.
func NewTrack(kind, name string) *Track {
	return &Track{Kind: kind, Name: name, arguments: map[string]cty.Value{}}
}

// Sections returns the track's sections.
func (t *Track) Sections() []*Section { return t.sections }

// Arguments returns the track-level arguments.
func (t *Track) Arguments() map[string]cty.Value { return t.arguments }

// Binding returns the binding the track animates, or nil for master tracks.
func (t *Track) Binding() *Binding { return t.binding }

// BindingID returns the id of the animated binding, or "".
func (t *Track) BindingID() string {
	if t.binding == nil {
		return ""
	}
	return t.binding.ID()
}

// IsSubSequence reports whether the track nests other sequences.
func (t *Track) IsSubSequence() bool { return t.Kind == config.SubSequenceKind }

// AddSection appends a section.
func (t *Track) AddSection(s *Section) {
	t.sections = append(t.sections, s)
	t.changed()
}

// SetSection replaces section i.
func (t *Track) SetSection(i int, s *Section) {
	t.sections[i] = s
	t.changed()
}

// RemoveSection deletes section i.
func (t *Track) RemoveSection(i int) {
	t.sections = slices.Delete(t.sections, i, i+1)
	t.changed()
}

// SetArgument sets one track-level argument.
func (t *Track) SetArgument(name string, v cty.Value) {
	t.arguments[name] = v
	t.changed()
}

// SetPriority changes the evaluation priority.
func (t *Track) SetPriority(p int) {
	t.Priority = p
	t.changed()
}

// SetBucket moves the track to another evaluation bucket.
func (t *Track) SetBucket(b string) {
	t.Bucket = b
	t.changed()
}

func (t *Track) changed() {
	t.MarkAsChanged()
	if t.owner != nil {
		t.owner.MarkAsChanged()
	}
}

// Definition is an immutable copy of a track's content handed to track
// factories at compile time.
type Definition struct {
	Kind      string
	Name      string
	BindingID string
	Arguments map[string]cty.Value
	Sections  []Section
}

// Definition snapshots the track.
func (t *Track) Definition() Definition {
	d := Definition{
		Kind:      t.Kind,
		Name:      t.Name,
		BindingID: t.BindingID(),
		Arguments: maps.Clone(t.arguments),
		Sections:  make([]Section, len(t.sections)),
	}
	for i, s := range t.sections {
		d.Sections[i] = s.clone()
	}
	return d
}

// Section is one time-ranged part of a track.
type Section struct {
	Range      timerange.Range
	PreRoll    float32
	PostRoll   float32
	Completion string
	Arguments  map[string]cty.Value
	Keys       []Key
	// SubSequence is set on sub_sequence tracks only.
	SubSequence *SubSequence
}

// RestoresState reports whether values written by the section are put back
// when it ends.
func (s *Section) RestoresState() bool {
	return s.Completion != config.CompletionKeep
}

func (s *Section) clone() Section {
	c := *s
	c.Arguments = maps.Clone(s.Arguments)
	c.Keys = slices.Clone(s.Keys)
	if s.SubSequence != nil {
		sub := *s.SubSequence
		c.SubSequence = &sub
	}
	return c
}

// Key is a timed value.
type Key struct {
	Time  float32
	Value cty.Value
}

// SubSequence describes how a sub_sequence section plays another sequence.
type SubSequence struct {
	Sequence    string
	StartOffset float32
	TimeScale   float32
	Bias        int
}
