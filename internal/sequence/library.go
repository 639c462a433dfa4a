package sequence

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/zclconf/go-cty/cty"
)

// Library holds every loaded sequence by name.
type Library struct {
	mu        sync.RWMutex
	sequences map[string]*Sequence
	buckets   map[string]int
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{
		sequences: make(map[string]*Sequence),
		buckets:   make(map[string]int),
	}
}

// Add registers a sequence, replacing any sequence with the same name.
func (l *Library) Add(s *Sequence) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sequences[s.Name] = s
}

// Get returns the sequence named name.
func (l *Library) Get(name string) (*Sequence, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sequences[name]
	return s, ok
}

// Names returns every sequence name in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Sorted(maps.Keys(l.sequences))
}

// Buckets returns the declared bucket priorities.
func (l *Library) Buckets() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.buckets)
}

// FromConfig builds the runtime model for every sequence in m.
func FromConfig(m *config.Model) (*Library, error) {
	lib := NewLibrary()
	for name, b := range m.Buckets {
		lib.buckets[name] = b.Priority
	}
	for _, name := range slices.Sorted(maps.Keys(m.Sequences)) {
		seq, err := fromConfigSequence(m.Sequences[name])
		if err != nil {
			return nil, err
		}
		lib.sequences[name] = seq
	}
	return lib, nil
}

func fromConfigSequence(cs *config.Sequence) (*Sequence, error) {
	seq := New(cs.Name, cs.PlaybackStart, cs.PlaybackEnd)
	seq.FixedFrameInterval = cs.FixedFrameInterval

	for _, ct := range cs.Tracks {
		t, err := fromConfigTrack(ct)
		if err != nil {
			return nil, fmt.Errorf("sequence %q: %w", cs.Name, err)
		}
		seq.AddTrack(t)
	}
	for _, cb := range cs.Bindings {
		props := cb.Properties
		if props.IsNull() {
			props = cty.EmptyObjectVal
		}
		b := &Binding{
			Name:       cb.Name,
			Spawnable:  cb.Spawnable,
			Class:      cb.Class,
			Possess:    cb.Possess,
			Properties: props,
		}
		seq.AddBinding(b)
		for _, ct := range cb.Tracks {
			t, err := fromConfigTrack(ct)
			if err != nil {
				return nil, fmt.Errorf("sequence %q, binding %q: %w", cs.Name, cb.Name, err)
			}
			b.AddTrack(t)
		}
	}
	return seq, nil
}

func fromConfigTrack(ct *config.Track) (*Track, error) {
	t := NewTrack(ct.Kind, ct.Name)
	t.Bucket = ct.Bucket
	t.Priority = ct.Priority
	maps.Copy(t.arguments, ct.Arguments)

	for i, cs := range ct.Sections {
		if cs.Start != nil && cs.End != nil && *cs.End < *cs.Start {
			return nil, fmt.Errorf("track %q section %d: %w", ct.Name, i, config.ErrInvalidRange)
		}
		sec := &Section{
			Range:      sectionRange(cs),
			PreRoll:    cs.PreRoll,
			PostRoll:   cs.PostRoll,
			Completion: cs.Completion,
			Arguments:  maps.Clone(cs.Arguments),
		}
		for _, k := range cs.Keys {
			sec.Keys = append(sec.Keys, Key{Time: k.Time, Value: k.Value})
		}
		slices.SortStableFunc(sec.Keys, func(a, b Key) int {
			switch {
			case a.Time < b.Time:
				return -1
			case a.Time > b.Time:
				return 1
			}
			return 0
		})
		if cs.SubSequence != nil {
			sec.SubSequence = &SubSequence{
				Sequence:    cs.SubSequence.Sequence,
				StartOffset: cs.SubSequence.StartOffset,
				TimeScale:   cs.SubSequence.TimeScale,
				Bias:        cs.SubSequence.Bias,
			}
		}
		t.sections = append(t.sections, sec)
	}
	return t, nil
}

func sectionRange(cs *config.Section) timerange.Range {
	r := timerange.All()
	if cs.Start != nil {
		r.Lower = timerange.InclusiveBound(*cs.Start)
	}
	if cs.End != nil {
		if cs.InclusiveEnd {
			r.Upper = timerange.InclusiveBound(*cs.End)
		} else {
			r.Upper = timerange.ExclusiveBound(*cs.End)
		}
	}
	return r
}
