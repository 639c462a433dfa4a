package config

import (
	"github.com/zclconf/go-cty/cty"
)

// Completion modes for sections.
const (
	CompletionRestore = "restore"
	CompletionKeep    = "keep"
)

// SubSequenceKind is the built-in track kind that nests other sequences.
const SubSequenceKind = "sub_sequence"

// Model is the unified, format-agnostic representation of every sequence
// and evaluation bucket loaded from configuration.
type Model struct {
	Buckets   map[string]*Bucket
	Sequences map[string]*Sequence
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Buckets:   make(map[string]*Bucket),
		Sequences: make(map[string]*Sequence),
	}
}

// Bucket is a named evaluation bucket. Higher priorities flush first.
type Bucket struct {
	Name     string
	Priority int
}

// Sequence is the format-agnostic representation of a `sequence` block.
type Sequence struct {
	Name               string
	PlaybackStart      float32
	PlaybackEnd        float32
	FixedFrameInterval float32
	Tracks             []*Track
	Bindings           []*Binding
	Source             string
}

// Binding is an object the sequence animates, either spawned by the
// sequence or possessed from the scene by name.
type Binding struct {
	Name       string
	Spawnable  bool
	Class      string
	Possess    string
	Properties cty.Value
	Tracks     []*Track
}

// Track is the format-agnostic representation of a `track` block.
type Track struct {
	Kind      string
	Name      string
	Bucket    string
	Priority  int
	Arguments map[string]cty.Value
	Sections  []*Section
}

// Section is one time-ranged part of a track. A nil Start or End leaves
// that side unbounded.
type Section struct {
	Start        *float32
	End          *float32
	InclusiveEnd bool
	PreRoll      float32
	PostRoll     float32
	Completion   string
	Arguments    map[string]cty.Value
	Keys         []*Key
	SubSequence  *SubSequence
}

// Key is a timed value inside a section.
type Key struct {
	Time  float32
	Value cty.Value
}

// SubSequence holds the parameters of a section on a sub_sequence track.
type SubSequence struct {
	Sequence    string
	StartOffset float32
	TimeScale   float32
	Bias        int
}
