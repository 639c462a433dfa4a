// Package track defines the contract between the evaluation core and the
// track kinds that produce side effects.
//
// A track owns a list of time-ranged sections. At compile time it reports
// the ranges its sections cover; at evaluation time it is handed the compiled
// segment active for the current frame and returns execution tokens that are
// applied once every track of the frame has run.
package track

import (
	"context"

	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/segment"
	"github.com/vk/seqcore/internal/signature"
)

// ID identifies a compiled track inside one template.
type ID uint32

// Flags mark special-purpose section ranges.
type Flags uint8

const (
	// PreRoll ranges lead into a section, letting it prepare before it starts.
	PreRoll Flags = 1 << iota
	// PostRoll ranges trail a section, letting it finish after it ends.
	PostRoll
)

// Has reports whether every bit of o is set in f.
func (f Flags) Has(o Flags) bool { return f&o == o }

// SectionEval names one section active inside a segment.
type SectionEval struct {
	SectionIndex int
	Flags        Flags
}

// Segment is a compiled track segment.
type Segment = segment.Segment[SectionEval]

// EntityKey identifies one section of one track in one sequence instance.
// It is the unit that receives begin and end hooks.
type EntityKey struct {
	SequenceID   hierarchy.SequenceID
	TrackID      ID
	SectionIndex int
}

// Track is implemented by every track kind.
type Track interface {
	// GenerateSegments reports the ranges covered by the track's sections in
	// the owning sequence's local time.
	GenerateSegments() []SectionRange
	// Evaluate produces the tokens for the active segment.
	Evaluate(ctx context.Context, seg Segment, ec *Context) []ExecutionToken
	// OnBeginEvaluation is called once when a section becomes active.
	OnBeginEvaluation(ctx context.Context, sectionIndex int, ec *Context)
	// OnEndEvaluation is called once when a section stops being active.
	OnEndEvaluation(ctx context.Context, sectionIndex int, ec *Context)
}

// Initializer is implemented by tracks that need a setup pass before any
// track in the same flush is evaluated.
type Initializer interface {
	Initialize(ctx context.Context, seg Segment, ec *Context)
}

// EvaluationTrack is the compiled form of a track stored in a template
// ledger. It is immutable once compiled.
type EvaluationTrack struct {
	Signature signature.Signature
	Kind      string
	Name      string
	BindingID string
	Bucket    string
	Priority  int
	Segments  []Segment
	Impl      Track
}

// RequiresInit reports whether the implementation has a setup pass.
func (t *EvaluationTrack) RequiresInit() bool {
	_, ok := t.Impl.(Initializer)
	return ok
}

// Segment returns compiled segment i.
func (t *EvaluationTrack) Segment(i int) (Segment, bool) {
	if i < 0 || i >= len(t.Segments) {
		return Segment{}, false
	}
	return t.Segments[i], true
}

// Compile builds an evaluation track from an implementation.
func Compile(impl Track, sig signature.Signature, kind, name, bindingID, bucket string, priority int) *EvaluationTrack {
	return &EvaluationTrack{
		Signature: sig,
		Kind:      kind,
		Name:      name,
		BindingID: bindingID,
		Bucket:    bucket,
		Priority:  priority,
		Segments:  CompileSegments(impl.GenerateSegments()),
		Impl:      impl,
	}
}
