package hierarchy

import (
	"fmt"

	"github.com/vk/seqcore/internal/timerange"
)

// TimeTransform maps time from an outer space into an inner one:
// local = (t - Offset) * Scale. Scale is always positive.
type TimeTransform struct {
	Offset float32
	Scale  float32
}

// Identity returns the transform that leaves time unchanged.
func Identity() TimeTransform { return TimeTransform{Scale: 1} }

// SectionTransform returns the transform for a sub-sequence section that
// starts at sectionStart in the outer space and begins playing its content at
// startOffset, running scale times faster than its parent.
func SectionTransform(sectionStart, startOffset, scale float32) TimeTransform {
	return TimeTransform{Offset: sectionStart - startOffset/scale, Scale: scale}
}

// Apply maps an outer time into the inner space.
func (tt TimeTransform) Apply(t float32) float32 {
	return (t - tt.Offset) * tt.Scale
}

// Invert maps an inner time back into the outer space.
func (tt TimeTransform) Invert(local float32) float32 {
	return local/tt.Scale + tt.Offset
}

// Then returns the transform equivalent to applying tt followed by inner.
func (tt TimeTransform) Then(inner TimeTransform) TimeTransform {
	return TimeTransform{
		Offset: tt.Offset + inner.Offset/tt.Scale,
		Scale:  tt.Scale * inner.Scale,
	}
}

// ApplyRange maps both bounds of r into the inner space. Bound kinds are kept.
func (tt TimeTransform) ApplyRange(r timerange.Range) timerange.Range {
	return mapRange(r, tt.Apply)
}

// InvertRange maps both bounds of r back into the outer space.
func (tt TimeTransform) InvertRange(r timerange.Range) timerange.Range {
	return mapRange(r, tt.Invert)
}

// ApplyEvaluation maps an evaluation range into the inner space.
func (tt TimeTransform) ApplyEvaluation(er timerange.EvaluationRange) timerange.EvaluationRange {
	return timerange.EvaluationRange{Range: tt.ApplyRange(er.Range), Direction: er.Direction}
}

func (tt TimeTransform) String() string {
	return fmt.Sprintf("(t - %g) * %g", tt.Offset, tt.Scale)
}

func mapRange(r timerange.Range, f func(float32) float32) timerange.Range {
	if !r.Lower.IsOpen() {
		r.Lower.Value = f(r.Lower.Value)
	}
	if !r.Upper.IsOpen() {
		r.Upper.Value = f(r.Upper.Value)
	}
	return r
}
