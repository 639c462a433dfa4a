package timerange

// Direction is the playback direction of an evaluation.
type Direction int8

const (
	Forwards Direction = iota
	Backwards
)

func (d Direction) String() string {
	if d == Backwards {
		return "backwards"
	}
	return "forwards"
}

// EvaluationRange is the span of time swept by one evaluation, together with
// the direction it was swept in.
type EvaluationRange struct {
	Range     Range
	Direction Direction
}

// NewEvaluationRange returns the range swept when moving from previous to
// current. The previous time is excluded because it was already evaluated.
func NewEvaluationRange(previous, current float32) EvaluationRange {
	if current >= previous {
		return EvaluationRange{Range: OpenClosed(previous, current), Direction: Forwards}
	}
	return EvaluationRange{
		Range:     Range{Lower: InclusiveBound(current), Upper: ExclusiveBound(previous)},
		Direction: Backwards,
	}
}

// PointEvaluation returns an evaluation of the single time t.
func PointEvaluation(t float32) EvaluationRange {
	return EvaluationRange{Range: Point(t), Direction: Forwards}
}

// Time returns the current time of the evaluation: the leading edge in the
// direction of playback.
func (e EvaluationRange) Time() float32 {
	if e.Direction == Backwards {
		return e.Range.Lower.Value
	}
	return e.Range.Upper.Value
}

// PreviousTime returns the trailing edge of the evaluation.
func (e EvaluationRange) PreviousTime() float32 {
	if e.Direction == Backwards {
		return e.Range.Upper.Value
	}
	return e.Range.Lower.Value
}

// IsPoint reports whether the evaluation covers a single instant.
func (e EvaluationRange) IsPoint() bool {
	return e.Range.Lower.Kind == Inclusive && e.Range.Upper.Kind == Inclusive &&
		e.Range.Lower.Value == e.Range.Upper.Value
}
