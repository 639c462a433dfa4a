package timerange

// Cut is a position between points on the time line. A cut sits either just
// before Value (After == false) or just after it (After == true). Inf is -1
// or +1 for the cuts at either end of time, in which case Value and After are
// zero.
type Cut struct {
	Value float32
	After bool
	Inf   int8
}

// NegativeInfinity is the cut before every finite time.
func NegativeInfinity() Cut { return Cut{Inf: -1} }

// PositiveInfinity is the cut after every finite time.
func PositiveInfinity() Cut { return Cut{Inf: 1} }

// IsInfinite reports whether the cut is at either end of time.
func (c Cut) IsInfinite() bool { return c.Inf != 0 }

// Compare returns -1, 0 or +1 depending on whether c sits before, on or after o.
func (c Cut) Compare(o Cut) int {
	if c.Inf != o.Inf {
		// Both infinities differ, or exactly one side is infinite.
		if c.Inf < o.Inf {
			return -1
		}
		return 1
	}
	if c.Inf != 0 {
		return 0
	}
	switch {
	case c.Value < o.Value:
		return -1
	case c.Value > o.Value:
		return 1
	case c.After == o.After:
		return 0
	case o.After:
		return -1
	default:
		return 1
	}
}

// FromCuts builds the range spanning [lo, hi) in cut space.
func FromCuts(lo, hi Cut) Range {
	var r Range
	switch {
	case lo.Inf != 0:
		r.Lower = OpenBound()
	case lo.After:
		r.Lower = ExclusiveBound(lo.Value)
	default:
		r.Lower = InclusiveBound(lo.Value)
	}
	switch {
	case hi.Inf != 0:
		r.Upper = OpenBound()
	case hi.After:
		r.Upper = InclusiveBound(hi.Value)
	default:
		r.Upper = ExclusiveBound(hi.Value)
	}
	return r
}

func minCut(a, b Cut) Cut {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

func maxCut(a, b Cut) Cut {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}
