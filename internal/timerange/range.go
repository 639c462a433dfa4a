package timerange

import (
	"fmt"
	"math"
	"strings"
)

// BoundKind describes how a range bound treats its value.
type BoundKind uint8

const (
	// Open marks an unbounded side of a range.
	Open BoundKind = iota
	// Inclusive bounds contain their value.
	Inclusive
	// Exclusive bounds stop just short of their value.
	Exclusive
)

// Bound is one side of a Range.
type Bound struct {
	Kind  BoundKind
	Value float32
}

// InclusiveBound returns a bound that contains v.
func InclusiveBound(v float32) Bound { return Bound{Kind: Inclusive, Value: v} }

// ExclusiveBound returns a bound that excludes v.
func ExclusiveBound(v float32) Bound { return Bound{Kind: Exclusive, Value: v} }

// OpenBound returns an unbounded side.
func OpenBound() Bound { return Bound{Kind: Open} }

// IsOpen reports whether the bound is unbounded.
func (b Bound) IsOpen() bool { return b.Kind == Open }

// Range is a contiguous span of time.
type Range struct {
	Lower Bound
	Upper Bound
}

// Closed returns [lo, hi].
func Closed(lo, hi float32) Range {
	return Range{Lower: InclusiveBound(lo), Upper: InclusiveBound(hi)}
}

// ClosedOpen returns [lo, hi).
func ClosedOpen(lo, hi float32) Range {
	return Range{Lower: InclusiveBound(lo), Upper: ExclusiveBound(hi)}
}

// OpenClosed returns (lo, hi].
func OpenClosed(lo, hi float32) Range {
	return Range{Lower: ExclusiveBound(lo), Upper: InclusiveBound(hi)}
}

// Point returns the degenerate range [t, t].
func Point(t float32) Range { return Closed(t, t) }

// All returns the unbounded range.
func All() Range { return Range{Lower: OpenBound(), Upper: OpenBound()} }

// Empty returns a range that contains nothing.
func Empty() Range {
	return Range{Lower: ExclusiveBound(0), Upper: ExclusiveBound(0)}
}

// AtLeast returns [lo, +inf).
func AtLeast(lo float32) Range { return Range{Lower: InclusiveBound(lo), Upper: OpenBound()} }

// LessThan returns (-inf, hi).
func LessThan(hi float32) Range { return Range{Lower: OpenBound(), Upper: ExclusiveBound(hi)} }

// LowerCut returns the cut at which the range starts.
func (r Range) LowerCut() Cut {
	switch r.Lower.Kind {
	case Inclusive:
		return Cut{Value: r.Lower.Value}
	case Exclusive:
		return Cut{Value: r.Lower.Value, After: true}
	default:
		return NegativeInfinity()
	}
}

// UpperCut returns the cut at which the range ends.
func (r Range) UpperCut() Cut {
	switch r.Upper.Kind {
	case Inclusive:
		return Cut{Value: r.Upper.Value, After: true}
	case Exclusive:
		return Cut{Value: r.Upper.Value}
	default:
		return PositiveInfinity()
	}
}

// IsEmpty reports whether the range contains no points.
func (r Range) IsEmpty() bool {
	return r.LowerCut().Compare(r.UpperCut()) >= 0
}

// Contains reports whether t lies inside the range.
func (r Range) Contains(t float32) bool {
	return r.LowerCut().Compare(Cut{Value: t}) <= 0 &&
		Cut{Value: t, After: true}.Compare(r.UpperCut()) <= 0
}

// Overlaps reports whether the two ranges share at least one point.
func (r Range) Overlaps(o Range) bool {
	return !r.Intersect(o).IsEmpty()
}

// Intersect returns the points shared by both ranges.
func (r Range) Intersect(o Range) Range {
	lo := maxCut(r.LowerCut(), o.LowerCut())
	hi := minCut(r.UpperCut(), o.UpperCut())
	if lo.Compare(hi) >= 0 {
		return Empty()
	}
	return FromCuts(lo, hi)
}

// Hull returns the smallest range containing both ranges.
func (r Range) Hull(o Range) Range {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return FromCuts(minCut(r.LowerCut(), o.LowerCut()), maxCut(r.UpperCut(), o.UpperCut()))
}

// Size returns the distance between the bound values, or +Inf when either
// side is open.
func (r Range) Size() float32 {
	if r.Lower.IsOpen() || r.Upper.IsOpen() {
		return float32(math.Inf(1))
	}
	if r.IsEmpty() {
		return 0
	}
	return r.Upper.Value - r.Lower.Value
}

// Equal reports whether both ranges contain exactly the same points.
func (r Range) Equal(o Range) bool {
	if r.IsEmpty() && o.IsEmpty() {
		return true
	}
	return r.LowerCut() == o.LowerCut() && r.UpperCut() == o.UpperCut()
}

// String renders the range in interval notation, e.g. "[0, 10)".
func (r Range) String() string {
	if r.IsEmpty() {
		return "(empty)"
	}
	var sb strings.Builder
	switch r.Lower.Kind {
	case Inclusive:
		fmt.Fprintf(&sb, "[%g", r.Lower.Value)
	case Exclusive:
		fmt.Fprintf(&sb, "(%g", r.Lower.Value)
	default:
		sb.WriteString("(-inf")
	}
	sb.WriteString(", ")
	switch r.Upper.Kind {
	case Inclusive:
		fmt.Fprintf(&sb, "%g]", r.Upper.Value)
	case Exclusive:
		fmt.Fprintf(&sb, "%g)", r.Upper.Value)
	default:
		sb.WriteString("+inf)")
	}
	return sb.String()
}
