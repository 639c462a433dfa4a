package player

import (
	"math"

	"github.com/vk/seqcore/internal/timerange"
)

// PlayPosition is the playback cursor. It turns successive target times
// into evaluation ranges that never evaluate the same instant twice.
type PlayPosition struct {
	current   float32
	evaluated bool
	// fresh means the next PlayTo includes current in its range.
	fresh         bool
	frameInterval float32

	bounded bool
	lo, hi  float32
}

// SetBounds limits snapped times to [lo, hi]. The bounds themselves are
// never snapped, so the cursor can always reach either edge of the range.
func (p *PlayPosition) SetBounds(lo, hi float32) {
	p.lo, p.hi, p.bounded = lo, hi, true
}

// SetFrameInterval enables snapping to multiples of step. Zero disables it.
func (p *PlayPosition) SetFrameInterval(step float32) {
	if step < 0 {
		step = 0
	}
	p.frameInterval = step
}

// FrameInterval returns the snapping step, zero when disabled.
func (p *PlayPosition) FrameInterval() float32 { return p.frameInterval }

// Current returns the cursor time.
func (p *PlayPosition) Current() float32 { return p.current }

// Reset moves the cursor to t without evaluating. The next PlayTo sweeps
// from t inclusive.
func (p *PlayPosition) Reset(t float32) {
	p.current = p.snap(t)
	p.evaluated = false
	p.fresh = true
}

// JumpTo moves the cursor discontinuously and returns a point evaluation.
func (p *PlayPosition) JumpTo(t float32) timerange.EvaluationRange {
	p.current = p.snap(t)
	p.evaluated = true
	p.fresh = false
	return timerange.PointEvaluation(p.current)
}

// PlayTo advances the cursor to t and returns the range swept since the
// last evaluated time. The range is empty when snapping leaves the cursor
// where it was.
func (p *PlayPosition) PlayTo(t float32) timerange.EvaluationRange {
	t = p.snap(t)
	from := p.current
	p.current = t
	switch {
	case p.fresh || !p.evaluated:
		p.fresh = false
		p.evaluated = true
		if t >= from {
			return timerange.EvaluationRange{Range: timerange.Closed(from, t), Direction: timerange.Forwards}
		}
		return timerange.EvaluationRange{Range: timerange.Closed(t, from), Direction: timerange.Backwards}
	default:
		return timerange.NewEvaluationRange(from, t)
	}
}

func (p *PlayPosition) snap(t float32) float32 {
	if p.frameInterval <= 0 {
		return t
	}
	if p.bounded && (t == p.lo || t == p.hi) {
		return t
	}
	s := float32(math.Round(float64(t/p.frameInterval))) * p.frameInterval
	if p.bounded {
		s = min(max(s, p.lo), p.hi)
	}
	return s
}
