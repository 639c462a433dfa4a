package player

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vk/seqcore/internal/timerange"
)

func TestPlayPosition(t *testing.T) {
	t.Run("first sweep includes the start", func(t *testing.T) {
		var p PlayPosition
		p.Reset(0)
		er := p.PlayTo(1)
		assert.True(t, er.Range.Equal(timerange.Closed(0, 1)))
		assert.Equal(t, timerange.Forwards, er.Direction)
	})

	t.Run("later sweeps exclude the previous time", func(t *testing.T) {
		var p PlayPosition
		p.Reset(0)
		p.PlayTo(1)
		er := p.PlayTo(2)
		assert.True(t, er.Range.Equal(timerange.OpenClosed(1, 2)))
		assert.False(t, er.Range.Contains(1))
	})

	t.Run("backwards sweep", func(t *testing.T) {
		var p PlayPosition
		p.Reset(5)
		p.PlayTo(5)
		er := p.PlayTo(3)
		assert.Equal(t, timerange.Backwards, er.Direction)
		assert.Equal(t, float32(3), er.Time())
		assert.False(t, er.Range.Contains(5))
	})

	t.Run("jump is a point and later sweeps start after it", func(t *testing.T) {
		var p PlayPosition
		p.Reset(0)
		er := p.JumpTo(7)
		assert.True(t, er.IsPoint())
		assert.Equal(t, float32(7), p.Current())
		next := p.PlayTo(8)
		assert.True(t, next.Range.Equal(timerange.OpenClosed(7, 8)))
	})

	t.Run("frame snapping", func(t *testing.T) {
		var p PlayPosition
		p.SetFrameInterval(0.5)
		p.Reset(0.1)
		assert.Equal(t, float32(0), p.Current())

		p.PlayTo(0)
		er := p.PlayTo(0.2)
		assert.True(t, er.Range.IsEmpty(), "a sweep that snaps onto the same frame evaluates nothing")

		er = p.PlayTo(0.8)
		assert.Equal(t, float32(1), er.Time())
	})

	t.Run("bounded snapping keeps the edges", func(t *testing.T) {
		var p PlayPosition
		p.SetFrameInterval(0.3)
		p.SetBounds(0, 10)
		p.Reset(0)

		p.PlayTo(9.99)
		assert.InDelta(t, 9.9, p.Current(), 1e-5)
		er := p.PlayTo(10)
		assert.Equal(t, float32(10), er.Time())

		p.Reset(0)
		p.PlayTo(10.1)
		assert.Equal(t, float32(10), p.Current(), "snapping never leaves the bounds")
	})
}
