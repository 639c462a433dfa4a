package hierarchy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/timerange"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTimeTransform_OffsetAndScale(t *testing.T) {
	tt := TimeTransform{Offset: 5, Scale: 2}
	assert.Equal(t, float32(4), tt.Apply(7))
	assert.Equal(t, float32(7), tt.Invert(4))
}

func TestTimeTransform_SectionTransform(t *testing.T) {
	// A section starting at 10 that plays its content from 3 at double speed.
	tt := SectionTransform(10, 3, 2)
	assert.Equal(t, float32(3), tt.Apply(10))
	assert.Equal(t, float32(5), tt.Apply(11))
}

func TestTimeTransform_Then(t *testing.T) {
	outer := TimeTransform{Offset: 5, Scale: 2}
	inner := TimeTransform{Offset: 1, Scale: 3}
	combined := outer.Then(inner)

	for _, v := range []float32{-3, 0, 5, 7, 12.5} {
		assert.InDelta(t, inner.Apply(outer.Apply(v)), combined.Apply(v), 1e-4)
	}
}

func TestTimeTransform_Ranges(t *testing.T) {
	tt := TimeTransform{Offset: 5, Scale: 2}
	r := tt.ApplyRange(timerange.ClosedOpen(5, 10))
	assert.Equal(t, "[0, 10)", r.String())
	assert.Equal(t, "[5, 10)", tt.InvertRange(r).String())
	assert.True(t, tt.ApplyRange(timerange.All()).Equal(timerange.All()))
}

func TestSequenceID_Deterministic(t *testing.T) {
	a := NewSubSequenceID("shots/0")
	b := NewSubSequenceID("shots/0")
	c := NewSubSequenceID("shots/1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, Root, a)

	assert.Equal(t, a, a.Accumulate(Root))
	assert.Equal(t, a.Accumulate(c), a.Accumulate(c))
	assert.NotEqual(t, a, a.Accumulate(c))
}

func TestHierarchy_AddResolvesCollisions(t *testing.T) {
	ctx := testContext()
	h := New()
	id := NewSubSequenceID("x")

	first := h.Add(ctx, SubSequenceData{SequenceKey: "a", DeterministicKey: "x"}, id, Root)
	second := h.Add(ctx, SubSequenceData{SequenceKey: "b", DeterministicKey: "x"}, id, Root)

	assert.Equal(t, id, first)
	assert.NotEqual(t, first, second)
	assert.Equal(t, id.Perturb(1), second, "perturbation must be deterministic")
	assert.ElementsMatch(t, []SequenceID{first, second}, h.Children(Root))
	assert.Equal(t, 2, h.Len())
}

func TestHierarchy_Merge(t *testing.T) {
	ctx := testContext()

	child := New()
	grandID := NewSubSequenceID("inner/0")
	child.Add(ctx, SubSequenceData{
		SequenceKey:      "inner",
		Transform:        TimeTransform{Offset: 1, Scale: 1},
		ValidPlayRange:   timerange.ClosedOpen(1, 3),
		HierarchicalBias: 1,
	}, grandID, Root)

	root := New()
	parentTransform := TimeTransform{Offset: 5, Scale: 2}
	parentID := root.Add(ctx, SubSequenceData{
		SequenceKey:      "child",
		Transform:        parentTransform,
		ValidPlayRange:   timerange.ClosedOpen(5, 10),
		HierarchicalBias: 10,
	}, NewSubSequenceID("child/0"), Root)

	remap := root.Merge(ctx, child, parentID, parentTransform, 10, timerange.ClosedOpen(5, 10))

	merged, ok := root.Find(remap[grandID])
	require.True(t, ok)
	assert.Equal(t, grandID.Accumulate(parentID), remap[grandID])
	assert.Equal(t, 11, merged.HierarchicalBias)
	// root 7 -> child 4 -> grandchild 3
	assert.InDelta(t, 3, merged.Transform.Apply(7), 1e-5)
	assert.Equal(t, "[5.5, 6.5)", merged.ValidPlayRange.String())
	assert.Equal(t, []SequenceID{remap[grandID]}, root.Children(parentID))

	clone := root.Clone()
	assert.Equal(t, root.IDs(), clone.IDs())
}
