package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/timerange"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a"]
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.id)
	assert.NotNil(t, nodeA.deps)
	assert.NotNil(t, nodeA.dependents)

	g.AddNode("a") // Test idempotency
	assert.Len(t, g.nodes, 1)

	g.AddNode("b")
	assert.Len(t, g.nodes, 2)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorIs(t, err, ErrCycle)

		_, err = g.Dependencies("dne")
		assert.Error(t, err)
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.NoError(t, New().DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // Transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		require.NoError(t, g.AddEdge("d", "a"))
		err := g.DetectCycles()
		assert.ErrorIs(t, err, ErrCycle)
		assert.ErrorContains(t, err, "a -> d -> c -> b -> a")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))

		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y"))

		assert.ErrorIs(t, g.DetectCycles(), ErrCycle)
	})
}

func playing(name string, refs ...string) *sequence.Sequence {
	seq := sequence.New(name, 0, 10)
	tr := sequence.NewTrack(config.SubSequenceKind, "subs")
	for _, ref := range refs {
		tr.AddSection(&sequence.Section{
			Range:       timerange.ClosedOpen(0, 10),
			SubSequence: &sequence.SubSequence{Sequence: ref, TimeScale: 1},
		})
	}
	seq.AddTrack(tr)
	return seq
}

func TestFromLibrary(t *testing.T) {
	t.Run("nested sequences order leaves first", func(t *testing.T) {
		lib := sequence.NewLibrary()
		lib.Add(playing("root", "shot", "fx"))
		lib.Add(playing("shot", "fx"))
		lib.Add(playing("fx"))

		g, err := FromLibrary(lib)
		require.NoError(t, err)
		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"fx", "shot", "root"}, order)
	})

	t.Run("recursive sequences are rejected", func(t *testing.T) {
		lib := sequence.NewLibrary()
		lib.Add(playing("a", "b"))
		lib.Add(playing("b", "a"))

		_, err := FromLibrary(lib)
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("self reference is rejected", func(t *testing.T) {
		lib := sequence.NewLibrary()
		lib.Add(playing("a", "a"))

		_, err := FromLibrary(lib)
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("unknown reference", func(t *testing.T) {
		lib := sequence.NewLibrary()
		lib.Add(playing("a", "ghost"))

		_, err := FromLibrary(lib)
		assert.ErrorContains(t, err, "unknown sequence")
	})
}
