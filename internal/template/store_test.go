package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/timerange"
)

func playing(name string, refs ...string) *sequence.Sequence {
	seq := sequence.New(name, 0, 10)
	seq.AddTrack(newTrack("print", name+"-p", "", 0, timerange.ClosedOpen(0, 10)))
	if len(refs) > 0 {
		subs := sequence.NewTrack(config.SubSequenceKind, "subs")
		for _, ref := range refs {
			subs.AddSection(&sequence.Section{
				Range:       timerange.ClosedOpen(0, 10),
				SubSequence: &sequence.SubSequence{Sequence: ref, TimeScale: 1},
			})
		}
		seq.AddTrack(subs)
	}
	return seq
}

func newStore(params Params, seqs ...*sequence.Sequence) (*Store, *fakeRegistry) {
	lib := sequence.NewLibrary()
	for _, s := range seqs {
		lib.Add(s)
	}
	reg := &fakeRegistry{}
	return NewStore(lib, NewGenerator(reg), params), reg
}

func TestStore_GetCompiledCaches(t *testing.T) {
	root := playing("root", "shot")
	shot := playing("shot")
	store, reg := newStore(Params{}, root, shot)
	ctx := testContext()

	assert.True(t, store.IsStale("root"))
	first, err := store.GetCompiled(ctx, "root")
	require.NoError(t, err)
	assert.False(t, store.IsStale("root"))
	assert.False(t, store.IsStale("shot"), "sub-sequence compiled on the way")
	assert.Equal(t, 2, reg.built)

	again, err := store.GetCompiled(ctx, "root")
	require.NoError(t, err)
	assert.Same(t, first, again)

	shot.Tracks()[0].SetPriority(3)
	assert.True(t, store.IsStale("root"))
	assert.True(t, store.IsStale("shot"))

	second, err := store.GetCompiled(ctx, "root")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 3, reg.built, "root track reused")

	_, still := first.SubTemplate(first.Hierarchy.Children(hierarchy.Root)[0])
	assert.True(t, still, "readers of the old template keep a consistent view")
}

func TestStore_Errors(t *testing.T) {
	ctx := testContext()

	store, _ := newStore(Params{}, playing("a", "b"), playing("b", "a"))
	_, err := store.GetCompiled(ctx, "a")
	assert.ErrorIs(t, err, ErrRecursiveSequence)

	store, _ = newStore(Params{}, playing("a", "ghost"))
	_, err = store.GetCompiled(ctx, "a")
	assert.ErrorIs(t, err, ErrSequenceNotFound)

	_, err = store.GetCompiled(ctx, "nope")
	assert.ErrorIs(t, err, ErrSequenceNotFound)
}

func TestStore_InvalidateAndReset(t *testing.T) {
	store, reg := newStore(Params{}, playing("s"))
	ctx := testContext()

	first, err := store.GetCompiled(ctx, "s")
	require.NoError(t, err)

	store.Invalidate("s")
	assert.True(t, store.IsStale("s"))
	second, err := store.GetCompiled(ctx, "s")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, reg.built, "invalidation keeps the ledger")

	store.Reset()
	_, ok := store.Load("s")
	assert.False(t, ok)
	_, err = store.GetCompiled(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.built)
}

func TestStore_PurgeStaleTracks(t *testing.T) {
	seq := playing("s")
	store, _ := newStore(Params{KeepStaleTracks: true}, seq)
	ctx := testContext()

	_, err := store.GetCompiled(ctx, "s")
	require.NoError(t, err)
	old := seq.Tracks()[0]
	oldID := func() int {
		tpl, _ := store.Load("s")
		return int(tpl.Ledger.IDs()[0])
	}()
	require.True(t, seq.RemoveTrack(old))

	tpl, err := store.GetCompiled(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 0, tpl.Ledger.Len())
	assert.Equal(t, 1, oldID)
	_, ok := tpl.FindTrack(hierarchy.Root, 1)
	assert.True(t, ok, "retained until purged")

	assert.Equal(t, 1, store.PurgeStaleTracks(ctx))
	assert.Equal(t, 0, store.PurgeStaleTracks(ctx))

	purged, _ := store.Load("s")
	_, ok = purged.FindTrack(hierarchy.Root, 1)
	assert.False(t, ok)
	assert.False(t, store.IsStale("s"))
}
