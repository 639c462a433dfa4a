package instance_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/instance"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/template"
	"github.com/vk/seqcore/internal/testutil"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/vk/seqcore/internal/track"
)

type fixture struct {
	rec    *testutil.Recorder
	player *testutil.FakePlayer
	store  *template.Store
	lib    *sequence.Library
	module *testutil.RecordingModule
}

func newFixture(seqs ...*sequence.Sequence) *fixture {
	rec := &testutil.Recorder{}
	mod := &testutil.RecordingModule{Kind: "rec", Rec: rec}
	reg := registry.New()
	mod.Register(reg)

	lib := sequence.NewLibrary()
	for _, s := range seqs {
		lib.Add(s)
	}
	return &fixture{
		rec:    rec,
		player: testutil.NewFakePlayer(rec),
		store:  template.NewStore(lib, template.NewGenerator(reg), template.Params{KeepStaleTracks: true}),
		lib:    lib,
		module: mod,
	}
}

func (f *fixture) instance(t *testing.T, root string, opts instance.Options) *instance.Instance {
	t.Helper()
	in := instance.New(f.store, f.player, opts)
	require.NoError(t, in.Initialize(testutil.Context(), root))
	return in
}

func recTrack(name string, priority int, ranges ...timerange.Range) *sequence.Track {
	t := sequence.NewTrack("rec", name)
	t.Priority = priority
	for _, r := range ranges {
		t.AddSection(&sequence.Section{Range: r})
	}
	return t
}

func subTrack(sub string, r timerange.Range, scale float32) *sequence.Track {
	t := sequence.NewTrack(config.SubSequenceKind, "subs")
	t.AddSection(&sequence.Section{
		Range:       r,
		SubSequence: &sequence.SubSequence{Sequence: sub, TimeScale: scale},
	})
	return t
}

func step(prev, cur float32) instance.Frame {
	return instance.Frame{Range: timerange.NewEvaluationRange(prev, cur), Status: track.Playing}
}

func jump(t float32) instance.Frame {
	return instance.Frame{Range: timerange.PointEvaluation(t), Status: track.Jumping, HasJumped: true}
}

func TestEvaluate_BeginEndDiff(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	seq.AddTrack(recTrack("a", 0, timerange.ClosedOpen(0, 5)))
	seq.AddTrack(recTrack("b", 0, timerange.ClosedOpen(3, 8)))
	f := newFixture(seq)
	in := f.instance(t, "s", instance.Options{})
	ctx := testutil.Context()

	require.NoError(t, in.Evaluate(ctx, jump(1)))
	assert.Equal(t, []string{"begin a#0", "eval a@1", "apply a"}, f.rec.Take())

	require.NoError(t, in.Evaluate(ctx, step(1, 4)))
	assert.Equal(t, []string{"begin b#0", "eval a@4", "eval b@4", "apply a", "apply b"}, f.rec.Take())
	assert.Len(t, in.ActiveEntities(), 2)

	require.NoError(t, in.Evaluate(ctx, step(4, 6)))
	assert.Equal(t, []string{"end a#0", "eval b@6", "apply b"}, f.rec.Take())

	require.NoError(t, in.Evaluate(ctx, step(6, 9)))
	assert.Equal(t, []string{"eval b@9", "apply b"}, f.rec.Take(), "the last swept segment keeps evaluating")

	require.NoError(t, in.Evaluate(ctx, jump(9)))
	assert.Equal(t, []string{"end b#0"}, f.rec.Take())
	assert.Empty(t, in.ActiveEntities())

	require.NoError(t, in.Finish(ctx))
	assert.Equal(t, []string{"expire root"}, f.rec.Take())
	assert.Equal(t, instance.Finished, in.State())
}

func TestEvaluate_DiffFiresEachHookOnce(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	seq.AddTrack(recTrack("a", 0, timerange.ClosedOpen(0, 5), timerange.ClosedOpen(6, 9)))
	seq.AddTrack(recTrack("b", 0, timerange.Closed(2, 7)))
	f := newFixture(seq)
	in := f.instance(t, "s", instance.Options{})
	ctx := testutil.Context()

	for _, tm := range []float32{0, 1, 2.5, 4, 5.5, 6.5, 8, 3, 1, 9.5} {
		require.NoError(t, in.Evaluate(ctx, jump(tm)))
	}
	require.NoError(t, in.Finish(ctx))

	for _, key := range []string{"a#0", "a#1", "b#0"} {
		assert.Equal(t, f.rec.Count("begin "+key), f.rec.Count("end "+key), key)
	}
	// a#0 is entered at 0, left at 5.5, entered again at 3, left at 9.5.
	assert.Equal(t, 2, f.rec.Count("begin a#0"))
	assert.Equal(t, 1, f.rec.Count("begin a#1"))
	// b#0 is active from 2.5 through 6.5 and again at 3.
	assert.Equal(t, 2, f.rec.Count("begin b#0"))
}

func TestEvaluate_SubSequenceLocalTime(t *testing.T) {
	shot := sequence.New("shot", 0, 20)
	shot.AddTrack(recTrack("p", 0, timerange.ClosedOpen(0, 20)))
	root := sequence.New("root", 0, 30)
	root.AddTrack(subTrack("shot", timerange.ClosedOpen(5, 15), 2))
	root.AddTrack(recTrack("r", 0, timerange.ClosedOpen(0, 30)))

	f := newFixture(root, shot)
	in := f.instance(t, "root", instance.Options{})
	ctx := testutil.Context()

	require.NoError(t, in.Evaluate(ctx, jump(7)))
	events := f.rec.Take()
	assert.Contains(t, events, "eval p@4")
	assert.Contains(t, events, "eval r@7")

	subID := in.Template().Hierarchy.Children(hierarchy.Root)[0]
	assert.Equal(t, []hierarchy.SequenceID{subID}, in.ActiveSequences())

	in.SetRootOverride(subID)
	require.NoError(t, in.Evaluate(ctx, jump(4)))
	events = f.rec.Take()
	assert.Contains(t, events, "eval p@4")
	assert.NotContains(t, events, "eval r@7")
	assert.Contains(t, events, "end r#0", "entities outside the override end")
}

func TestEvaluate_SequenceExpiry(t *testing.T) {
	shot := sequence.New("shot", 0, 10)
	shot.AddTrack(recTrack("p", 0, timerange.ClosedOpen(0, 10)))
	root := sequence.New("root", 0, 30)
	root.AddTrack(subTrack("shot", timerange.ClosedOpen(0, 5), 1))

	f := newFixture(root, shot)
	in := f.instance(t, "root", instance.Options{})
	ctx := testutil.Context()

	require.NoError(t, in.Evaluate(ctx, jump(2)))
	subID := in.Template().Hierarchy.Children(hierarchy.Root)[0]
	f.rec.Take()

	require.NoError(t, in.Evaluate(ctx, jump(7)))
	assert.Equal(t, []string{"end p#0", fmt.Sprintf("expire %s", subID)}, f.rec.Take())
}

func TestEvaluate_ParallelWorkersKeepTokenOrder(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	for i := 1; i <= 6; i++ {
		seq.AddTrack(recTrack(fmt.Sprintf("t%d", i), i, timerange.ClosedOpen(0, 10)))
	}
	f := newFixture(seq)
	in := f.instance(t, "s", instance.Options{Workers: 4})

	require.NoError(t, in.Evaluate(testutil.Context(), jump(1)))
	var applied []string
	for _, e := range f.rec.Events() {
		if strings.HasPrefix(e, "apply ") {
			applied = append(applied, e)
		}
	}
	assert.Equal(t, []string{"apply t6", "apply t5", "apply t4", "apply t3", "apply t2", "apply t1"}, applied)
}

func TestEvaluate_InitPass(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	seq.AddTrack(recTrack("a", 0, timerange.ClosedOpen(0, 10)))
	f := newFixture(seq)
	f.module.Init = true
	in := f.instance(t, "s", instance.Options{})

	require.NoError(t, in.Evaluate(testutil.Context(), jump(1)))
	assert.Equal(t, []string{"begin a#0", "init a", "eval a@1", "apply a"}, f.rec.Take())
}

func TestEvaluate_Reentrancy(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	seq.AddTrack(recTrack("a", 0, timerange.ClosedOpen(0, 10)))
	f := newFixture(seq)
	in := f.instance(t, "s", instance.Options{})

	f.module.OnEvaluate = func(ctx context.Context, _ string, _ *track.Context) {
		_ = in.Evaluate(ctx, jump(2))
	}
	assert.PanicsWithValue(t, "instance: re-entrant Evaluate", func() {
		_ = in.Evaluate(testutil.Context(), jump(1))
	})
	assert.Equal(t, instance.Initialized, in.State())

	f.module.OnEvaluate = nil
	assert.NoError(t, in.Evaluate(testutil.Context(), jump(1)))
}

func TestEvaluate_NotInitialized(t *testing.T) {
	f := newFixture(sequence.New("s", 0, 1))
	in := instance.New(f.store, f.player, instance.Options{})
	assert.ErrorIs(t, in.Evaluate(testutil.Context(), jump(0)), instance.ErrNotInitialized)
	assert.ErrorIs(t, in.Finish(testutil.Context()), instance.ErrNotInitialized)
	assert.Error(t, in.Initialize(testutil.Context(), "missing"))
	assert.Equal(t, instance.Uninitialized, in.State())
}

func TestEvaluate_RemovedTrackStillEnds(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	a := recTrack("a", 0, timerange.ClosedOpen(0, 10))
	seq.AddTrack(a)
	f := newFixture(seq)
	in := f.instance(t, "s", instance.Options{})
	ctx := testutil.Context()

	require.NoError(t, in.Evaluate(ctx, jump(1)))
	f.rec.Take()

	require.True(t, seq.RemoveTrack(a))
	require.NoError(t, in.Evaluate(ctx, step(1, 2)))
	assert.Equal(t, []string{"end a#0"}, f.rec.Take())
	assert.Equal(t, 1, f.store.PurgeStaleTracks(ctx))
}
