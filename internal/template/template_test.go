package template

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/evaluation"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/vk/seqcore/internal/track"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeTrack struct {
	bounds []track.SectionBounds
}

func (f *fakeTrack) GenerateSegments() []track.SectionRange { return track.DefaultSegments(f.bounds) }
func (f *fakeTrack) Evaluate(context.Context, track.Segment, *track.Context) []track.ExecutionToken {
	return nil
}
func (f *fakeTrack) OnBeginEvaluation(context.Context, int, *track.Context) {}
func (f *fakeTrack) OnEndEvaluation(context.Context, int, *track.Context)   {}

type initTrack struct{ fakeTrack }

func (i *initTrack) Initialize(context.Context, track.Segment, *track.Context) {}

type fakeRegistry struct {
	buckets map[string]int
	built   int
}

func (r *fakeRegistry) NewTrack(_ context.Context, def sequence.Definition) (track.Track, error) {
	r.built++
	ft := fakeTrack{}
	for _, s := range def.Sections {
		ft.bounds = append(ft.bounds, track.SectionBounds{Range: s.Range, PreRoll: s.PreRoll, PostRoll: s.PostRoll})
	}
	if def.Kind == "init" {
		return &initTrack{ft}, nil
	}
	return &ft, nil
}

func (r *fakeRegistry) BucketFor(_, bucket string) string {
	if bucket == "" {
		return "default"
	}
	return bucket
}

func (r *fakeRegistry) BucketPriority(name string) (int, bool) {
	p, ok := r.buckets[name]
	return p, ok
}

func newTrack(kind, name, bucket string, priority int, ranges ...timerange.Range) *sequence.Track {
	t := sequence.NewTrack(kind, name)
	t.Bucket = bucket
	t.Priority = priority
	for _, r := range ranges {
		t.AddSection(&sequence.Section{Range: r})
	}
	return t
}

func noResolve(_ context.Context, name string) (*Template, error) {
	return nil, ErrSequenceNotFound
}

func trackNames(t *testing.T, tpl *Template, ptrs []evaluation.SegmentPtr) []string {
	t.Helper()
	var names []string
	for _, p := range ptrs {
		et, ok := tpl.FindTrack(p.SequenceID, p.TrackID)
		require.True(t, ok)
		names = append(names, et.Name)
	}
	return names
}

func TestGenerate_Segments(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	seq.AddTrack(newTrack("print", "a", "", 0, timerange.ClosedOpen(0, 6)))
	seq.AddTrack(newTrack("print", "b", "", 0, timerange.ClosedOpen(4, 10)))

	tpl, err := NewGenerator(&fakeRegistry{}).Generate(testContext(), seq, Params{}, nil, noResolve)
	require.NoError(t, err)
	require.NoError(t, tpl.Field.Validate())

	require.Equal(t, 3, tpl.Field.Len())
	assert.True(t, tpl.Field.Ranges[0].Equal(timerange.ClosedOpen(0, 4)))
	assert.True(t, tpl.Field.Ranges[1].Equal(timerange.ClosedOpen(4, 6)))
	assert.True(t, tpl.Field.Ranges[2].Equal(timerange.ClosedOpen(6, 10)))

	assert.Equal(t, []string{"a"}, trackNames(t, tpl, tpl.Field.Groups[0].Ptrs))
	assert.Equal(t, []string{"a", "b"}, trackNames(t, tpl, tpl.Field.Groups[1].Ptrs))
	assert.Len(t, tpl.Field.Meta[1].ActiveEntities, 2)
	assert.Empty(t, tpl.Field.Meta[1].ActiveSequences)
	assert.False(t, tpl.IsStale(Params{}))
	assert.True(t, tpl.IsStale(Params{KeepStaleTracks: true}))
}

func TestGenerate_PriorityOrdering(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	seq.AddTrack(newTrack("print", "A", "spawn", 100, timerange.ClosedOpen(0, 10)))
	seq.AddTrack(newTrack("print", "B", "anim", 50, timerange.ClosedOpen(0, 10)))
	seq.AddTrack(newTrack("print", "C", "spawn", 10, timerange.ClosedOpen(0, 10)))

	reg := &fakeRegistry{buckets: map[string]int{"spawn": 1000, "anim": 500}}
	tpl, err := NewGenerator(reg).Generate(testContext(), seq, Params{}, nil, noResolve)
	require.NoError(t, err)
	require.Equal(t, 1, tpl.Field.Len())

	flushes := tpl.Field.Groups[0].Flushes()
	require.Len(t, flushes, 2)
	assert.Equal(t, "spawn", flushes[0].Bucket)
	assert.Equal(t, []string{"A", "C"}, trackNames(t, tpl, flushes[0].Eval))
	assert.Equal(t, "anim", flushes[1].Bucket)
	assert.Equal(t, []string{"B"}, trackNames(t, tpl, flushes[1].Eval))
}

func TestBuildGroup(t *testing.T) {
	ptr := func(id track.ID) evaluation.SegmentPtr { return evaluation.SegmentPtr{TrackID: id} }
	items := []groupItem{
		{ptr: ptr(1), bucket: "b", bucketPriority: 5, priority: 1},
		{ptr: ptr(2), bucket: "a", bucketPriority: 5, priority: 1, requiresInit: true},
		{ptr: ptr(3), bucket: "a", bucketPriority: 5, priority: 1, bias: -1},
		{ptr: ptr(4), bucket: "z", bucketPriority: 9, priority: 0, sections: []track.SectionEval{{SectionIndex: 2}}},
	}

	group, keys := buildGroup(items)
	flushes := group.Flushes()
	require.Len(t, flushes, 3, "equal bucket priorities still flush separately")

	assert.Equal(t, "z", flushes[0].Bucket)
	assert.Equal(t, []evaluation.SegmentPtr{ptr(4)}, flushes[0].Eval)

	assert.Equal(t, "a", flushes[1].Bucket)
	assert.Equal(t, []evaluation.SegmentPtr{ptr(2)}, flushes[1].Init)
	assert.Equal(t, []evaluation.SegmentPtr{ptr(3), ptr(2)}, flushes[1].Eval, "lower bias first")

	assert.Equal(t, "b", flushes[2].Bucket)
	require.Len(t, keys, 1)
	assert.Equal(t, 0, keys[0].Order)
	assert.Equal(t, 2, keys[0].Key.SectionIndex)
}

func TestGenerate_ReusesUnchangedTracks(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	a := newTrack("print", "a", "", 0, timerange.ClosedOpen(0, 5))
	b := newTrack("print", "b", "", 0, timerange.ClosedOpen(5, 10))
	seq.AddTrack(a)
	seq.AddTrack(b)

	reg := &fakeRegistry{}
	gen := NewGenerator(reg)
	params := Params{KeepStaleTracks: true}
	first, err := gen.Generate(testContext(), seq, params, nil, noResolve)
	require.NoError(t, err)
	require.Equal(t, 2, reg.built)

	idA := first.Ledger.FindTrackIDs(a.Signature())[0]
	idB := first.Ledger.FindTrackIDs(b.Signature())[0]

	b.AddSection(&sequence.Section{Range: timerange.ClosedOpen(12, 14)})
	assert.True(t, first.IsStale(params))

	second, err := gen.Generate(testContext(), seq, params, first, noResolve)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.built, "only the edited track is rebuilt")

	assert.Equal(t, []track.ID{idA}, second.Ledger.FindTrackIDs(a.Signature()))
	newB := second.Ledger.FindTrackIDs(b.Signature())
	require.Len(t, newB, 1)
	assert.NotEqual(t, idB, newB[0])

	assert.True(t, second.Ledger.IsStale(idB), "removed track retained for end hooks")
	_, ok := second.Ledger.FindTrack(idB)
	assert.True(t, ok)
	assert.False(t, first.Ledger.IsStale(idB), "previous template untouched")

	purged, n := second.withoutStale()
	assert.Equal(t, 1, n)
	_, ok = purged.Ledger.FindTrack(idB)
	assert.False(t, ok)
}

func TestGenerate_SharedSignatureRefCountIsStable(t *testing.T) {
	seq := sequence.New("s", 0, 10)
	a := newTrack("print", "a", "", 0, timerange.ClosedOpen(0, 5))
	seq.AddTrack(a)
	seq.AddTrack(a)

	reg := &fakeRegistry{}
	gen := NewGenerator(reg)
	params := Params{KeepStaleTracks: true}
	tpl, err := gen.Generate(testContext(), seq, params, nil, noResolve)
	require.NoError(t, err)
	require.Equal(t, 1, reg.built)

	id := tpl.Ledger.FindTrackIDs(a.Signature())[0]
	assert.Equal(t, 2, tpl.Ledger.RefCount(id))

	for range 3 {
		tpl, err = gen.Generate(testContext(), seq, params, tpl, noResolve)
		require.NoError(t, err)
		assert.Equal(t, 2, tpl.Ledger.RefCount(id), "regenerating does not accumulate references")
	}
	assert.Equal(t, 1, reg.built)

	require.True(t, seq.RemoveTrack(a))
	tpl, err = gen.Generate(testContext(), seq, params, tpl, noResolve)
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Ledger.RefCount(id))
	assert.False(t, tpl.Ledger.IsStale(id))

	require.True(t, seq.RemoveTrack(a))
	tpl, err = gen.Generate(testContext(), seq, params, tpl, noResolve)
	require.NoError(t, err)
	assert.Empty(t, tpl.Ledger.FindTrackIDs(a.Signature()))
	assert.True(t, tpl.Ledger.IsStale(id))
}

func TestGenerate_SubSequenceTransform(t *testing.T) {
	shot := sequence.New("shot", 0, 10)
	shot.AddTrack(newTrack("print", "p", "", 0, timerange.ClosedOpen(0, 10)))

	root := sequence.New("root", 0, 30)
	subs := sequence.NewTrack(config.SubSequenceKind, "shots")
	subs.AddSection(&sequence.Section{
		Range:       timerange.ClosedOpen(5, 20),
		SubSequence: &sequence.SubSequence{Sequence: "shot", TimeScale: 2, Bias: -3},
	})
	root.AddTrack(subs)

	gen := NewGenerator(&fakeRegistry{})
	shotTpl, err := gen.Generate(testContext(), shot, Params{}, nil, noResolve)
	require.NoError(t, err)

	resolve := func(_ context.Context, name string) (*Template, error) {
		require.Equal(t, "shot", name)
		return shotTpl, nil
	}
	tpl, err := gen.Generate(testContext(), root, Params{}, nil, resolve)
	require.NoError(t, err)

	children := tpl.Hierarchy.Children(hierarchy.Root)
	require.Len(t, children, 1)
	id := children[0]
	data, ok := tpl.Hierarchy.Find(id)
	require.True(t, ok)
	assert.Equal(t, float32(4), data.Transform.Apply(7))
	assert.Equal(t, -3, data.HierarchicalBias)
	assert.True(t, data.ValidPlayRange.Equal(timerange.Closed(5, 10)))

	idx := tpl.Field.Find(7)
	require.GreaterOrEqual(t, idx, 0)
	assert.True(t, tpl.Field.Ranges[idx].Equal(timerange.ClosedOpen(5, 10)))
	ptrs := tpl.Field.Groups[idx].Ptrs
	require.Len(t, ptrs, 1)
	assert.Equal(t, id, ptrs[0].SequenceID)
	assert.Equal(t, []string{"p"}, trackNames(t, tpl, ptrs))
	assert.Equal(t, "shot", tpl.SequenceName(id))
	assert.Equal(t, []hierarchy.SequenceID{id}, tpl.Field.Meta[idx].ActiveSequences)

	assert.Len(t, tpl.Sources, 2)
	shot.AddTrack(newTrack("print", "q", "", 0))
	assert.True(t, tpl.IsStale(Params{}), "editing a nested sequence stales the parent")
}
