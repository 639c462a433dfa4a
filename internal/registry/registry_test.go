package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type noopTrack struct {
	message string
}

func (noopTrack) GenerateSegments() []track.SectionRange { return nil }
func (noopTrack) Evaluate(context.Context, track.Segment, *track.Context) []track.ExecutionToken {
	return nil
}
func (noopTrack) OnBeginEvaluation(context.Context, int, *track.Context) {}
func (noopTrack) OnEndEvaluation(context.Context, int, *track.Context)   {}

type noopArgs struct {
	Message string `cty:"message,required"`
}

func noopFactory(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error) {
	var args noopArgs
	if err := conv.DecodeArguments(ctx, def.Arguments, &args); err != nil {
		return nil, err
	}
	return noopTrack{message: args.Message}, nil
}

func TestRegistry_NewTrack(t *testing.T) {
	r := New()
	r.RegisterTrackKind("noop", "anim", noopFactory)

	impl, err := r.NewTrack(testContext(), sequence.Definition{
		Kind:      "noop",
		Name:      "n",
		Arguments: map[string]cty.Value{"message": cty.StringVal("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, noopTrack{message: "hi"}, impl)

	_, err = r.NewTrack(testContext(), sequence.Definition{Kind: "noop", Name: "n"})
	assert.ErrorContains(t, err, "missing required argument")

	_, err = r.NewTrack(testContext(), sequence.Definition{Kind: "nope", Name: "n"})
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestRegistry_DuplicatesPanic(t *testing.T) {
	r := New()
	r.RegisterTrackKind("noop", "", noopFactory)
	assert.Panics(t, func() { r.RegisterTrackKind("noop", "", noopFactory) })
	assert.Panics(t, func() { r.RegisterTrackKind(config.SubSequenceKind, "", noopFactory) })

	r.RegisterBucket("spawn", 1000)
	assert.Panics(t, func() { r.RegisterBucket("spawn", 1) })
}

func TestRegistry_Buckets(t *testing.T) {
	r := New()
	r.RegisterTrackKind("noop", "anim", noopFactory)
	r.RegisterTrackKind("other", "", noopFactory)
	r.RegisterBucket("spawn", 1000)

	assert.Equal(t, "spawn", r.BucketFor("noop", "spawn"))
	assert.Equal(t, "anim", r.BucketFor("noop", ""))
	assert.Equal(t, DefaultBucket, r.BucketFor("other", ""))

	m := config.NewModel()
	m.Buckets["spawn"] = &config.Bucket{Name: "spawn", Priority: 5}
	m.Buckets["anim"] = &config.Bucket{Name: "anim", Priority: 50}
	r.PopulateBucketsFromModel(m)

	p, ok := r.BucketPriority("spawn")
	require.True(t, ok)
	assert.Equal(t, 5, p)
	p, ok = r.BucketPriority("anim")
	require.True(t, ok)
	assert.Equal(t, 50, p)
	_, ok = r.BucketPriority("ghost")
	assert.False(t, ok)
	assert.Equal(t, []string{"noop", "other"}, r.Kinds())
}

func TestRegistry_Validate(t *testing.T) {
	r := New()
	r.RegisterTrackKind("noop", "", noopFactory)

	m := config.NewModel()
	m.Sequences["ok"] = &config.Sequence{
		Name: "ok",
		Tracks: []*config.Track{
			{Kind: "noop", Name: "a", Bucket: "undeclared"},
			{Kind: config.SubSequenceKind, Name: "subs"},
		},
	}
	require.NoError(t, r.Validate(testContext(), m))

	m.Sequences["bad"] = &config.Sequence{
		Name: "bad",
		Bindings: []*config.Binding{{
			Name:   "hero",
			Tracks: []*config.Track{{Kind: "ghost", Name: "g"}},
		}},
	}
	err := r.Validate(testContext(), m)
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.ErrorContains(t, err, "ghost")
}
