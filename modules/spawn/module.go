// Package spawn provides the track kind that brings a spawnable binding's
// object into the scene while one of its sections is active.
package spawn

import (
	"context"
	"errors"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

const (
	Kind           = "spawn"
	Bucket         = "spawn"
	BucketPriority = 1000
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register declares the spawn bucket and track kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterBucket(Bucket, BucketPriority)
	r.RegisterTrackKind(Kind, Bucket, NewTrack)
}

// Track spawns its binding's object. Sections completing with "keep" leave
// the object alive when they end.
type Track struct {
	bounds []track.SectionBounds
	keep   []bool
}

// NewTrack is the registry.TrackFactory for spawn tracks.
func NewTrack(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error) {
	if def.BindingID == "" {
		return nil, errors.New("spawn tracks must belong to a binding")
	}
	if err := conv.DecodeArguments(ctx, def.Arguments, &struct{}{}); err != nil {
		return nil, err
	}
	t := &Track{}
	for _, s := range def.Sections {
		t.bounds = append(t.bounds, track.SectionBounds{Range: s.Range, PreRoll: s.PreRoll, PostRoll: s.PostRoll})
		t.keep = append(t.keep, !s.RestoresState())
	}
	return t, nil
}

func (t *Track) GenerateSegments() []track.SectionRange {
	return track.DefaultSegments(t.bounds)
}

// Evaluate asks for the object to exist, including during pre- and
// post-roll so dependent tracks can prepare it.
func (t *Track) Evaluate(_ context.Context, _ track.Segment, _ *track.Context) []track.ExecutionToken {
	return []track.ExecutionToken{spawnToken{}}
}

func (t *Track) OnBeginEvaluation(context.Context, int, *track.Context) {}

func (t *Track) OnEndEvaluation(ctx context.Context, section int, ec *track.Context) {
	if section < len(t.keep) && t.keep[section] {
		ctxlog.FromContext(ctx).Debug("Keeping spawned object after section end.", "binding", ec.BindingID, "section", section)
		return
	}
	ec.Player.SpawnRegister().DestroySpawnedObject(ctx, ec.BindingID, ec.SequenceID)
}

type spawnToken struct{}

func (spawnToken) Execute(ctx context.Context, op track.Operand, p track.Player) error {
	_, err := p.SpawnRegister().SpawnObject(ctx, op.BindingID, op.SequenceID)
	return err
}
