package testutil

import (
	"context"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

// RecordingModule registers a track kind whose tracks log every hook to
// Rec. Events look like "begin name#0", "init name", "eval name@4",
// "apply name" and "end name#0".
type RecordingModule struct {
	Kind   string
	Bucket string
	Rec    *Recorder
	// Init makes the tracks request a setup pass.
	Init bool
	// OnEvaluate, when set, runs inside Evaluate.
	OnEvaluate func(ctx context.Context, name string, ec *track.Context)
}

// Register implements the registry.Module interface.
func (m *RecordingModule) Register(r *registry.Registry) {
	r.RegisterTrackKind(m.Kind, m.Bucket, func(_ context.Context, def sequence.Definition, _ config.Converter) (track.Track, error) {
		t := &recordingTrack{name: def.Name, module: m}
		for _, s := range def.Sections {
			t.bounds = append(t.bounds, track.SectionBounds{Range: s.Range, PreRoll: s.PreRoll, PostRoll: s.PostRoll})
		}
		if m.Init {
			return &recordingInitTrack{t}, nil
		}
		return t, nil
	})
}

type recordingTrack struct {
	name   string
	module *RecordingModule
	bounds []track.SectionBounds
}

func (t *recordingTrack) GenerateSegments() []track.SectionRange {
	return track.DefaultSegments(t.bounds)
}

func (t *recordingTrack) Evaluate(ctx context.Context, _ track.Segment, ec *track.Context) []track.ExecutionToken {
	t.module.Rec.Add("eval %s@%g", t.name, ec.Time())
	if t.module.OnEvaluate != nil {
		t.module.OnEvaluate(ctx, t.name, ec)
	}
	return []track.ExecutionToken{track.TokenFunc(func(context.Context, track.Operand, track.Player) error {
		t.module.Rec.Add("apply %s", t.name)
		return nil
	})}
}

func (t *recordingTrack) OnBeginEvaluation(_ context.Context, section int, _ *track.Context) {
	t.module.Rec.Add("begin %s#%d", t.name, section)
}

func (t *recordingTrack) OnEndEvaluation(_ context.Context, section int, _ *track.Context) {
	t.module.Rec.Add("end %s#%d", t.name, section)
}

type recordingInitTrack struct {
	*recordingTrack
}

func (t *recordingInitTrack) Initialize(_ context.Context, _ track.Segment, _ *track.Context) {
	t.module.Rec.Add("init %s", t.name)
}
