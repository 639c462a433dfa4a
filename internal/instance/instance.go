// Package instance runs compiled templates frame by frame. A root
// evaluation instance looks up the segment for the requested time, fires
// begin and end hooks for entities whose activity changed since the last
// frame, evaluates the segment's group and applies the resulting tokens.
package instance

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/evaluation"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/template"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/vk/seqcore/internal/track"
)

var tracer = otel.Tracer("github.com/vk/seqcore/internal/instance")

// ErrNotInitialized is returned by Evaluate and Finish before Initialize.
var ErrNotInitialized = errors.New("evaluation instance is not initialized")

// State is the lifecycle state of an instance.
type State uint8

const (
	Uninitialized State = iota
	Initialized
	Evaluating
	Finished
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Evaluating:
		return "evaluating"
	case Finished:
		return "finished"
	default:
		return "uninitialized"
	}
}

// Templates supplies compiled templates by sequence name.
type Templates interface {
	GetCompiled(ctx context.Context, name string) (*template.Template, error)
}

// Frame is one evaluation request.
type Frame struct {
	// Range is in root time, or in the override sequence's time when a root
	// override is set.
	Range     timerange.EvaluationRange
	Status    track.Status
	HasJumped bool
}

// Options tune an instance.
type Options struct {
	// Workers bounds how many tracks of one flush evaluate concurrently.
	// Values below 2 evaluate sequentially. Tokens are applied in order
	// either way.
	Workers int
	Silent  bool
}

// Instance is the root evaluation instance of one playback session. It
// holds the root sequence name and fetches the template every frame, so a
// regenerated template is picked up on the next call.
type Instance struct {
	templates Templates
	player    track.Player
	opts      Options

	root     string
	state    State
	override hierarchy.SequenceID

	lastTemplate *template.Template
	thisFrame    evaluation.MetaData
	lastFrame    evaluation.MetaData
	persistent   *track.PersistentData
	tokens       track.TokenStack
}

// New returns an uninitialized instance that applies tokens through player.
func New(templates Templates, player track.Player, opts Options) *Instance {
	return &Instance{
		templates:  templates,
		player:     player,
		opts:       opts,
		persistent: track.NewPersistentData(),
	}
}

// State returns the lifecycle state.
func (in *Instance) State() State { return in.state }

// Root returns the root sequence name.
func (in *Instance) Root() string { return in.root }

// Initialize binds the instance to a root sequence and compiles it.
func (in *Instance) Initialize(ctx context.Context, root string) error {
	if in.state == Evaluating {
		panic("instance: Initialize called during Evaluate")
	}
	tpl, err := in.templates.GetCompiled(ctx, root)
	if err != nil {
		return fmt.Errorf("initializing '%s': %w", root, err)
	}
	in.root = root
	in.override = hierarchy.Root
	in.lastTemplate = tpl
	in.thisFrame = evaluation.MetaData{}
	in.lastFrame = evaluation.MetaData{}
	in.state = Initialized
	ctxlog.FromContext(ctx).Debug("Evaluation instance initialized.", "sequence", root, "segments", tpl.Field.Len())
	return nil
}

// SetSilent toggles silent evaluation.
func (in *Instance) SetSilent(silent bool) { in.opts.Silent = silent }

// SetRootOverride evaluates only sub-sequence id and its descendants, with
// frame times expressed in that sequence's local time. hierarchy.Root
// clears the override.
func (in *Instance) SetRootOverride(id hierarchy.SequenceID) { in.override = id }

// RootOverride returns the current override.
func (in *Instance) RootOverride() hierarchy.SequenceID { return in.override }

// ActiveEntities returns the entities active after the last frame.
func (in *Instance) ActiveEntities() []track.EntityKey {
	keys := make([]track.EntityKey, len(in.thisFrame.ActiveEntities))
	for i, k := range in.thisFrame.ActiveEntities {
		keys[i] = k.Key
	}
	return keys
}

// ActiveSequences returns the sub-sequences active after the last frame.
func (in *Instance) ActiveSequences() []hierarchy.SequenceID {
	return append([]hierarchy.SequenceID(nil), in.thisFrame.ActiveSequences...)
}

// Template returns the template used by the last frame.
func (in *Instance) Template() *template.Template { return in.lastTemplate }

// Evaluate runs one frame. Calling it again before it returns panics.
func (in *Instance) Evaluate(ctx context.Context, f Frame) error {
	switch in.state {
	case Evaluating:
		panic("instance: re-entrant Evaluate")
	case Initialized:
	default:
		return ErrNotInitialized
	}
	in.state = Evaluating
	defer func() { in.state = Initialized }()

	ctx, span := tracer.Start(ctx, "instance.Evaluate",
		trace.WithAttributes(attribute.String("sequence", in.root), attribute.String("status", f.Status.String())))
	defer span.End()

	tpl, err := in.templates.GetCompiled(ctx, in.root)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("evaluating '%s': %w", in.root, err)
	}

	scope := newScope(tpl, in.override)
	rootRange := scope.toRoot(f.Range)
	idx := tpl.Field.Resolve(rootRange)
	span.SetAttributes(
		attribute.Float64("time", float64(f.Range.Time())),
		attribute.Int("segment", idx),
	)

	in.lastFrame, in.thisFrame = in.thisFrame, evaluation.MetaData{}
	if idx >= 0 {
		in.thisFrame = scope.filterMeta(tpl.Field.Meta[idx])
	}

	fc := frameContext{in: in, tpl: tpl, frame: f, rootRange: rootRange}
	in.runHooks(ctx, fc, in.lastTemplate)

	if idx >= 0 {
		in.evaluateGroup(ctx, fc, scope.filterGroup(tpl.Field.Groups[idx]))
	}
	in.lastTemplate = tpl
	return nil
}

// Finish ends every active entity and expires every sequence, then leaves
// the instance Finished.
func (in *Instance) Finish(ctx context.Context) error {
	switch in.state {
	case Evaluating:
		panic("instance: Finish called during Evaluate")
	case Initialized:
	default:
		return ErrNotInitialized
	}

	in.lastFrame, in.thisFrame = in.thisFrame, evaluation.MetaData{}
	tpl := in.lastTemplate
	fc := frameContext{in: in, tpl: tpl, frame: Frame{Status: track.Stopped}}
	in.runHooks(ctx, fc, tpl)
	if reg := in.player.SpawnRegister(); reg != nil {
		reg.OnSequenceExpired(ctx, hierarchy.Root)
	}
	in.state = Finished
	ctxlog.FromContext(ctx).Debug("Evaluation instance finished.", "sequence", in.root)
	return nil
}

// runHooks ends entities that left, expires sequences that left, then
// begins entities that arrived.
func (in *Instance) runHooks(ctx context.Context, fc frameContext, previous *template.Template) {
	logger := ctxlog.FromContext(ctx)
	entered, exited := in.thisFrame.Diff(in.lastFrame)

	for _, k := range exited {
		et, ok := fc.tpl.FindTrack(k.Key.SequenceID, k.Key.TrackID)
		if !ok && previous != nil {
			et, ok = previous.FindTrack(k.Key.SequenceID, k.Key.TrackID)
		}
		if !ok {
			logger.Debug("Ended entity has no track, skipping end hook.", "sequence", k.Key.SequenceID, "track", k.Key.TrackID)
			in.persistent.Delete(k.Key)
			continue
		}
		et.Impl.OnEndEvaluation(ctx, k.Key.SectionIndex, fc.context(k.Key.SequenceID, k.Key.TrackID, et))
		in.persistent.Delete(k.Key)
	}

	_, expired := in.thisFrame.DiffSequences(in.lastFrame)
	if reg := in.player.SpawnRegister(); reg != nil {
		for _, id := range expired {
			reg.OnSequenceExpired(ctx, id)
		}
	}

	for _, k := range entered {
		et, ok := fc.tpl.FindTrack(k.Key.SequenceID, k.Key.TrackID)
		if !ok {
			logger.Warn("Active entity has no track, skipping begin hook.", "sequence", k.Key.SequenceID, "track", k.Key.TrackID)
			continue
		}
		et.Impl.OnBeginEvaluation(ctx, k.Key.SectionIndex, fc.context(k.Key.SequenceID, k.Key.TrackID, et))
	}
}

type resolved struct {
	ptr evaluation.SegmentPtr
	et  *track.EvaluationTrack
	seg track.Segment
}

func (in *Instance) resolve(ctx context.Context, tpl *template.Template, ptrs []evaluation.SegmentPtr) []resolved {
	out := make([]resolved, 0, len(ptrs))
	for _, p := range ptrs {
		et, seg, ok := tpl.FindSegment(p)
		if !ok {
			ctxlog.FromContext(ctx).Warn("Segment pointer has no track, skipping.", "pointer", p.String())
			continue
		}
		out = append(out, resolved{ptr: p, et: et, seg: seg})
	}
	return out
}

// evaluateGroup runs every flush in order: setup pass, evaluation pass,
// then token application, before the next flush begins.
func (in *Instance) evaluateGroup(ctx context.Context, fc frameContext, group evaluation.Group) {
	for _, flush := range group.Flushes() {
		for _, r := range in.resolve(ctx, fc.tpl, flush.Init) {
			if init, ok := r.et.Impl.(track.Initializer); ok {
				init.Initialize(ctx, r.seg, fc.context(r.ptr.SequenceID, r.ptr.TrackID, r.et))
			}
		}

		work := in.resolve(ctx, fc.tpl, flush.Eval)
		results := make([][]track.ExecutionToken, len(work))
		contexts := make([]*track.Context, len(work))
		for i, r := range work {
			contexts[i] = fc.context(r.ptr.SequenceID, r.ptr.TrackID, r.et)
		}

		if in.opts.Workers > 1 && len(work) > 1 {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(in.opts.Workers)
			for i, r := range work {
				g.Go(func() error {
					results[i] = r.et.Impl.Evaluate(gctx, r.seg, contexts[i])
					return nil
				})
			}
			_ = g.Wait()
		} else {
			for i, r := range work {
				results[i] = r.et.Impl.Evaluate(ctx, r.seg, contexts[i])
			}
		}

		for i, r := range work {
			entity := track.EntityKey{SequenceID: r.ptr.SequenceID, TrackID: r.ptr.TrackID, SectionIndex: -1}
			if len(r.seg.Entities) > 0 {
				entity.SectionIndex = r.seg.Entities[0].SectionIndex
			}
			in.tokens.Push(entity, contexts[i].Operand(), results[i]...)
		}
		in.tokens.Apply(ctx, in.player)
	}
}

type frameContext struct {
	in        *Instance
	tpl       *template.Template
	frame     Frame
	rootRange timerange.EvaluationRange
}

func (fc frameContext) context(seq hierarchy.SequenceID, id track.ID, et *track.EvaluationTrack) *track.Context {
	tt := hierarchy.Identity()
	if fc.tpl != nil {
		tt = fc.tpl.Hierarchy.Transform(seq)
	}
	return &track.Context{
		Range:      tt.ApplyEvaluation(fc.rootRange),
		RootRange:  fc.rootRange,
		Status:     fc.frame.Status,
		HasJumped:  fc.frame.HasJumped,
		Silent:     fc.in.opts.Silent,
		SequenceID: seq,
		Transform:  tt,
		TrackID:    id,
		BindingID:  et.BindingID,
		Player:     fc.in.player,
		Persistent: fc.in.persistent,
	}
}
