// This file contains the logic for translating the decoded HCL schema structs
// into the format-agnostic configuration model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// translateSequence converts the HCL-specific sequence schema into the agnostic model.
func (l *Loader) translateSequence(ctx context.Context, s *sequenceBlock, source string, evalCtx *hcl.EvalContext) (*config.Sequence, error) {
	ctx = ctxlog.With(ctx, "sequence", s.Name)
	ctxlog.FromContext(ctx).Debug("Translating HCL sequence to internal config model.")

	seq := &config.Sequence{
		Name:               s.Name,
		FixedFrameInterval: float32(s.FixedFrameInterval),
		Source:             source,
	}
	switch len(s.PlaybackRange) {
	case 0:
	case 2:
		seq.PlaybackStart = float32(s.PlaybackRange[0])
		seq.PlaybackEnd = float32(s.PlaybackRange[1])
	default:
		return nil, fmt.Errorf("sequence %q: playback_range must have exactly two elements, got %d", s.Name, len(s.PlaybackRange))
	}

	for _, t := range s.Tracks {
		tr, err := l.translateTrack(ctx, t, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("sequence %q: %w", s.Name, err)
		}
		seq.Tracks = append(seq.Tracks, tr)
	}

	for _, b := range s.Bindings {
		binding := &config.Binding{
			Name:       b.Name,
			Spawnable:  b.Spawnable,
			Class:      b.Class,
			Possess:    b.Possess,
			Properties: b.Properties,
		}
		if binding.Properties.IsNull() {
			binding.Properties = cty.EmptyObjectVal
		}
		for _, t := range b.Tracks {
			tr, err := l.translateTrack(ctx, t, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("sequence %q, binding %q: %w", s.Name, b.Name, err)
			}
			binding.Tracks = append(binding.Tracks, tr)
		}
		seq.Bindings = append(seq.Bindings, binding)
	}
	return seq, nil
}

// translateTrack converts the HCL-specific track schema into the agnostic model.
func (l *Loader) translateTrack(ctx context.Context, t *trackBlock, evalCtx *hcl.EvalContext) (*config.Track, error) {
	args, err := evalArguments(t.Arguments, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("track %s %q arguments: %w", t.Kind, t.Name, err)
	}

	tr := &config.Track{
		Kind:      t.Kind,
		Name:      t.Name,
		Bucket:    t.Bucket,
		Priority:  t.Priority,
		Arguments: args,
	}
	for i, s := range t.Sections {
		sec, err := l.translateSection(ctx, t.Kind, s, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("track %s %q, section %d: %w", t.Kind, t.Name, i, err)
		}
		tr.Sections = append(tr.Sections, sec)
	}
	return tr, nil
}

func (l *Loader) translateSection(ctx context.Context, kind string, s *sectionBlock, evalCtx *hcl.EvalContext) (*config.Section, error) {
	start, err := evalOptionalFloat(ctx, s.Start, "start", evalCtx)
	if err != nil {
		return nil, err
	}
	end, err := evalOptionalFloat(ctx, s.End, "end", evalCtx)
	if err != nil {
		return nil, err
	}
	args, err := evalArguments(s.Arguments, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("arguments: %w", err)
	}

	sec := &config.Section{
		Start:        start,
		End:          end,
		InclusiveEnd: s.InclusiveEnd,
		PreRoll:      float32(s.PreRoll),
		PostRoll:     float32(s.PostRoll),
		Completion:   s.Completion,
		Arguments:    args,
	}
	for _, k := range s.Keys {
		sec.Keys = append(sec.Keys, &config.Key{Time: float32(k.Time), Value: k.Value})
	}

	if kind == config.SubSequenceKind && s.Sequence != "" {
		scale, err := evalOptionalFloat(ctx, s.TimeScale, "time_scale", evalCtx)
		if err != nil {
			return nil, err
		}
		sub := &config.SubSequence{
			Sequence:    s.Sequence,
			StartOffset: float32(s.StartOffset),
			TimeScale:   1,
			Bias:        s.Bias,
		}
		if scale != nil {
			sub.TimeScale = *scale
		}
		sec.SubSequence = sub
	}
	return sec, nil
}
