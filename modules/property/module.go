// Package property provides the track kind that writes a value onto a
// property of the bound scene object.
//
// A section either holds a constant `value` argument or a list of keys.
// Numeric keys are interpolated linearly; any other key type holds the last
// key's value until the next one. The original property value is captured
// before the first write and put back when the section ends, unless the
// section completes with "keep".
package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/ctyconv"
	"github.com/vk/seqcore/internal/propertypath"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/scene"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

const Kind = "property"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the property track kind in the default bucket.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTrackKind(Kind, "", NewTrack)
}

// Arguments are the track-level arguments.
type Arguments struct {
	Property string `cty:"property,required"`
}

// SectionArguments are the per-section arguments.
type SectionArguments struct {
	Value cty.Value `cty:"value"`
}

type section struct {
	bounds  track.SectionBounds
	value   cty.Value
	keys    []sequence.Key
	restore bool
}

// Track animates one property.
type Track struct {
	path     propertypath.Path
	sections []section
}

// NewTrack is the registry.TrackFactory for property tracks.
func NewTrack(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error) {
	if def.BindingID == "" {
		return nil, errors.New("property tracks must belong to a binding")
	}
	var args Arguments
	if err := conv.DecodeArguments(ctx, def.Arguments, &args); err != nil {
		return nil, err
	}
	path, err := propertypath.Parse(args.Property)
	if err != nil {
		return nil, fmt.Errorf("invalid property: %w", err)
	}

	t := &Track{path: path}
	for i, s := range def.Sections {
		var sa SectionArguments
		if err := conv.DecodeArguments(ctx, s.Arguments, &sa); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		if sa.Value.IsNull() && len(s.Keys) == 0 {
			return nil, fmt.Errorf("section %d: needs a value or keys", i)
		}
		t.sections = append(t.sections, section{
			bounds:  track.SectionBounds{Range: s.Range, PreRoll: s.PreRoll, PostRoll: s.PostRoll},
			value:   sa.Value,
			keys:    s.Keys,
			restore: s.RestoresState(),
		})
	}
	return t, nil
}

func (t *Track) GenerateSegments() []track.SectionRange {
	bounds := make([]track.SectionBounds, len(t.sections))
	for i, s := range t.sections {
		bounds[i] = s.bounds
	}
	return track.DefaultSegments(bounds)
}

// Initialize resolves the bound object once per active section. It runs
// after earlier buckets have applied their tokens, so objects spawned this
// frame are already present.
func (t *Track) Initialize(ctx context.Context, seg track.Segment, ec *track.Context) {
	for _, e := range seg.Entities {
		key := ec.Entity(e.SectionIndex)
		if h, ok := track.Load[scene.Handle](ec.Persistent, key); ok && ec.Player.Scene().Exists(h) {
			continue
		}
		h, ok := ec.Player.ResolveBinding(ec.BindingID, ec.SequenceID)
		if !ok {
			ctxlog.FromContext(ctx).Debug("Property target is not resolvable yet.", "binding", ec.BindingID, "section", e.SectionIndex)
			continue
		}
		ec.Persistent.Set(key, h)
	}
}

// Evaluate writes the value of the first active section. Pre- and
// post-roll ranges do not write.
func (t *Track) Evaluate(ctx context.Context, seg track.Segment, ec *track.Context) []track.ExecutionToken {
	for _, e := range seg.Entities {
		if e.Flags != 0 || e.SectionIndex >= len(t.sections) {
			continue
		}
		key := ec.Entity(e.SectionIndex)
		h, ok := track.Load[scene.Handle](ec.Persistent, key)
		if !ok {
			return nil
		}
		v, err := t.sections[e.SectionIndex].valueAt(ec.Time())
		if err != nil {
			ctxlog.FromContext(ctx).Warn("Property value could not be computed.", "binding", ec.BindingID, "property", t.path.String(), "error", err)
			return nil
		}
		return []track.ExecutionToken{&setToken{owner: key, handle: h, path: t.path, value: v}}
	}
	return nil
}

func (t *Track) OnBeginEvaluation(context.Context, int, *track.Context) {}

// OnEndEvaluation restores or keeps the values this section wrote.
func (t *Track) OnEndEvaluation(ctx context.Context, sectionIndex int, ec *track.Context) {
	owner := ec.Entity(sectionIndex)
	state := ec.Player.PreAnimated()
	if sectionIndex < len(t.sections) && !t.sections[sectionIndex].restore {
		state.Discard(ctx, owner)
		return
	}
	state.Restore(ctx, owner, ec.Player.Scene())
}

func (s section) valueAt(t float32) (cty.Value, error) {
	if len(s.keys) == 0 {
		return s.value, nil
	}
	first, last := s.keys[0], s.keys[len(s.keys)-1]
	if t <= first.Time {
		return first.Value, nil
	}
	if t >= last.Time {
		return last.Value, nil
	}
	for i := 1; i < len(s.keys); i++ {
		next := s.keys[i]
		if t >= next.Time {
			continue
		}
		prev := s.keys[i-1]
		if prev.Value.Type() != cty.Number || next.Value.Type() != cty.Number {
			return prev.Value, nil
		}
		a, err := ctyconv.Float32(prev.Value)
		if err != nil {
			return cty.NilVal, err
		}
		b, err := ctyconv.Float32(next.Value)
		if err != nil {
			return cty.NilVal, err
		}
		alpha := (t - prev.Time) / (next.Time - prev.Time)
		return ctyconv.NumberVal(a + (b-a)*alpha), nil
	}
	return last.Value, nil
}

type setToken struct {
	owner  track.EntityKey
	handle scene.Handle
	path   propertypath.Path
	value  cty.Value
}

func (s *setToken) Execute(_ context.Context, _ track.Operand, p track.Player) error {
	sc := p.Scene()
	if !sc.Exists(s.handle) {
		return fmt.Errorf("object %d no longer exists", s.handle)
	}
	p.PreAnimated().Capture(s.owner, sc, s.handle, s.path)
	return sc.Set(s.handle, s.path, s.value)
}
