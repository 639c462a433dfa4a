// Package event provides the track kind whose keys run Lua chunks when
// playback sweeps over them.
//
// Chunks see three globals: `time`, the key time; `log(msg)`, which writes
// to the application log; and `set_property(path, value)`, which writes a
// number, string or bool onto the bound object. Events never fire on a
// jump or during silent evaluation.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/propertypath"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/vk/seqcore/internal/track"
)

const Kind = "event"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the event track kind in the default bucket.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTrackKind(Kind, "", NewTrack)
}

// Arguments are the track-level arguments.
type Arguments struct {
	FireBackwards bool `cty:"fire_backwards"`
}

type key struct {
	time  float32
	chunk string
}

// Track fires its keys.
type Track struct {
	name          string
	fireBackwards bool
	bounds        []track.SectionBounds
	keys          [][]key

	// Lua states are not safe for concurrent use.
	mu sync.Mutex
}

// NewTrack is the registry.TrackFactory for event tracks. Every key must
// hold a string that compiles as Lua.
func NewTrack(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error) {
	var args Arguments
	if err := conv.DecodeArguments(ctx, def.Arguments, &args); err != nil {
		return nil, err
	}
	t := &Track{name: def.Name, fireBackwards: args.FireBackwards}

	check := lua.NewState()
	for i, s := range def.Sections {
		if err := conv.DecodeArguments(ctx, s.Arguments, &struct{}{}); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		var keys []key
		for _, k := range s.Keys {
			if k.Value.IsNull() || k.Value.Type() != cty.String {
				return nil, fmt.Errorf("section %d: key at %g must be a Lua string", i, k.Time)
			}
			chunk := k.Value.AsString()
			if err := lua.LoadString(check, chunk); err != nil {
				return nil, fmt.Errorf("section %d: key at %g: %w", i, k.Time, err)
			}
			check.Pop(1)
			keys = append(keys, key{time: k.Time, chunk: chunk})
		}
		t.bounds = append(t.bounds, track.SectionBounds{Range: s.Range, PreRoll: s.PreRoll, PostRoll: s.PostRoll})
		t.keys = append(t.keys, keys)
	}
	return t, nil
}

func (t *Track) GenerateSegments() []track.SectionRange {
	return track.DefaultSegments(t.bounds)
}

// Evaluate emits one token per key inside the swept range, in sweep order.
func (t *Track) Evaluate(ctx context.Context, seg track.Segment, ec *track.Context) []track.ExecutionToken {
	if ec.HasJumped || ec.Silent {
		ctxlog.FromContext(ctx).Debug("Suppressing events.", "track", t.name, "jumped", ec.HasJumped, "silent", ec.Silent)
		return nil
	}
	backwards := ec.Range.Direction == timerange.Backwards
	if backwards && !t.fireBackwards {
		return nil
	}

	var fired []key
	for _, e := range seg.Entities {
		if e.Flags != 0 || e.SectionIndex >= len(t.keys) {
			continue
		}
		for _, k := range t.keys[e.SectionIndex] {
			if ec.Range.Range.Contains(k.time) {
				fired = append(fired, k)
			}
		}
	}
	tokens := make([]track.ExecutionToken, len(fired))
	for i := range fired {
		k := fired[i]
		if backwards {
			k = fired[len(fired)-1-i]
		}
		tokens[i] = &runToken{track: t, key: k}
	}
	return tokens
}

func (t *Track) OnBeginEvaluation(context.Context, int, *track.Context) {}
func (t *Track) OnEndEvaluation(context.Context, int, *track.Context)   {}

type runToken struct {
	track *Track
	key   key
}

func (r *runToken) Execute(ctx context.Context, op track.Operand, p track.Player) error {
	return r.track.run(ctx, r.key, op, p)
}

func (t *Track) run(ctx context.Context, k key, op track.Operand, p track.Player) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := ctxlog.FromContext(ctx).With("track", t.name, "time", k.time)
	l := lua.NewState()
	lua.OpenLibraries(l)

	l.PushNumber(float64(k.time))
	l.SetGlobal("time")
	l.Register("log", func(l *lua.State) int {
		logger.Info("Event.", "message", lua.CheckString(l, 1))
		return 0
	})
	l.Register("set_property", func(l *lua.State) int {
		raw := lua.CheckString(l, 1)
		var v cty.Value
		switch l.TypeOf(2) {
		case lua.TypeNumber:
			n, _ := l.ToNumber(2)
			v = cty.NumberFloatVal(n)
		case lua.TypeString:
			s, _ := l.ToString(2)
			v = cty.StringVal(s)
		case lua.TypeBoolean:
			v = cty.BoolVal(l.ToBoolean(2))
		default:
			lua.ArgumentError(l, 2, "expected number, string or boolean")
		}
		path, err := propertypath.Parse(raw)
		if err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		h, ok := p.ResolveBinding(op.BindingID, op.SequenceID)
		if !ok {
			lua.Errorf(l, "binding '%s' is not resolvable", op.BindingID)
		}
		if err := p.Scene().Set(h, path, v); err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		return 0
	})

	if err := lua.DoString(l, k.chunk); err != nil {
		return fmt.Errorf("event at %g: %w", k.time, err)
	}
	logger.Debug("Event fired.")
	return nil
}
