package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

const Kind = "print"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives printed lines. Nil means stdout.
	Out io.Writer
}

// Arguments are shared by track and section; section values win.
type Arguments struct {
	Message string            `cty:"message"`
	Values  map[string]string `cty:"values"`
}

type section struct {
	message string
	values  map[string]string
}

// Track prints a line each time one of its sections becomes active.
type Track struct {
	name     string
	out      io.Writer
	bounds   []track.SectionBounds
	sections []section
}

type pending struct{}

// Register registers the print track kind in the default bucket.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTrackKind(Kind, "", m.newTrack)
}

func (m *Module) newTrack(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error) {
	var args Arguments
	if err := conv.DecodeArguments(ctx, def.Arguments, &args); err != nil {
		return nil, err
	}
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	t := &Track{name: def.Name, out: out}
	for i, s := range def.Sections {
		var sa Arguments
		if err := conv.DecodeArguments(ctx, s.Arguments, &sa); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		sec := section{message: args.Message, values: args.Values}
		if sa.Message != "" {
			sec.message = sa.Message
		}
		if sa.Values != nil {
			sec.values = sa.Values
		}
		t.bounds = append(t.bounds, track.SectionBounds{Range: s.Range})
		t.sections = append(t.sections, sec)
	}
	return t, nil
}

func (t *Track) GenerateSegments() []track.SectionRange {
	return track.DefaultSegments(t.bounds)
}

func (t *Track) OnBeginEvaluation(_ context.Context, section int, ec *track.Context) {
	ec.Persistent.Set(ec.Entity(section), pending{})
}

func (t *Track) OnEndEvaluation(context.Context, int, *track.Context) {}

func (t *Track) Evaluate(ctx context.Context, seg track.Segment, ec *track.Context) []track.ExecutionToken {
	var tokens []track.ExecutionToken
	for _, e := range seg.Entities {
		key := ec.Entity(e.SectionIndex)
		if _, ok := track.Load[pending](ec.Persistent, key); !ok {
			continue
		}
		ec.Persistent.Delete(key)
		if ec.Silent {
			continue
		}
		sec := t.sections[e.SectionIndex]
		at := ec.Time()
		tokens = append(tokens, track.TokenFunc(func(ctx context.Context, _ track.Operand, _ track.Player) error {
			ctxlog.FromContext(ctx).Info("Printing section", "track", t.name, "time", at)
			return t.write(sec, at)
		}))
	}
	return tokens
}

func (t *Track) write(sec section, at float32) error {
	if _, err := fmt.Fprintf(t.out, "[%s @ %g] %s\n", t.name, at, sec.message); err != nil {
		return err
	}
	// Sort keys for consistent output
	keys := make([]string, 0, len(sec.values))
	for k := range sec.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(t.out, "      %s = %q\n", k, sec.values[k]); err != nil {
			return err
		}
	}
	return nil
}
