package template

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/sequence"
)

var tracer = otel.Tracer("github.com/vk/seqcore/internal/template")

// Store caches one compiled template per sequence. Reads are lock free;
// regeneration is serialized and published with an atomic swap.
type Store struct {
	library   *sequence.Library
	generator *Generator
	params    Params

	// templates maps a sequence name to its *atomic.Pointer[Template].
	templates sync.Map

	mu        sync.Mutex
	compiling map[string]bool
}

// NewStore returns an empty store compiling sequences from lib.
func NewStore(lib *sequence.Library, gen *Generator, params Params) *Store {
	return &Store{
		library:   lib,
		generator: gen,
		params:    params,
		compiling: make(map[string]bool),
	}
}

// Params returns the params every template is compiled with.
func (s *Store) Params() Params { return s.params }

func (s *Store) slot(name string) *atomic.Pointer[Template] {
	v, _ := s.templates.LoadOrStore(name, new(atomic.Pointer[Template]))
	return v.(*atomic.Pointer[Template])
}

// Load returns the cached template for name without regenerating it.
func (s *Store) Load(name string) (*Template, bool) {
	v, ok := s.templates.Load(name)
	if !ok {
		return nil, false
	}
	t := v.(*atomic.Pointer[Template]).Load()
	return t, t != nil
}

// GetCompiled returns an up-to-date template for name, regenerating it and
// any stale sub-sequence templates first.
func (s *Store) GetCompiled(ctx context.Context, name string) (*Template, error) {
	if t, ok := s.Load(name); ok && !t.IsStale(s.params) {
		return t, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compileLocked(ctx, name)
}

func (s *Store) compileLocked(ctx context.Context, name string) (*Template, error) {
	if s.compiling[name] {
		return nil, fmt.Errorf("%w: '%s' plays itself", ErrRecursiveSequence, name)
	}
	seq, ok := s.library.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrSequenceNotFound, name)
	}

	slot := s.slot(name)
	previous := slot.Load()
	if previous != nil && !previous.IsStale(s.params) {
		return previous, nil
	}

	ctx, span := tracer.Start(ctx, "template.Generate", trace.WithAttributes(attribute.String("sequence", name)))
	defer span.End()

	s.compiling[name] = true
	defer delete(s.compiling, name)

	t, err := s.generator.Generate(ctx, seq, s.params, previous, s.compileLocked)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("tracks", t.Ledger.Len()),
		attribute.Int("segments", t.Field.Len()),
	)
	slot.Store(t)
	ctxlog.FromContext(ctx).Debug("Published sequence template.", "sequence", name, "signature", t.Signature.String())
	return t, nil
}

// IsStale reports whether the cached template for name needs regeneration.
// A sequence that was never compiled is stale.
func (s *Store) IsStale(name string) bool {
	t, ok := s.Load(name)
	return !ok || t.IsStale(s.params)
}

// Invalidate forces the next GetCompiled for name to regenerate. The
// existing ledger is still reused.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slot(name)
	if t := slot.Load(); t != nil && !t.invalidated {
		c := *t
		c.invalidated = true
		slot.Store(&c)
	}
}

// Reset drops every cached template.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates.Range(func(k, _ any) bool {
		s.templates.Delete(k)
		return true
	})
}

// PurgeStaleTracks drops tracks and sub-sequences that templates retained
// after they were removed, and returns how many were dropped.
func (s *Store) PurgeStaleTracks(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	s.templates.Range(func(k, v any) bool {
		slot := v.(*atomic.Pointer[Template])
		t := slot.Load()
		if t == nil {
			return true
		}
		if purged, n := t.withoutStale(); n > 0 {
			slot.Store(purged)
			total += n
		}
		return true
	})
	if total > 0 {
		ctxlog.FromContext(ctx).Debug("Purged stale tracks.", "count", total)
	}
	return total
}
