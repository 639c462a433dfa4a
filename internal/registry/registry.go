package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/ctyconv"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

// DefaultBucket is used by tracks that do not name a bucket.
const DefaultBucket = "default"

// ErrUnknownKind is returned when no factory is registered for a track kind.
var ErrUnknownKind = errors.New("unknown track kind")

// Module is the interface that all track modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// TrackFactory builds the implementation of one track from its definition.
// Arguments are decoded with conv.
type TrackFactory func(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error)

// Registry holds the track-kind factories and bucket priorities for a
// single application instance.
type Registry struct {
	factories     map[string]TrackFactory
	defaultBucket map[string]string
	buckets       map[string]int
	converter     config.Converter
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		factories:     make(map[string]TrackFactory),
		defaultBucket: make(map[string]string),
		buckets:       map[string]int{DefaultBucket: 0},
		converter:     ctyconv.New(),
	}
}

// SetConverter replaces the converter handed to factories.
func (r *Registry) SetConverter(c config.Converter) { r.converter = c }

// RegisterTrackKind registers the factory for a track kind. Tracks of this
// kind that name no bucket are placed in bucket.
func (r *Registry) RegisterTrackKind(kind, bucket string, factory TrackFactory) {
	if kind == config.SubSequenceKind {
		panic(fmt.Sprintf("track kind '%s' is built in", kind))
	}
	if _, exists := r.factories[kind]; exists {
		panic(fmt.Sprintf("track kind '%s' already registered", kind))
	}
	slog.Debug("Registering track kind.", "kind", kind, "bucket", bucket)
	r.factories[kind] = factory
	if bucket != "" {
		r.defaultBucket[kind] = bucket
	}
}

// RegisterBucket declares an evaluation bucket. Higher priorities flush first.
func (r *Registry) RegisterBucket(name string, priority int) {
	if _, exists := r.buckets[name]; exists {
		panic(fmt.Sprintf("bucket '%s' already registered", name))
	}
	slog.Debug("Registering bucket.", "name", name, "priority", priority)
	r.buckets[name] = priority
}

// PopulateBucketsFromModel applies the bucket priorities declared in
// configuration, overriding module defaults.
func (r *Registry) PopulateBucketsFromModel(m *config.Model) {
	for name, b := range m.Buckets {
		r.buckets[name] = b.Priority
	}
}

// BucketPriority returns the priority of the named bucket.
func (r *Registry) BucketPriority(name string) (int, bool) {
	p, ok := r.buckets[name]
	return p, ok
}

// Buckets returns a copy of every bucket priority.
func (r *Registry) Buckets() map[string]int { return maps.Clone(r.buckets) }

// Kinds returns the registered track kinds in sorted order.
func (r *Registry) Kinds() []string { return slices.Sorted(maps.Keys(r.factories)) }

// BucketFor resolves the bucket a track evaluates in: its own, else its
// kind's default, else DefaultBucket.
func (r *Registry) BucketFor(kind, bucket string) string {
	if bucket != "" {
		return bucket
	}
	if b, ok := r.defaultBucket[kind]; ok {
		return b
	}
	return DefaultBucket
}

// NewTrack builds the implementation for def.
func (r *Registry) NewTrack(ctx context.Context, def sequence.Definition) (track.Track, error) {
	factory, ok := r.factories[def.Kind]
	if !ok {
		return nil, fmt.Errorf("track '%s': %w '%s'", def.Name, ErrUnknownKind, def.Kind)
	}
	impl, err := factory(ctx, def, r.converter)
	if err != nil {
		return nil, fmt.Errorf("track '%s' (%s): %w", def.Name, def.Kind, err)
	}
	return impl, nil
}

// Validate checks that every track in m has a registered kind. Tracks that
// name an undeclared bucket are logged and evaluate with priority 0.
func (r *Registry) Validate(ctx context.Context, m *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error

	check := func(seq string, t *config.Track) {
		if t.Kind != config.SubSequenceKind {
			if _, ok := r.factories[t.Kind]; !ok {
				errs = append(errs, fmt.Errorf("sequence '%s', track '%s': %w '%s'", seq, t.Name, ErrUnknownKind, t.Kind))
			}
		}
		if t.Bucket != "" {
			if _, ok := r.buckets[t.Bucket]; !ok {
				logger.Warn("Track names an undeclared bucket.", "sequence", seq, "track", t.Name, "bucket", t.Bucket)
			}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(m.Sequences)) {
		seq := m.Sequences[name]
		for _, t := range seq.Tracks {
			check(name, t)
		}
		for _, b := range seq.Bindings {
			for _, t := range b.Tracks {
				check(name, t)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed: %w", errors.Join(errs...))
	}
	return nil
}
