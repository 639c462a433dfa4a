package template

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/evaluation"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/ledger"
	"github.com/vk/seqcore/internal/segment"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/signature"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/vk/seqcore/internal/track"
)

// Registry builds track implementations and resolves their buckets.
type Registry interface {
	NewTrack(ctx context.Context, def sequence.Definition) (track.Track, error)
	BucketFor(kind, bucket string) string
	BucketPriority(name string) (int, bool)
}

// Resolver returns the compiled template of a sequence played as a
// sub-sequence.
type Resolver func(ctx context.Context, name string) (*Template, error)

// Generator compiles sequences. It holds no per-sequence state.
type Generator struct {
	registry Registry
}

// NewGenerator returns a generator that builds tracks with r.
func NewGenerator(r Registry) *Generator {
	return &Generator{registry: r}
}

// fieldEntity is what the segment compiler sweeps: either a track segment
// or the presence of a sub-sequence instance.
type fieldEntity struct {
	ptr      evaluation.SegmentPtr
	sequence hierarchy.SequenceID
	presence bool
}

type generation struct {
	g        *Generator
	ctx      context.Context
	seq      *sequence.Sequence
	params   Params
	previous *Template
	resolve  Resolver

	ledger    *ledger.Ledger
	hierarchy *hierarchy.Hierarchy
	subs      map[hierarchy.SequenceID]*Template
	sources   map[*sequence.Sequence]signature.Signature
	uses      map[signature.Signature]int
	entries   []segment.Entry[fieldEntity]
}

// Generate compiles seq. When previous is given, tracks whose signature is
// unchanged keep their compiled form and id; tracks that disappeared are
// released from the ledger. Sub-sequences are compiled through resolve.
func (g *Generator) Generate(ctx context.Context, seq *sequence.Sequence, params Params, previous *Template, resolve Resolver) (*Template, error) {
	gen := &generation{
		g:         g,
		ctx:       ctx,
		seq:       seq,
		params:    params,
		previous:  previous,
		resolve:   resolve,
		hierarchy: hierarchy.New(),
		subs:      make(map[hierarchy.SequenceID]*Template),
		sources:   map[*sequence.Sequence]signature.Signature{seq: seq.Signature()},
		uses:      make(map[signature.Signature]int),
	}
	if previous != nil && previous.Params == params {
		gen.ledger = previous.Ledger.Clone()
	} else {
		gen.ledger = ledger.New(params.KeepStaleTracks)
	}
	return gen.run()
}

func (gen *generation) run() (*Template, error) {
	logger := ctxlog.FromContext(gen.ctx)

	var err error
	gen.seq.AllTracks(func(_ *sequence.Binding, t *sequence.Track) {
		if err != nil {
			return
		}
		if t.IsSubSequence() {
			err = gen.addSubSequenceTrack(t)
			return
		}
		err = gen.addTrack(t)
	})
	if err != nil {
		return nil, fmt.Errorf("compiling sequence '%s': %w", gen.seq.Name, err)
	}

	released := gen.reconcileRefs()

	field := gen.buildField()
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("compiling sequence '%s': %w", gen.seq.Name, err)
	}

	t := &Template{
		Name:         gen.seq.Name,
		Sequence:     gen.seq,
		Signature:    signature.New(),
		Params:       gen.params,
		Ledger:       gen.ledger,
		Field:        field,
		Hierarchy:    gen.hierarchy,
		subTemplates: gen.subs,
	}
	gen.retainStaleSubs(t)
	t.Sources = sortedSources(gen.sources)

	logger.Debug("Compiled sequence template.",
		"sequence", t.Name,
		"tracks", t.Ledger.Len(),
		"released", released,
		"sub_sequences", t.Hierarchy.Len(),
		"segments", t.Field.Len())
	return t, nil
}

func (gen *generation) addTrack(t *sequence.Track) error {
	sig := t.Signature()
	var id track.ID
	switch ids := gen.ledger.FindTrackIDs(sig); {
	case len(ids) > 0:
		id = ids[0]
	default:
		def := t.Definition()
		impl, err := gen.g.registry.NewTrack(gen.ctx, def)
		if err != nil {
			return err
		}
		compiled := track.Compile(impl, sig, t.Kind, t.Name, def.BindingID,
			gen.g.registry.BucketFor(t.Kind, t.Bucket), t.Priority)
		id = gen.ledger.AddTrack(sig, compiled)
	}
	gen.uses[sig]++

	compiled, _ := gen.ledger.FindTrack(id)
	for i, seg := range compiled.Segments {
		gen.entries = append(gen.entries, segment.Entry[fieldEntity]{
			Range: seg.Range,
			Entity: fieldEntity{
				ptr:      evaluation.SegmentPtr{SequenceID: hierarchy.Root, TrackID: id, SegmentIndex: i},
				sequence: hierarchy.Root,
			},
		})
	}
	return nil
}

// reconcileRefs sets the reference count of every signature to the number
// of tracks that used it in this pass. Signatures nothing used are released;
// it returns how many.
func (gen *generation) reconcileRefs() int {
	released := 0
	for _, sig := range gen.ledger.Signatures() {
		want := gen.uses[sig]
		have := gen.ledger.RefCount(gen.ledger.FindTrackIDs(sig)[0])
		for ; have < want; have++ {
			gen.ledger.AddTrack(sig, nil)
		}
		for ; have > want; have-- {
			gen.ledger.RemoveTrack(sig)
		}
		if want == 0 {
			released++
		}
	}
	return released
}

func (gen *generation) addSubSequenceTrack(t *sequence.Track) error {
	for i, sec := range t.Sections() {
		if sec.SubSequence == nil || sec.Range.IsEmpty() {
			continue
		}
		sub, err := gen.resolve(gen.ctx, sec.SubSequence.Sequence)
		if err != nil {
			return fmt.Errorf("track '%s' section %d: %w", t.Name, i, err)
		}

		start := float32(0)
		if !sec.Range.Lower.IsOpen() {
			start = sec.Range.Lower.Value
		}
		scale := sec.SubSequence.TimeScale
		if scale <= 0 {
			scale = 1
		}
		tt := hierarchy.SectionTransform(start, sec.SubSequence.StartOffset, scale)

		valid := sec.Range.Intersect(tt.InvertRange(sub.Sequence.PlaybackRange))
		key := gen.seq.Name + "/" + t.Name + "/" + strconv.Itoa(i)
		id := gen.hierarchy.Add(gen.ctx, hierarchy.SubSequenceData{
			SequenceKey:      sub.Name,
			DeterministicKey: key,
			Transform:        tt,
			ValidPlayRange:   valid,
			HierarchicalBias: sec.SubSequence.Bias,
		}, hierarchy.NewSubSequenceID(key), hierarchy.Root)

		remap := gen.hierarchy.Merge(gen.ctx, sub.Hierarchy, id, tt, sec.SubSequence.Bias, valid)
		gen.subs[id] = sub
		for subID, nested := range sub.subTemplates {
			if sub.staleSubs[subID] {
				continue
			}
			gen.subs[remap[subID]] = nested
		}
		for _, src := range sub.Sources {
			gen.sources[src.Sequence] = src.Signature
		}

		gen.entries = append(gen.entries, segment.Entry[fieldEntity]{
			Range:  valid,
			Entity: fieldEntity{sequence: id, presence: true},
		})
		gen.addSubField(sub, remap, tt, valid)
	}
	return nil
}

// addSubField feeds every segment of a compiled sub-sequence into this
// template's compiler, mapped into root time and clipped to its valid range.
func (gen *generation) addSubField(sub *Template, remap map[hierarchy.SequenceID]hierarchy.SequenceID, tt hierarchy.TimeTransform, valid timerange.Range) {
	for k, r := range sub.Field.Ranges {
		rootRange := tt.InvertRange(r).Intersect(valid)
		if rootRange.IsEmpty() {
			continue
		}
		seen := make(map[evaluation.SegmentPtr]bool)
		for _, ptr := range sub.Field.Groups[k].Ptrs {
			if seen[ptr] {
				continue
			}
			seen[ptr] = true
			mapped := ptr
			mapped.SequenceID = remap[ptr.SequenceID]
			gen.entries = append(gen.entries, segment.Entry[fieldEntity]{
				Range:  rootRange,
				Entity: fieldEntity{ptr: mapped, sequence: mapped.SequenceID},
			})
		}
		for _, nested := range sub.Field.Meta[k].ActiveSequences {
			gen.entries = append(gen.entries, segment.Entry[fieldEntity]{
				Range:  rootRange,
				Entity: fieldEntity{sequence: remap[nested], presence: true},
			})
		}
	}
}

// retainStaleSubs keeps sub-sequences of the previous template that are no
// longer played, so their end hooks can still find their tracks.
func (gen *generation) retainStaleSubs(t *Template) {
	if !gen.params.KeepStaleTracks || gen.previous == nil {
		return
	}
	for id, sub := range gen.previous.subTemplates {
		if gen.previous.staleSubs[id] {
			continue
		}
		if _, ok := t.subTemplates[id]; ok {
			continue
		}
		if t.staleSubs == nil {
			t.staleSubs = make(map[hierarchy.SequenceID]bool)
		}
		t.subTemplates[id] = sub
		t.staleSubs[id] = true
	}
}

func sortedSources(m map[*sequence.Sequence]signature.Signature) []SourceSignature {
	out := make([]SourceSignature, 0, len(m))
	for seq, sig := range m {
		out = append(out, SourceSignature{Sequence: seq, Signature: sig})
	}
	slices.SortFunc(out, func(a, b SourceSignature) int {
		switch {
		case a.Sequence.Name < b.Sequence.Name:
			return -1
		case a.Sequence.Name > b.Sequence.Name:
			return 1
		}
		return 0
	})
	return out
}
