// Package preanimated saves property values before a sequence first writes
// them so they can be put back when the writer stops evaluating.
//
// Several entities may animate the same property. The original value is
// captured once, by whichever entity writes first, and is restored only when
// the last of them releases it.
package preanimated

import (
	"context"
	"sync"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/propertypath"
	"github.com/vk/seqcore/internal/scene"
	"github.com/zclconf/go-cty/cty"
)

type target struct {
	handle scene.Handle
	path   string
}

type entry struct {
	path   propertypath.Path
	value  cty.Value
	owners int
}

// State is safe for concurrent use. Owners are arbitrary comparable keys,
// typically the entity that performs the write.
type State struct {
	mu      sync.Mutex
	entries map[target]*entry
	owned   map[any][]target
}

// New returns an empty State.
func New() *State {
	return &State{
		entries: make(map[target]*entry),
		owned:   make(map[any][]target),
	}
}

// Capture records the current value of path on h for owner, unless owner
// has already captured it.
func (s *State) Capture(owner any, sc *scene.Scene, h scene.Handle, path propertypath.Path) {
	t := target{handle: h, path: path.String()}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.owned[owner] {
		if o == t {
			return
		}
	}

	e, ok := s.entries[t]
	if !ok {
		v, err := sc.Get(h, path)
		if err != nil {
			// The property did not exist before; restoring sets it to null.
			v = cty.NullVal(cty.DynamicPseudoType)
		}
		e = &entry{path: path, value: v}
		s.entries[t] = e
	}
	e.owners++
	s.owned[owner] = append(s.owned[owner], t)
}

// Restore releases everything owner captured, writing original values back
// for properties no other owner still holds. It returns the number of
// properties written.
func (s *State) Restore(ctx context.Context, owner any, sc *scene.Scene) int {
	return s.release(ctx, owner, sc, true)
}

// Discard releases owner's captures without restoring, leaving the animated
// values in place.
func (s *State) Discard(ctx context.Context, owner any) {
	s.release(ctx, owner, nil, false)
}

func (s *State) release(ctx context.Context, owner any, sc *scene.Scene, restore bool) int {
	s.mu.Lock()
	targets := s.owned[owner]
	delete(s.owned, owner)

	type write struct {
		t target
		e *entry
	}
	var writes []write
	// Release in reverse capture order.
	for i := len(targets) - 1; i >= 0; i-- {
		t := targets[i]
		e, ok := s.entries[t]
		if !ok {
			continue
		}
		if e.owners--; e.owners > 0 {
			continue
		}
		delete(s.entries, t)
		if restore {
			writes = append(writes, write{t: t, e: e})
		}
	}
	s.mu.Unlock()

	n := 0
	for _, w := range writes {
		if !sc.Exists(w.t.handle) {
			continue
		}
		if err := sc.Set(w.t.handle, w.e.path, w.e.value); err != nil {
			ctxlog.FromContext(ctx).Warn("Failed to restore pre-animated value.", "handle", w.t.handle, "path", w.t.path, "error", err)
			continue
		}
		n++
	}
	return n
}

// Len returns the number of captured properties.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
