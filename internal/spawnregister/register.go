// Package spawnregister tracks objects spawned by sequences.
//
// Objects are keyed by the spawnable's binding id and the sequence instance
// that spawned it, so the same spawnable played by two sub-sequence instances
// produces two independent objects. Destroy calls are idempotent.
package spawnregister

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/scene"
	"github.com/zclconf/go-cty/cty"
)

// Register is the collaborator that owns spawned objects.
type Register interface {
	SpawnObject(ctx context.Context, id string, seq hierarchy.SequenceID) (scene.Handle, error)
	DestroySpawnedObject(ctx context.Context, id string, seq hierarchy.SequenceID) bool
	FindSpawnedObject(id string, seq hierarchy.SequenceID) (scene.Handle, bool)
	// OnSequenceExpired destroys everything spawned by seq.
	OnSequenceExpired(ctx context.Context, seq hierarchy.SequenceID)
}

// Spawnable describes how to create the object for a binding id.
type Spawnable struct {
	Name       string
	Class      string
	Properties cty.Value
}

type key struct {
	id  string
	seq hierarchy.SequenceID
}

// InMemory spawns objects into a scene.Scene. The spawned table uses
// sync.Map because entries are written from token application and read from
// binding resolution on every frame.
type InMemory struct {
	scene   *scene.Scene
	defs    sync.Map // string -> Spawnable
	spawned sync.Map // key -> scene.Handle
}

var _ Register = (*InMemory)(nil)

// NewInMemory returns a register that spawns into sc.
func NewInMemory(sc *scene.Scene) *InMemory {
	return &InMemory{scene: sc}
}

// Define declares the spawnable for a binding id. Later definitions replace
// earlier ones.
func (r *InMemory) Define(id string, sp Spawnable) {
	r.defs.Store(id, sp)
}

// SpawnObject creates the object for id, or returns the existing one.
func (r *InMemory) SpawnObject(ctx context.Context, id string, seq hierarchy.SequenceID) (scene.Handle, error) {
	k := key{id: id, seq: seq}
	if h, ok := r.spawned.Load(k); ok {
		return h.(scene.Handle), nil
	}

	def, ok := r.defs.Load(id)
	if !ok {
		return scene.NoHandle, fmt.Errorf("no spawnable defined for binding %q", id)
	}
	sp := def.(Spawnable)

	h := r.scene.Add("", sp.Class, sp.Properties)
	if prev, loaded := r.spawned.LoadOrStore(k, h); loaded {
		r.scene.Remove(h)
		return prev.(scene.Handle), nil
	}
	ctxlog.FromContext(ctx).Debug("Spawned object.", "binding", id, "sequence", seq, "handle", h, "class", sp.Class)
	return h, nil
}

// DestroySpawnedObject removes the object for id and reports whether one
// existed.
func (r *InMemory) DestroySpawnedObject(ctx context.Context, id string, seq hierarchy.SequenceID) bool {
	v, ok := r.spawned.LoadAndDelete(key{id: id, seq: seq})
	if !ok {
		return false
	}
	h := v.(scene.Handle)
	r.scene.Remove(h)
	ctxlog.FromContext(ctx).Debug("Destroyed spawned object.", "binding", id, "sequence", seq, "handle", h)
	return true
}

// FindSpawnedObject returns the live object for id.
func (r *InMemory) FindSpawnedObject(id string, seq hierarchy.SequenceID) (scene.Handle, bool) {
	v, ok := r.spawned.Load(key{id: id, seq: seq})
	if !ok {
		return scene.NoHandle, false
	}
	return v.(scene.Handle), true
}

// OnSequenceExpired destroys every object spawned by seq.
func (r *InMemory) OnSequenceExpired(ctx context.Context, seq hierarchy.SequenceID) {
	r.spawned.Range(func(k, _ any) bool {
		if kk := k.(key); kk.seq == seq {
			r.DestroySpawnedObject(ctx, kk.id, kk.seq)
		}
		return true
	})
}

// DestroyAll removes every spawned object.
func (r *InMemory) DestroyAll(ctx context.Context) {
	r.spawned.Range(func(k, _ any) bool {
		kk := k.(key)
		r.DestroySpawnedObject(ctx, kk.id, kk.seq)
		return true
	})
}

// Len returns the number of live spawned objects.
func (r *InMemory) Len() int {
	n := 0
	r.spawned.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
