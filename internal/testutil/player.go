package testutil

import (
	"context"

	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/preanimated"
	"github.com/vk/seqcore/internal/scene"
	"github.com/vk/seqcore/internal/spawnregister"
	"github.com/vk/seqcore/internal/track"
)

// FakePlayer satisfies track.Player with an in-memory scene. Bindings are
// resolved by looking up the spawned object first and then a scene object
// named after the binding id.
type FakePlayer struct {
	World    *scene.Scene
	Register *RecordingRegister
	State    *preanimated.State
}

var _ track.Player = (*FakePlayer)(nil)

// NewFakePlayer returns a player over an empty scene.
func NewFakePlayer(rec *Recorder) *FakePlayer {
	sc := scene.New()
	return &FakePlayer{
		World:    sc,
		Register: &RecordingRegister{InMemory: spawnregister.NewInMemory(sc), Rec: rec},
		State:    preanimated.New(),
	}
}

func (p *FakePlayer) SpawnRegister() spawnregister.Register { return p.Register }
func (p *FakePlayer) Scene() *scene.Scene                   { return p.World }
func (p *FakePlayer) PreAnimated() *preanimated.State       { return p.State }

func (p *FakePlayer) ResolveBinding(bindingID string, seq hierarchy.SequenceID) (scene.Handle, bool) {
	if h, ok := p.Register.FindSpawnedObject(bindingID, seq); ok {
		return h, true
	}
	return p.World.FindByName(bindingID)
}

// RecordingRegister logs sequence expirations as "expire <id>".
type RecordingRegister struct {
	*spawnregister.InMemory
	Rec *Recorder
}

// OnSequenceExpired records the call and forwards it.
func (r *RecordingRegister) OnSequenceExpired(ctx context.Context, seq hierarchy.SequenceID) {
	if r.Rec != nil {
		r.Rec.Add("expire %s", seq)
	}
	r.InMemory.OnSequenceExpired(ctx, seq)
}
