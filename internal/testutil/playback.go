package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/player"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/scene"
	"github.com/vk/seqcore/internal/template"
)

// Playback is a player over HCL sequences, for exercising track modules
// through real compilation and evaluation.
type Playback struct {
	Player    *player.Player
	World     *scene.Scene
	Templates *template.Store
}

// NewPlayback loads src, registers modules and initializes a player on the
// named sequence. The scene starts empty; tests add possessed objects to
// World before evaluating.
func NewPlayback(t *testing.T, src, root string, modules ...registry.Module) *Playback {
	t.Helper()

	lib, conv := LoadHCL(t, src)
	reg := NewRegistry(conv, modules...)

	world := scene.New()
	store := template.NewStore(lib, template.NewGenerator(reg), template.Params{KeepStaleTracks: true})
	p := player.New(lib, store, world, player.Hooks{})
	require.NoError(t, p.Initialize(Context(), root, player.Settings{}))
	return &Playback{Player: p, World: world, Templates: store}
}

// Jump evaluates a discontinuous cut to t.
func (pb *Playback) Jump(t *testing.T, at float32) {
	t.Helper()
	require.NoError(t, pb.Player.JumpToPosition(Context(), at))
}

// Play starts playback and advances it n times by dt.
func (pb *Playback) Play(t *testing.T, n int, dt float32) {
	t.Helper()
	require.NoError(t, pb.Player.Play(Context()))
	for range n {
		require.NoError(t, pb.Player.Update(Context(), dt))
	}
}
