package spawn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/testutil"
	"github.com/vk/seqcore/modules/spawn"
)

const crateHCL = `
sequence "s" {
  playback_range = [0, 10]

  binding "crate" {
    spawnable  = true
    class      = "box"
    properties = { size = 2 }

    track "spawn" "life" {
      section {
        start = 2
        end   = 5
      }
      section {
        start      = 6
        end        = 8
        completion = "keep"
      }
    }
  }
}
`

func spawned(pb *testutil.Playback) bool {
	_, ok := pb.Player.SpawnRegister().FindSpawnedObject(sequence.BindingID("s", "crate"), hierarchy.Root)
	return ok
}

func TestSpawn_Lifetime(t *testing.T) {
	pb := testutil.NewPlayback(t, crateHCL, "s", &spawn.Module{})

	pb.Jump(t, 1)
	assert.False(t, spawned(pb))
	assert.Zero(t, pb.World.Len())

	pb.Jump(t, 3)
	require.True(t, spawned(pb))
	h, _ := pb.Player.SpawnRegister().FindSpawnedObject(sequence.BindingID("s", "crate"), hierarchy.Root)
	_, class, ok := pb.World.Describe(h)
	require.True(t, ok)
	assert.Equal(t, "box", class)

	pb.Jump(t, 4)
	assert.Equal(t, 1, pb.World.Len(), "re-evaluating an active section must not spawn twice")

	pb.Jump(t, 5.5)
	assert.False(t, spawned(pb))
	assert.Zero(t, pb.World.Len())
}

func TestSpawn_KeepLeavesObject(t *testing.T) {
	pb := testutil.NewPlayback(t, crateHCL, "s", &spawn.Module{})

	pb.Jump(t, 7)
	require.True(t, spawned(pb))

	pb.Jump(t, 9)
	assert.True(t, spawned(pb))

	require.NoError(t, pb.Player.Stop(testutil.Context()))
	assert.False(t, spawned(pb), "stopping destroys everything the sequence spawned")
}

func TestSpawn_RequiresBinding(t *testing.T) {
	lib, conv := testutil.LoadHCL(t, `
sequence "s" {
  track "spawn" "orphan" {
    section {
      start = 0
      end   = 1
    }
  }
}
`)
	reg := registry.New()
	reg.SetConverter(conv)
	(&spawn.Module{}).Register(reg)

	seq, _ := lib.Get("s")
	_, err := reg.NewTrack(testutil.Context(), seq.Tracks()[0].Definition())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must belong to a binding")
}

func TestSpawn_RegistersBucket(t *testing.T) {
	reg := registry.New()
	(&spawn.Module{}).Register(reg)

	p, ok := reg.BucketPriority(spawn.Bucket)
	require.True(t, ok)
	assert.Equal(t, spawn.BucketPriority, p)
	assert.Equal(t, spawn.Bucket, reg.BucketFor(spawn.Kind, ""))
}
