package spawnregister

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/scene"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInMemory_SpawnFindDestroy(t *testing.T) {
	ctx := testContext()
	sc := scene.New()
	r := NewInMemory(sc)
	r.Define("intro.hero", Spawnable{Class: "Character"})

	h, err := r.SpawnObject(ctx, "intro.hero", hierarchy.Root)
	require.NoError(t, err)
	assert.True(t, sc.Exists(h))

	again, err := r.SpawnObject(ctx, "intro.hero", hierarchy.Root)
	require.NoError(t, err)
	assert.Equal(t, h, again, "spawning twice returns the same object")

	found, ok := r.FindSpawnedObject("intro.hero", hierarchy.Root)
	require.True(t, ok)
	assert.Equal(t, h, found)

	assert.True(t, r.DestroySpawnedObject(ctx, "intro.hero", hierarchy.Root))
	assert.False(t, r.DestroySpawnedObject(ctx, "intro.hero", hierarchy.Root), "destroy is idempotent")
	assert.False(t, sc.Exists(h))
}

func TestInMemory_UndefinedSpawnable(t *testing.T) {
	r := NewInMemory(scene.New())
	_, err := r.SpawnObject(testContext(), "missing", hierarchy.Root)
	assert.Error(t, err)
}

func TestInMemory_SequenceExpiry(t *testing.T) {
	ctx := testContext()
	sc := scene.New()
	r := NewInMemory(sc)
	r.Define("a", Spawnable{Class: "Prop"})
	r.Define("b", Spawnable{Class: "Prop"})

	sub := hierarchy.NewSubSequenceID("shots/0")
	_, err := r.SpawnObject(ctx, "a", sub)
	require.NoError(t, err)
	_, err = r.SpawnObject(ctx, "b", sub)
	require.NoError(t, err)
	kept, err := r.SpawnObject(ctx, "a", hierarchy.Root)
	require.NoError(t, err)

	r.OnSequenceExpired(ctx, sub)

	assert.Equal(t, 1, r.Len())
	assert.True(t, sc.Exists(kept))

	r.DestroyAll(ctx)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, sc.Len())
}
