package preanimated

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/propertypath"
	"github.com/vk/seqcore/internal/scene"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestState_RestoreAfterLastOwner(t *testing.T) {
	ctx := testContext()
	sc := scene.New()
	intensity := propertypath.MustParse("intensity")
	h := sc.Add("lamp", "Light", cty.ObjectVal(map[string]cty.Value{"intensity": cty.NumberIntVal(1)}))

	s := New()
	s.Capture("a", sc, h, intensity)
	require.NoError(t, sc.Set(h, intensity, cty.NumberIntVal(5)))
	s.Capture("b", sc, h, intensity)
	require.NoError(t, sc.Set(h, intensity, cty.NumberIntVal(9)))

	assert.Equal(t, 0, s.Restore(ctx, "a", sc), "b still holds the property")
	v, _ := sc.Get(h, intensity)
	assert.True(t, v.RawEquals(cty.NumberIntVal(9)))

	assert.Equal(t, 1, s.Restore(ctx, "b", sc))
	v, _ = sc.Get(h, intensity)
	assert.True(t, v.RawEquals(cty.NumberIntVal(1)), "original value captured by the first writer")
	assert.Equal(t, 0, s.Len())
}

func TestState_CaptureIsOncePerOwner(t *testing.T) {
	sc := scene.New()
	p := propertypath.MustParse("x")
	h := sc.Add("", "Prop", cty.ObjectVal(map[string]cty.Value{"x": cty.NumberIntVal(0)}))

	s := New()
	s.Capture("a", sc, h, p)
	s.Capture("a", sc, h, p)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Restore(testContext(), "a", sc))
}

func TestState_Discard(t *testing.T) {
	ctx := testContext()
	sc := scene.New()
	p := propertypath.MustParse("x")
	h := sc.Add("", "Prop", cty.ObjectVal(map[string]cty.Value{"x": cty.NumberIntVal(0)}))

	s := New()
	s.Capture("a", sc, h, p)
	require.NoError(t, sc.Set(h, p, cty.NumberIntVal(3)))
	s.Discard(ctx, "a")

	v, _ := sc.Get(h, p)
	assert.True(t, v.RawEquals(cty.NumberIntVal(3)))
	assert.Equal(t, 0, s.Len())
}
