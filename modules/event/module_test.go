package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/scene"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/testutil"
	"github.com/vk/seqcore/modules/event"
)

const cuesHCL = `
sequence "s" {
  playback_range = [0, 10]

  binding "hero" {
    possess = "Hero01"

    track "event" "forward" {
      section {
        start = 0
        end   = 10
        key {
          time  = 2
          value = "set_property('f2', time)"
        }
        key {
          time  = 4
          value = "log('second cue'); set_property('f4', 'done')"
        }
      }
    }

    track "event" "both_ways" {
      arguments {
        fire_backwards = true
      }
      section {
        start = 0
        end   = 10
        key {
          time  = 2
          value = "set_property('b2', true)"
        }
        key {
          time  = 4
          value = "set_property('b4', true)"
        }
      }
    }
  }
}
`

func newCues(t *testing.T) (*testutil.Playback, scene.Handle) {
	t.Helper()
	pb := testutil.NewPlayback(t, cuesHCL, "s", &event.Module{})
	h := pb.World.Add("Hero01", "Actor", cty.EmptyObjectVal)
	return pb, h
}

func props(t *testing.T, pb *testutil.Playback, h scene.Handle) map[string]cty.Value {
	t.Helper()
	v, ok := pb.World.Properties(h)
	require.True(t, ok)
	m := v.AsValueMap()
	if m == nil {
		m = map[string]cty.Value{}
	}
	return m
}

func TestEvent_FiresWhenSwept(t *testing.T) {
	pb, h := newCues(t)

	pb.Play(t, 3, 1)
	p := props(t, pb, h)
	require.Contains(t, p, "f2")
	assert.True(t, p["f2"].Equals(cty.NumberIntVal(2)).True(), "chunks see the key time")
	assert.NotContains(t, p, "f4")

	pb.Play(t, 2, 1)
	p = props(t, pb, h)
	require.Contains(t, p, "f4")
	assert.Equal(t, "done", p["f4"].AsString())
	assert.Contains(t, p, "b2")
	assert.Contains(t, p, "b4")
}

func TestEvent_SuppressedOnJump(t *testing.T) {
	pb, h := newCues(t)

	pb.Jump(t, 5)

	assert.Empty(t, props(t, pb, h))
}

func TestEvent_SuppressedWhenSilent(t *testing.T) {
	pb, h := newCues(t)
	pb.Player.SetSilent(true)

	pb.Play(t, 5, 1)

	assert.Empty(t, props(t, pb, h))
}

func TestEvent_Backwards(t *testing.T) {
	pb, h := newCues(t)
	pb.Jump(t, 5)
	pb.Player.SetReverse(true)

	pb.Play(t, 1, 2)

	p := props(t, pb, h)
	assert.Contains(t, p, "b4")
	assert.NotContains(t, p, "b2")
	assert.NotContains(t, p, "f4", "tracks without fire_backwards stay quiet in reverse")
}

func TestEvent_InvalidKeys(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		wantErr string
	}{
		{name: "not a string", value: "42", wantErr: "must be a Lua string"},
		{name: "not lua", value: `"this is not lua ("`, wantErr: "key at 1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lib, conv := testutil.LoadHCL(t, `
sequence "s" {
  track "event" "e" {
    section {
      start = 0
      end   = 2
      key {
        time  = 1
        value = `+tc.value+`
      }
    }
  }
}`)
			reg := registry.New()
			reg.SetConverter(conv)
			(&event.Module{}).Register(reg)

			seq, _ := lib.Get("s")
			var err error
			seq.AllTracks(func(_ *sequence.Binding, tr *sequence.Track) {
				_, err = reg.NewTrack(testutil.Context(), tr.Definition())
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
