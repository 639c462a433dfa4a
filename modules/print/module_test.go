package print_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vk/seqcore/internal/testutil"
	"github.com/vk/seqcore/modules/print"
)

const bannerHCL = `
sequence "s" {
  playback_range = [0, 10]

  track "print" "banner" {
    arguments {
      message = "default message"
      values  = { act = "one" }
    }
    section {
      start = 1
      end   = 3
    }
    section {
      start = 4
      end   = 6
      arguments {
        message = "second act"
        values  = { act = "two", mood = "tense" }
      }
    }
  }
}
`

func TestPrint_WritesOnActivation(t *testing.T) {
	var out bytes.Buffer
	pb := testutil.NewPlayback(t, bannerHCL, "s", &print.Module{Out: &out})

	pb.Jump(t, 2)
	pb.Jump(t, 2.5)
	assert.Equal(t, "[banner @ 2] default message\n      act = \"one\"\n", out.String())

	out.Reset()
	pb.Jump(t, 5)
	assert.Equal(t, "[banner @ 5] second act\n      act = \"two\"\n      mood = \"tense\"\n", out.String())
}

func TestPrint_SilentIsQuiet(t *testing.T) {
	var out bytes.Buffer
	pb := testutil.NewPlayback(t, bannerHCL, "s", &print.Module{Out: &out})
	pb.Player.SetSilent(true)

	pb.Play(t, 8, 1)

	assert.Empty(t, out.String())
}
