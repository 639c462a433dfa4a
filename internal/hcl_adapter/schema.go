package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Buckets   []*bucketBlock   `hcl:"bucket,block"`
	Sequences []*sequenceBlock `hcl:"sequence,block"`
	Remain    hcl.Body         `hcl:",remain"`
}

type bucketBlock struct {
	Name     string `hcl:"name,label"`
	Priority int    `hcl:"priority,optional"`
}

type sequenceBlock struct {
	Name               string          `hcl:"name,label"`
	PlaybackRange      []float64       `hcl:"playback_range,optional"`
	FixedFrameInterval float64         `hcl:"fixed_frame_interval,optional"`
	Tracks             []*trackBlock   `hcl:"track,block"`
	Bindings           []*bindingBlock `hcl:"binding,block"`
}

type bindingBlock struct {
	Name       string        `hcl:"name,label"`
	Spawnable  bool          `hcl:"spawnable,optional"`
	Class      string        `hcl:"class,optional"`
	Possess    string        `hcl:"possess,optional"`
	Properties cty.Value     `hcl:"properties,optional"`
	Tracks     []*trackBlock `hcl:"track,block"`
}

type trackBlock struct {
	Kind      string          `hcl:"kind,label"`
	Name      string          `hcl:"name,label"`
	Bucket    string          `hcl:"bucket,optional"`
	Priority  int             `hcl:"priority,optional"`
	Arguments *argumentsBlock `hcl:"arguments,block"`
	Sections  []*sectionBlock `hcl:"section,block"`
}

// argumentsBlock holds free-form attributes interpreted by the track kind.
type argumentsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type sectionBlock struct {
	Start        hcl.Expression  `hcl:"start,optional"`
	End          hcl.Expression  `hcl:"end,optional"`
	InclusiveEnd bool            `hcl:"inclusive_end,optional"`
	PreRoll      float64         `hcl:"pre_roll,optional"`
	PostRoll     float64         `hcl:"post_roll,optional"`
	Completion   string          `hcl:"completion,optional"`
	Arguments    *argumentsBlock `hcl:"arguments,block"`
	Keys         []*keyBlock     `hcl:"key,block"`

	// Only meaningful on sub_sequence tracks.
	Sequence    string         `hcl:"sequence,optional"`
	StartOffset float64        `hcl:"start_offset,optional"`
	TimeScale   hcl.Expression `hcl:"time_scale,optional"`
	Bias        int            `hcl:"bias,optional"`
}

type keyBlock struct {
	Time  float64   `hcl:"time"`
	Value cty.Value `hcl:"value"`
}
