package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// newEvalContext returns the context every sequence expression is evaluated
// in. The only variable is `env`, a map of the environment variables.
func newEvalContext(environ map[string]string) *hcl.EvalContext {
	env := cty.MapValEmpty(cty.String)
	if len(environ) > 0 {
		vals := make(map[string]cty.Value, len(environ))
		for k, v := range environ {
			vals[k] = cty.StringVal(v)
		}
		env = cty.MapVal(vals)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": env,
		},
		Functions: map[string]function.Function{
			"abs":        stdlib.AbsoluteFunc,
			"ceil":       stdlib.CeilFunc,
			"floor":      stdlib.FloorFunc,
			"max":        stdlib.MaxFunc,
			"min":        stdlib.MinFunc,
			"pow":        stdlib.PowFunc,
			"upper":      stdlib.UpperFunc,
			"lower":      stdlib.LowerFunc,
			"format":     stdlib.FormatFunc,
			"join":       stdlib.JoinFunc,
			"concat":     stdlib.ConcatFunc,
			"length":     stdlib.LengthFunc,
			"merge":      stdlib.MergeFunc,
			"range":      stdlib.RangeFunc,
			"jsonencode": stdlib.JSONEncodeFunc,
		},
	}
}
