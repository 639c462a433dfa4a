// Package ctyconv binds cty values produced by the configuration loader onto
// the Go structs track modules declare for their arguments, and converts Go
// values back into cty.
package ctyconv

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter implements config.Converter.
type Converter struct{}

var _ config.Converter = (*Converter)(nil)

// New returns a Converter.
func New() *Converter {
	return &Converter{}
}

// DecodeArguments walks the fields of target, a pointer to a struct, and
// fills every field tagged `cty:"name"` from args. Fields tagged
// `cty:"name,required"` must be present.
func (c *Converter) DecodeArguments(ctx context.Context, args map[string]cty.Value, target any) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting argument decoding.", "argument_count", len(args))

	structVal := reflect.ValueOf(target)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	structVal = structVal.Elem()
	if structVal.Kind() != reflect.Struct {
		return fmt.Errorf("target must point to a struct, got %s", structVal.Kind())
	}
	structType := structVal.Type()

	known := make(map[string]struct{})
	for i := 0; i < structType.NumField(); i++ {
		fieldDef := structType.Field(i)
		fieldVal := structVal.Field(i)
		if !fieldDef.IsExported() || !fieldVal.CanSet() {
			continue
		}

		name, required := parseTag(fieldDef.Tag.Get("cty"))
		if name == "" {
			continue
		}
		known[name] = struct{}{}

		val, ok := args[name]
		if !ok {
			if required {
				return fmt.Errorf("missing required argument %q", name)
			}
			continue
		}
		if err := c.decode(ctx, val, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("failed to decode argument '%s': %w", name, err)
		}
	}

	for name := range args {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("unsupported argument %q", name)
		}
	}
	return nil
}

func parseTag(tag string) (name string, required bool) {
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "-" {
		return "", false
	}
	for _, p := range parts[1:] {
		if p == "required" {
			required = true
		}
	}
	return name, required
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// ToNative converts a cty value into plain Go values: string, float64, bool,
// []any and map[string]any.
func ToNative(val cty.Value) (any, error) {
	if val.IsNull() || !val.IsKnown() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			n, err := ToNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			n, err := ToNative(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert cty value of type %s", ty.FriendlyName())
	}
}

// Float32 reads a cty number.
func Float32(val cty.Value) (float32, error) {
	if val.IsNull() || !val.IsKnown() || val.Type() != cty.Number {
		return 0, fmt.Errorf("expected a number, got %s", friendly(val))
	}
	f, _ := val.AsBigFloat().Float32()
	return f, nil
}

// NumberVal wraps a float32 as a cty number.
func NumberVal(f float32) cty.Value {
	return cty.NumberFloatVal(float64(f))
}

func friendly(val cty.Value) string {
	if val.IsNull() {
		return "null"
	}
	return val.Type().FriendlyName()
}
