package propertypath

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Get reads the value addressed by p inside root, which must be an object or
// map of properties.
func (p Path) Get(root cty.Value) (cty.Value, error) {
	cur := root
	for _, seg := range p.Segments {
		next, err := attr(cur, seg.Name)
		if err != nil {
			return cty.NilVal, fmt.Errorf("%s: %w", p, err)
		}
		if seg.HasIndex() {
			if next, err = element(next, seg.Index); err != nil {
				return cty.NilVal, fmt.Errorf("%s: %w", p, err)
			}
		}
		cur = next
	}
	return cur, nil
}

// Set returns a copy of root with the value at p replaced by v. Missing
// attributes along the path are created; missing list elements are not.
func (p Path) Set(root cty.Value, v cty.Value) (cty.Value, error) {
	if len(p.Segments) == 0 {
		return v, nil
	}
	out, err := set(root, p.Segments, v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("%s: %w", p, err)
	}
	return out, nil
}

func set(cur cty.Value, segs []Segment, v cty.Value) (cty.Value, error) {
	seg := segs[0]
	attrs := map[string]cty.Value{}
	if !cur.IsNull() && cur.IsKnown() {
		ty := cur.Type()
		if !ty.IsObjectType() && !ty.IsMapType() {
			return cty.NilVal, fmt.Errorf("cannot set %q on a value of type %s", seg.Name, ty.FriendlyName())
		}
		attrs = cur.AsValueMap()
		if attrs == nil {
			attrs = map[string]cty.Value{}
		}
	}

	child, ok := attrs[seg.Name]
	if !ok {
		child = cty.NullVal(cty.DynamicPseudoType)
	}

	var err error
	switch {
	case seg.HasIndex():
		var elem cty.Value
		if elem, err = element(child, seg.Index); err != nil {
			return cty.NilVal, err
		}
		if len(segs) > 1 {
			if elem, err = set(elem, segs[1:], v); err != nil {
				return cty.NilVal, err
			}
		} else {
			elem = v
		}
		if child, err = replaceElement(child, seg.Index, elem); err != nil {
			return cty.NilVal, err
		}
	case len(segs) > 1:
		if child, err = set(child, segs[1:], v); err != nil {
			return cty.NilVal, err
		}
	default:
		child = v
	}

	attrs[seg.Name] = child
	return cty.ObjectVal(attrs), nil
}

func attr(v cty.Value, name string) (cty.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("no attribute %q on a null value", name)
	}
	ty := v.Type()
	switch {
	case ty.IsObjectType():
		if !ty.HasAttribute(name) {
			return cty.NilVal, fmt.Errorf("no attribute %q", name)
		}
		return v.GetAttr(name), nil
	case ty.IsMapType():
		key := cty.StringVal(name)
		if !v.HasIndex(key).True() {
			return cty.NilVal, fmt.Errorf("no attribute %q", name)
		}
		return v.Index(key), nil
	default:
		return cty.NilVal, fmt.Errorf("cannot read %q from a value of type %s", name, ty.FriendlyName())
	}
}

func element(v cty.Value, idx int) (cty.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("index %d on a null value", idx)
	}
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() {
		return cty.NilVal, fmt.Errorf("cannot index a value of type %s", ty.FriendlyName())
	}
	if idx >= v.LengthInt() {
		return cty.NilVal, fmt.Errorf("index %d out of range", idx)
	}
	return v.Index(cty.NumberIntVal(int64(idx))), nil
}

func replaceElement(list cty.Value, idx int, elem cty.Value) (cty.Value, error) {
	elems := list.AsValueSlice()
	if idx >= len(elems) {
		return cty.NilVal, fmt.Errorf("index %d out of range", idx)
	}
	elems[idx] = elem
	if list.Type().IsListType() && elem.Type().Equals(list.Type().ElementType()) {
		return cty.ListVal(elems), nil
	}
	return cty.TupleVal(elems), nil
}
