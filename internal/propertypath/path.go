// Package propertypath addresses values nested inside an object's
// properties, using the dotted form `name.sub[index]`.
package propertypath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one component of a path, e.g. `color[0]`.
type Segment struct {
	Name  string
	Index int // -1 indicates no index is present.
}

// NewSegment creates a segment without an index.
func NewSegment(name string) Segment {
	return Segment{Name: name, Index: -1}
}

// NewIndexedSegment creates a segment that includes an index.
func NewIndexedSegment(name string, index int) Segment {
	return Segment{Name: name, Index: index}
}

// HasIndex reports whether the segment carries an explicit index.
func (s Segment) HasIndex() bool {
	return s.Index != -1
}

// Path is a parsed property path.
type Path struct {
	Segments []Segment
}

var segmentRegex = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)(?:\[(\d+)\])?$`)

// Parse reads a path from its canonical string form.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("property path cannot be empty")
	}

	var p Path
	for _, part := range strings.Split(raw, ".") {
		if part == "" {
			return Path{}, fmt.Errorf("property path %q contains an empty segment", raw)
		}
		m := segmentRegex.FindStringSubmatch(part)
		if m == nil {
			return Path{}, fmt.Errorf("invalid property path segment %q", part)
		}
		seg := NewSegment(m[1])
		if m[2] != "" {
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				return Path{}, fmt.Errorf("invalid index in %q: %w", part, err)
			}
			seg.Index = idx
		}
		p.Segments = append(p.Segments, seg)
	}
	return p, nil
}

// MustParse is Parse for paths known to be valid.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Root returns the name of the top-level property.
func (p Path) Root() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[0].Name
}

func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p.Segments {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Name)
		if s.HasIndex() {
			fmt.Fprintf(&sb, "[%d]", s.Index)
		}
	}
	return sb.String()
}

// Equal reports whether both paths address the same property.
func (p Path) Equal(o Path) bool {
	if len(p.Segments) != len(o.Segments) {
		return false
	}
	for i := range p.Segments {
		if p.Segments[i] != o.Segments[i] {
			return false
		}
	}
	return true
}
