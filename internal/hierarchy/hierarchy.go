// Package hierarchy describes the tree of sub-sequences reachable from a root
// sequence, along with the time transform that maps root time into each one.
package hierarchy

import (
	"context"
	"maps"
	"slices"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/timerange"
)

// SubSequenceData describes one sub-sequence instance as seen from the root.
type SubSequenceData struct {
	// SequenceKey names the sequence asset played by this instance.
	SequenceKey string
	// DeterministicKey is the position-derived key the id was hashed from.
	DeterministicKey string
	// Transform maps root time into this sequence's local time.
	Transform TimeTransform
	// ValidPlayRange is expressed in root time.
	ValidPlayRange timerange.Range
	// HierarchicalBias accumulates down the tree; lower values override.
	HierarchicalBias int
}

// Node links a sequence id to its place in the tree.
type Node struct {
	Parent   SequenceID
	Children []SequenceID
}

// Hierarchy is a tree of sub-sequences keyed by sequence id. The root node
// always exists and carries no sub-sequence data.
type Hierarchy struct {
	nodes map[SequenceID]*Node
	data  map[SequenceID]SubSequenceData
}

// New returns a hierarchy containing only the root.
func New() *Hierarchy {
	return &Hierarchy{
		nodes: map[SequenceID]*Node{Root: {Parent: Root}},
		data:  make(map[SequenceID]SubSequenceData),
	}
}

// Add inserts a sub-sequence under parent and returns the id it was stored
// under. If id is already taken, the collision is logged and a deterministic
// alternative is chosen.
func (h *Hierarchy) Add(ctx context.Context, data SubSequenceData, id, parent SequenceID) SequenceID {
	final := id
	for salt := 1; final == Root || h.has(final); salt++ {
		final = id.Perturb(salt)
	}
	if final != id {
		ctxlog.FromContext(ctx).Warn("Sub-sequence id collision, using a perturbed id.",
			"sequence", data.SequenceKey, "key", data.DeterministicKey, "id", id, "resolved", final)
	}

	p, ok := h.nodes[parent]
	if !ok {
		p = &Node{Parent: Root}
		h.nodes[parent] = p
	}
	p.Children = append(p.Children, final)
	h.nodes[final] = &Node{Parent: parent}
	h.data[final] = data
	return final
}

func (h *Hierarchy) has(id SequenceID) bool {
	_, ok := h.nodes[id]
	return ok
}

// Find returns the sub-sequence data for id. The root has none.
func (h *Hierarchy) Find(id SequenceID) (SubSequenceData, bool) {
	d, ok := h.data[id]
	return d, ok
}

// FindNode returns the tree node for id.
func (h *Hierarchy) FindNode(id SequenceID) (*Node, bool) {
	n, ok := h.nodes[id]
	return n, ok
}

// Children returns the direct children of id.
func (h *Hierarchy) Children(id SequenceID) []SequenceID {
	if n, ok := h.nodes[id]; ok {
		return n.Children
	}
	return nil
}

// Transform returns the root-to-local transform for id.
func (h *Hierarchy) Transform(id SequenceID) TimeTransform {
	if d, ok := h.data[id]; ok {
		return d.Transform
	}
	return Identity()
}

// Bias returns the accumulated hierarchical bias of id.
func (h *Hierarchy) Bias(id SequenceID) int {
	return h.data[id].HierarchicalBias
}

// IDs returns every sub-sequence id in ascending order.
func (h *Hierarchy) IDs() []SequenceID {
	return slices.Sorted(maps.Keys(h.data))
}

// Len returns the number of sub-sequences.
func (h *Hierarchy) Len() int { return len(h.data) }

// Clone returns a deep copy.
func (h *Hierarchy) Clone() *Hierarchy {
	c := &Hierarchy{
		nodes: make(map[SequenceID]*Node, len(h.nodes)),
		data:  maps.Clone(h.data),
	}
	for id, n := range h.nodes {
		c.nodes[id] = &Node{Parent: n.Parent, Children: slices.Clone(n.Children)}
	}
	return c
}

// Merge grafts every sub-sequence of child under parent. Ids from child are
// accumulated against parent and transforms are composed with outer, which
// maps this hierarchy's root time into child's root time.
func (h *Hierarchy) Merge(ctx context.Context, child *Hierarchy, parent SequenceID, outer TimeTransform, bias int, clip timerange.Range) map[SequenceID]SequenceID {
	remap := map[SequenceID]SequenceID{Root: parent}
	var walk func(from SequenceID)
	walk = func(from SequenceID) {
		for _, cid := range child.Children(from) {
			d := child.data[cid]
			d.Transform = outer.Then(d.Transform)
			d.ValidPlayRange = outer.InvertRange(d.ValidPlayRange).Intersect(clip)
			d.HierarchicalBias += bias
			remap[cid] = h.Add(ctx, d, cid.Accumulate(parent), remap[from])
			walk(cid)
		}
	}
	walk(Root)
	return remap
}
