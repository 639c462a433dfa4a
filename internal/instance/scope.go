package instance

import (
	"github.com/vk/seqcore/internal/evaluation"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/template"
	"github.com/vk/seqcore/internal/timerange"
)

// scope restricts a frame to a root override and its descendants. The zero
// override keeps everything.
type scope struct {
	override  hierarchy.SequenceID
	transform hierarchy.TimeTransform
	members   map[hierarchy.SequenceID]bool
}

func newScope(tpl *template.Template, override hierarchy.SequenceID) scope {
	s := scope{override: override, transform: hierarchy.Identity()}
	if override == hierarchy.Root {
		return s
	}
	s.transform = tpl.Hierarchy.Transform(override)
	s.members = map[hierarchy.SequenceID]bool{}
	var walk func(id hierarchy.SequenceID)
	walk = func(id hierarchy.SequenceID) {
		s.members[id] = true
		for _, c := range tpl.Hierarchy.Children(id) {
			walk(c)
		}
	}
	walk(override)
	return s
}

func (s scope) all() bool { return s.override == hierarchy.Root }

func (s scope) contains(id hierarchy.SequenceID) bool {
	return s.all() || s.members[id]
}

// toRoot maps a frame range expressed in the override's local time into
// root time.
func (s scope) toRoot(er timerange.EvaluationRange) timerange.EvaluationRange {
	if s.all() {
		return er
	}
	return timerange.EvaluationRange{Range: s.transform.InvertRange(er.Range), Direction: er.Direction}
}

func (s scope) filterMeta(m evaluation.MetaData) evaluation.MetaData {
	if s.all() {
		return m
	}
	var out evaluation.MetaData
	for _, k := range m.ActiveEntities {
		if s.contains(k.Key.SequenceID) {
			out.ActiveEntities = append(out.ActiveEntities, k)
		}
	}
	for _, id := range m.ActiveSequences {
		if s.contains(id) {
			out.ActiveSequences = append(out.ActiveSequences, id)
		}
	}
	return out
}

func (s scope) filterGroup(g evaluation.Group) evaluation.Group {
	if s.all() {
		return g
	}
	keep := func(ptrs []evaluation.SegmentPtr) []evaluation.SegmentPtr {
		var out []evaluation.SegmentPtr
		for _, p := range ptrs {
			if s.contains(p.SequenceID) {
				out = append(out, p)
			}
		}
		return out
	}
	var b evaluation.GroupBuilder
	for _, f := range g.Flushes() {
		b.AddFlush(f.Bucket, keep(f.Init), keep(f.Eval))
	}
	return b.Build()
}
