package dag

import (
	"fmt"

	"github.com/vk/seqcore/internal/sequence"
)

// FromLibrary builds the reference graph of every sequence in lib and
// checks it for cycles. A parent depends on each sequence it plays.
func FromLibrary(lib *sequence.Library) (*Graph, error) {
	g := New()
	names := lib.Names()
	for _, name := range names {
		g.AddNode(name)
	}
	for _, name := range names {
		seq, _ := lib.Get(name)
		for _, ref := range seq.SubSequenceRefs() {
			if _, ok := lib.Get(ref); !ok {
				return nil, fmt.Errorf("sequence '%s' plays unknown sequence '%s'", name, ref)
			}
			if err := g.AddEdge(ref, name); err != nil {
				return nil, err
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}
