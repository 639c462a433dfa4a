package hierarchy

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// SequenceID identifies one instance of a sequence inside a root sequence's
// hierarchy. The root sequence is always Root.
type SequenceID uint32

// Root is the id of the root sequence.
const Root SequenceID = 0

// NewSubSequenceID derives an id from a deterministic key describing the
// sub-sequence's position inside its parent.
func NewSubSequenceID(key string) SequenceID {
	return nonRoot(xxhash.Sum64String(key))
}

// Accumulate combines id, which is relative to parent, into an id relative
// to the root.
func (id SequenceID) Accumulate(parent SequenceID) SequenceID {
	if parent == Root {
		return id
	}
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(parent))
	binary.LittleEndian.PutUint32(buf[4:], uint32(id))
	return nonRoot(xxhash.Sum64(buf[:]))
}

// Perturb deterministically derives an alternative id, used to resolve
// collisions.
func (id SequenceID) Perturb(salt int) SequenceID {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatUint(uint64(id), 10))
	_, _ = d.WriteString("#")
	_, _ = d.WriteString(strconv.Itoa(salt))
	return nonRoot(d.Sum64())
}

func (id SequenceID) String() string {
	if id == Root {
		return "root"
	}
	return strconv.FormatUint(uint64(id), 16)
}

func nonRoot(h uint64) SequenceID {
	id := SequenceID(uint32(h) ^ uint32(h>>32))
	if id == Root {
		id = 1
	}
	return id
}
