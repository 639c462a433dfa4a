package track

import (
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/preanimated"
	"github.com/vk/seqcore/internal/scene"
	"github.com/vk/seqcore/internal/spawnregister"
	"github.com/vk/seqcore/internal/timerange"
)

// Status is the playback status reported to tracks.
type Status uint8

const (
	Stopped Status = iota
	Playing
	Paused
	Scrubbing
	Jumping
)

func (s Status) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Scrubbing:
		return "scrubbing"
	case Jumping:
		return "jumping"
	default:
		return "stopped"
	}
}

// Player is the facade tracks and tokens use to reach the world being
// animated.
type Player interface {
	SpawnRegister() spawnregister.Register
	Scene() *scene.Scene
	PreAnimated() *preanimated.State
	// ResolveBinding returns the object currently bound to bindingID in the
	// given sequence instance.
	ResolveBinding(bindingID string, seq hierarchy.SequenceID) (scene.Handle, bool)
}

// Context describes the frame being evaluated, as seen by one track.
type Context struct {
	// Range is the evaluated range in the track's local time.
	Range timerange.EvaluationRange
	// RootRange is the evaluated range in root time.
	RootRange timerange.EvaluationRange
	Status    Status
	// HasJumped is set when the frame is a discontinuous cut; interpolating
	// effects should not span it.
	HasJumped bool
	// Silent suppresses audible or external side effects.
	Silent     bool
	SequenceID hierarchy.SequenceID
	Transform  hierarchy.TimeTransform
	TrackID    ID
	BindingID  string
	Player     Player
	Persistent *PersistentData
}

// Time is the current local time.
func (c *Context) Time() float32 { return c.Range.Time() }

// Entity returns the key of one of this track's sections.
func (c *Context) Entity(sectionIndex int) EntityKey {
	return EntityKey{SequenceID: c.SequenceID, TrackID: c.TrackID, SectionIndex: sectionIndex}
}

// Operand returns the target tokens produced under this context apply to.
func (c *Context) Operand() Operand {
	return Operand{SequenceID: c.SequenceID, BindingID: c.BindingID}
}
