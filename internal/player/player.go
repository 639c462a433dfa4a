// Package player drives a root evaluation instance over time. It owns the
// instance, the play cursor and the world the sequence animates, and is the
// track.Player facade tracks reach that world through.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/hierarchy"
	"github.com/vk/seqcore/internal/instance"
	"github.com/vk/seqcore/internal/preanimated"
	"github.com/vk/seqcore/internal/scene"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/spawnregister"
	"github.com/vk/seqcore/internal/template"
	"github.com/vk/seqcore/internal/timerange"
	"github.com/vk/seqcore/internal/track"
)

// ErrNotInitialized is returned by playback calls made before Initialize.
var ErrNotInitialized = errors.New("player is not initialized")

// Templates is the compiled-template store the player evaluates from.
type Templates interface {
	instance.Templates
	PurgeStaleTracks(ctx context.Context) int
}

// Settings configure one playback session.
type Settings struct {
	// LoopCount is the number of passes that end in a loop event. Negative
	// loops forever, zero plays once without looping.
	LoopCount int
	// PlayRate scales Update deltas. Zero means 1.
	PlayRate float32
	// FrameInterval snaps evaluated times. Zero uses the sequence's fixed
	// frame interval.
	FrameInterval float32
	Workers       int
	Silent        bool
}

// Hooks are called on playback state changes.
type Hooks struct {
	OnPlay     func(ctx context.Context)
	OnPause    func(ctx context.Context)
	OnStop     func(ctx context.Context)
	OnLooped   func(ctx context.Context, loop int)
	OnFinished func(ctx context.Context)
}

// Snapshot is a copy of the observable playback state, safe to read from
// other goroutines.
type Snapshot struct {
	Sequence string  `json:"sequence"`
	Position float32 `json:"position"`
	Length   float32 `json:"length"`
	Playing  bool    `json:"playing"`
	Status   string  `json:"status"`
	Loops    int     `json:"loops"`
}

// Player plays one root sequence. Apart from Snapshot it must be used from
// a single goroutine.
type Player struct {
	library   *sequence.Library
	templates Templates
	world     *scene.Scene
	register  *spawnregister.InMemory
	state     *preanimated.State
	hooks     Hooks

	root     *sequence.Sequence
	settings Settings
	instance *instance.Instance
	bindings map[string]*sequence.Binding

	status   track.Status
	position PlayPosition
	start    float32
	end      float32
	reverse  bool
	loops    int

	lastEvaluated float32
	hasEvaluated  bool

	snapshot atomic.Pointer[Snapshot]
}

var _ track.Player = (*Player)(nil)

// New returns a player animating world with sequences from library.
func New(library *sequence.Library, templates Templates, world *scene.Scene, hooks Hooks) *Player {
	p := &Player{
		library:   library,
		templates: templates,
		world:     world,
		register:  spawnregister.NewInMemory(world),
		state:     preanimated.New(),
		hooks:     hooks,
	}
	p.snapshot.Store(&Snapshot{Status: track.Stopped.String()})
	return p
}

// Initialize binds the player to the named root sequence. Any previous
// session is finished first.
func (p *Player) Initialize(ctx context.Context, name string, settings Settings) error {
	logger := ctxlog.FromContext(ctx)
	if p.instance != nil && p.instance.State() == instance.Initialized {
		if err := p.instance.Finish(ctx); err != nil {
			return err
		}
	}

	root, ok := p.library.Get(name)
	if !ok {
		return fmt.Errorf("initializing player: %w: %s", template.ErrSequenceNotFound, name)
	}
	if settings.PlayRate == 0 {
		settings.PlayRate = 1
	}
	p.root = root
	p.settings = settings
	p.defineBindings()

	p.instance = instance.New(p.templates, p, instance.Options{Workers: settings.Workers, Silent: settings.Silent})
	if err := p.instance.Initialize(ctx, name); err != nil {
		return err
	}

	p.start, p.end = bounds(root.PlaybackRange)
	interval := settings.FrameInterval
	if interval == 0 {
		interval = root.FixedFrameInterval
	}
	p.position.SetFrameInterval(interval)
	p.position.SetBounds(p.start, p.end)
	p.position.Reset(p.start)
	p.status = track.Stopped
	p.reverse = false
	p.loops = 0
	p.hasEvaluated = false
	p.publish()

	logger.Info("Player initialized.", "sequence", name, "start", p.start, "end", p.end, "loops", settings.LoopCount)
	return nil
}

// defineBindings indexes every binding in the library and declares the
// spawnable ones to the spawn register.
func (p *Player) defineBindings() {
	p.bindings = map[string]*sequence.Binding{}
	for _, name := range p.library.Names() {
		seq, _ := p.library.Get(name)
		for _, b := range seq.Bindings() {
			p.bindings[b.ID()] = b
			if b.Spawnable {
				p.register.Define(b.ID(), spawnregister.Spawnable{Name: b.Name, Class: b.Class, Properties: b.Properties})
			}
		}
	}
}

func bounds(r timerange.Range) (float32, float32) {
	var start, end float32
	if !r.Lower.IsOpen() {
		start = r.Lower.Value
	}
	end = start
	if !r.Upper.IsOpen() {
		end = r.Upper.Value
	}
	if end < start {
		end = start
	}
	return start, end
}

// Play starts or resumes playback. Playing from the end of the range
// restarts from the beginning.
func (p *Player) Play(ctx context.Context) error {
	if p.instance == nil {
		return ErrNotInitialized
	}
	if p.status == track.Playing {
		return nil
	}
	if p.atEnd() {
		p.position.Reset(p.startEdge())
		p.loops = 0
	}
	p.status = track.Playing
	p.publish()
	ctxlog.FromContext(ctx).Debug("Playback started.", "position", p.position.Current())
	call(ctx, p.hooks.OnPlay)
	return nil
}

// Pause halts playback at the current position.
func (p *Player) Pause(ctx context.Context) error {
	if p.instance == nil {
		return ErrNotInitialized
	}
	if p.status != track.Playing {
		return nil
	}
	p.status = track.Paused
	p.publish()
	ctxlog.FromContext(ctx).Debug("Playback paused.", "position", p.position.Current())
	call(ctx, p.hooks.OnPause)
	return nil
}

// Stop ends every active entity, rewinds to the start of the range and
// leaves the player ready to play again.
func (p *Player) Stop(ctx context.Context) error {
	if p.instance == nil {
		return ErrNotInitialized
	}
	if err := p.instance.Finish(ctx); err != nil {
		return err
	}
	p.register.DestroyAll(ctx)
	if err := p.instance.Initialize(ctx, p.root.Name); err != nil {
		return err
	}
	p.status = track.Stopped
	p.loops = 0
	p.hasEvaluated = false
	p.position.Reset(p.startEdge())
	p.publish()
	ctxlog.FromContext(ctx).Debug("Playback stopped.")
	call(ctx, p.hooks.OnStop)
	return nil
}

// Scrub sets the position interactively and evaluates it.
func (p *Player) Scrub(ctx context.Context, t float32) error {
	if p.instance == nil {
		return ErrNotInitialized
	}
	p.status = track.Scrubbing
	er := p.position.JumpTo(p.clamp(t))
	return p.evaluate(ctx, er, track.Scrubbing, true, false)
}

// JumpToPosition moves the cursor discontinuously and evaluates the new
// position. A jump to the last evaluated position is skipped.
func (p *Player) JumpToPosition(ctx context.Context, t float32) error {
	if p.instance == nil {
		return ErrNotInitialized
	}
	er := p.position.JumpTo(p.clamp(t))
	return p.evaluate(ctx, er, track.Jumping, true, false)
}

// ForceEvaluate evaluates the current position even if it was already
// evaluated.
func (p *Player) ForceEvaluate(ctx context.Context) error {
	if p.instance == nil {
		return ErrNotInitialized
	}
	er := p.position.JumpTo(p.position.Current())
	return p.evaluate(ctx, er, p.status, true, true)
}

// Update advances playback by dt seconds of wall time. A step longer than
// the range wraps through every whole pass at once: OnLooped fires once per
// wrap with the new loop total.
func (p *Player) Update(ctx context.Context, dt float32) error {
	if p.instance == nil {
		return ErrNotInitialized
	}
	if p.status != track.Playing {
		return nil
	}
	delta := dt * p.settings.PlayRate
	if p.reverse {
		delta = -delta
	}
	target := p.position.Current() + delta
	length := p.end - p.start

	for {
		forward := delta >= 0
		overshoot := target - p.end
		if !forward {
			overshoot = p.start - target
		}
		if overshoot <= 0 {
			return p.evaluate(ctx, p.position.PlayTo(target), track.Playing, false, false)
		}

		// Finish the pass before looping or stopping.
		if err := p.evaluate(ctx, p.position.PlayTo(p.endEdge()), track.Playing, false, false); err != nil {
			return err
		}
		passes := 1
		if length > 0 && overshoot > length {
			whole, rest := wholePasses(overshoot, length)
			passes += whole
			overshoot = rest
		}
		if !p.loop(ctx, passes) {
			p.status = track.Stopped
			p.publish()
			ctxlog.FromContext(ctx).Debug("Playback finished.", "position", p.position.Current(), "loops", p.loops)
			call(ctx, p.hooks.OnFinished)
			return nil
		}
		if length <= 0 {
			return nil
		}
		p.position.Reset(p.startEdge())
		if forward {
			target = p.start + overshoot
		} else {
			target = p.end - overshoot
		}
	}
}

// wholePasses splits an overshoot longer than one pass into the number of
// complete passes it skips and the remainder, which lies in [0, length].
func wholePasses(overshoot, length float32) (int, float32) {
	o, l := float64(overshoot), float64(length)
	whole := math.Ceil(o/l) - 1
	rest := min(max(o-whole*l, 0), l)
	return int(min(whole, math.MaxInt32)), float32(rest)
}

// loop counts completed passes and reports whether playback wraps. Finite
// loop budgets cap the count.
func (p *Player) loop(ctx context.Context, passes int) bool {
	if p.settings.LoopCount == 0 {
		return false
	}
	if p.settings.LoopCount > 0 {
		passes = min(passes, p.settings.LoopCount-p.loops)
	}
	if passes > math.MaxInt-p.loops {
		p.loops = math.MaxInt
	} else {
		p.loops += passes
	}
	p.publish()
	ctxlog.FromContext(ctx).Debug("Playback looped.", "loop", p.loops, "passes", passes)
	if p.hooks.OnLooped != nil {
		p.hooks.OnLooped(ctx, p.loops)
	}
	return p.settings.LoopCount < 0 || p.loops < p.settings.LoopCount
}

func (p *Player) evaluate(ctx context.Context, er timerange.EvaluationRange, status track.Status, jumped, force bool) error {
	if er.Range.IsEmpty() {
		return nil
	}
	t := er.Time()
	if jumped && !force && p.hasEvaluated && t == p.lastEvaluated {
		ctxlog.FromContext(ctx).Debug("Skipping evaluation of unchanged position.", "time", t)
		return nil
	}
	err := p.instance.Evaluate(ctx, instance.Frame{Range: er, Status: status, HasJumped: jumped})
	if err != nil {
		return err
	}
	p.lastEvaluated, p.hasEvaluated = t, true
	p.templates.PurgeStaleTracks(ctx)
	p.publish()
	return nil
}

// SetPlaybackRange changes the played range. An end before start is
// clamped to start.
func (p *Player) SetPlaybackRange(start, end float32) {
	if end < start {
		end = start
	}
	p.start, p.end = start, end
	p.position.SetBounds(start, end)
	if c := p.position.Current(); c < start || c > end {
		p.position.Reset(p.clamp(c))
	}
	p.publish()
}

// SetPlayRate sets the Update scale. Negative rates play backwards.
func (p *Player) SetPlayRate(rate float32) {
	p.settings.PlayRate = rate
}

// SetReverse flips the playback direction.
func (p *Player) SetReverse(reverse bool) {
	p.reverse = reverse
}

// SetSilent toggles silent evaluation.
func (p *Player) SetSilent(silent bool) {
	p.settings.Silent = silent
	if p.instance != nil {
		p.instance.SetSilent(silent)
	}
}

// SetRootOverride evaluates only the given sub-sequence instance.
func (p *Player) SetRootOverride(id hierarchy.SequenceID) {
	if p.instance != nil {
		p.instance.SetRootOverride(id)
	}
}

// GetPlaybackPosition returns the cursor time.
func (p *Player) GetPlaybackPosition() float32 { return p.position.Current() }

// GetLength returns the length of the playback range.
func (p *Player) GetLength() float32 { return p.end - p.start }

// IsPlaying reports whether Update advances the cursor.
func (p *Player) IsPlaying() bool { return p.status == track.Playing }

// Status returns the playback status.
func (p *Player) Status() track.Status { return p.status }

// Loops returns how many passes have looped.
func (p *Player) Loops() int { return p.loops }

// Instance returns the root evaluation instance.
func (p *Player) Instance() *instance.Instance { return p.instance }

// Snapshot returns the last published playback state.
func (p *Player) Snapshot() Snapshot { return *p.snapshot.Load() }

// SpawnRegister implements track.Player.
func (p *Player) SpawnRegister() spawnregister.Register { return p.register }

// Scene implements track.Player.
func (p *Player) Scene() *scene.Scene { return p.world }

// PreAnimated implements track.Player.
func (p *Player) PreAnimated() *preanimated.State { return p.state }

// ResolveBinding implements track.Player. Spawnable bindings resolve to the
// object spawned for seq, possessables to the scene object they name.
func (p *Player) ResolveBinding(bindingID string, seq hierarchy.SequenceID) (scene.Handle, bool) {
	b, ok := p.bindings[bindingID]
	if !ok {
		return p.world.FindByName(bindingID)
	}
	if b.Spawnable {
		return p.register.FindSpawnedObject(bindingID, seq)
	}
	name := b.Possess
	if name == "" {
		name = b.Name
	}
	return p.world.FindByName(name)
}

func (p *Player) clamp(t float32) float32 {
	return min(max(t, p.start), p.end)
}

func (p *Player) startEdge() float32 {
	if p.forward() {
		return p.start
	}
	return p.end
}

func (p *Player) endEdge() float32 {
	if p.forward() {
		return p.end
	}
	return p.start
}

func (p *Player) forward() bool {
	return (p.settings.PlayRate >= 0) != p.reverse
}

func (p *Player) atEnd() bool {
	return p.hasEvaluated && p.position.Current() == p.endEdge()
}

func (p *Player) publish() {
	name := ""
	if p.root != nil {
		name = p.root.Name
	}
	p.snapshot.Store(&Snapshot{
		Sequence: name,
		Position: p.position.Current(),
		Length:   p.GetLength(),
		Playing:  p.IsPlaying(),
		Status:   p.status.String(),
		Loops:    p.loops,
	})
}

func call(ctx context.Context, hook func(context.Context)) {
	if hook != nil {
		hook(ctx)
	}
}
