package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned for sections whose end precedes their start.
	ErrInvalidRange = errors.New("invalid range")
	// ErrUnknownSequence is returned when a sub-sequence names a sequence that
	// was never declared.
	ErrUnknownSequence = errors.New("unknown sequence")
)

// Validate checks the model for structural errors that do not depend on
// registered track kinds.
func (m *Model) Validate() error {
	var errs []error
	for name, seq := range m.Sequences {
		if seq.FixedFrameInterval < 0 {
			errs = append(errs, fmt.Errorf("sequence %q: fixed_frame_interval must not be negative", name))
		}
		bindings := make(map[string]struct{}, len(seq.Bindings))
		for _, b := range seq.Bindings {
			if _, dup := bindings[b.Name]; dup {
				errs = append(errs, fmt.Errorf("sequence %q: duplicate binding %q", name, b.Name))
			}
			bindings[b.Name] = struct{}{}
			if b.Spawnable && b.Possess != "" {
				errs = append(errs, fmt.Errorf("sequence %q, binding %q: a binding cannot be both spawnable and possessed", name, b.Name))
			}
			for _, t := range b.Tracks {
				errs = append(errs, m.validateTrack(name, t)...)
			}
		}
		for _, t := range seq.Tracks {
			errs = append(errs, m.validateTrack(name, t)...)
		}
	}
	return errors.Join(errs...)
}

func (m *Model) validateTrack(seqName string, t *Track) []error {
	var errs []error
	where := fmt.Sprintf("sequence %q, track %s %q", seqName, t.Kind, t.Name)
	for i, s := range t.Sections {
		if s.Start != nil && s.End != nil && *s.End < *s.Start {
			errs = append(errs, fmt.Errorf("%s, section %d: end %g precedes start %g: %w", where, i, *s.End, *s.Start, ErrInvalidRange))
		}
		if s.PreRoll < 0 || s.PostRoll < 0 {
			errs = append(errs, fmt.Errorf("%s, section %d: pre_roll and post_roll must not be negative", where, i))
		}
		switch s.Completion {
		case "", CompletionRestore, CompletionKeep:
		default:
			errs = append(errs, fmt.Errorf("%s, section %d: unknown completion mode %q", where, i, s.Completion))
		}
		if t.Kind != SubSequenceKind {
			continue
		}
		if s.SubSequence == nil {
			errs = append(errs, fmt.Errorf("%s, section %d: missing sequence", where, i))
			continue
		}
		if s.SubSequence.TimeScale <= 0 {
			errs = append(errs, fmt.Errorf("%s, section %d: time_scale must be positive", where, i))
		}
		if _, ok := m.Sequences[s.SubSequence.Sequence]; !ok {
			errs = append(errs, fmt.Errorf("%s, section %d: %w %q", where, i, ErrUnknownSequence, s.SubSequence.Sequence))
		}
	}
	return errs
}
