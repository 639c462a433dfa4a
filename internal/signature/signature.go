// Package signature provides the 128-bit cache identities attached to mutable
// sequence content. A signature changes every time its owner is mutated; two
// objects with the same signature are assumed to compile to the same output.
package signature

import (
	"sync"

	"github.com/google/uuid"
)

// Signature is an opaque 128-bit identity value.
type Signature uuid.UUID

// Nil is the zero signature. Nothing is ever signed with it.
var Nil Signature

// New returns a fresh random signature.
func New() Signature {
	return Signature(uuid.New())
}

// IsNil reports whether s is the zero signature.
func (s Signature) IsNil() bool { return s == Nil }

func (s Signature) String() string {
	return uuid.UUID(s).String()
}

// Parse reads a signature from its canonical string form.
func Parse(s string) (Signature, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}
	return Signature(id), nil
}

// Signed is embedded by content objects that carry a signature. The zero
// value is unsigned until the first call to Signature or MarkAsChanged.
type Signed struct {
	mu  sync.RWMutex
	sig Signature
}

// Signature returns the current signature, assigning one on first use.
func (s *Signed) Signature() Signature {
	s.mu.RLock()
	sig := s.sig
	s.mu.RUnlock()
	if !sig.IsNil() {
		return sig
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sig.IsNil() {
		s.sig = New()
	}
	return s.sig
}

// MarkAsChanged regenerates the signature.
func (s *Signed) MarkAsChanged() {
	s.mu.Lock()
	s.sig = New()
	s.mu.Unlock()
}
