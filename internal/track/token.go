package track

import (
	"context"

	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/hierarchy"
)

// Operand is the target of an execution token.
type Operand struct {
	SequenceID hierarchy.SequenceID
	BindingID  string
}

// ExecutionToken is a deferred side effect. Tokens are collected during
// evaluation and applied afterwards in the order they were produced.
type ExecutionToken interface {
	Execute(ctx context.Context, op Operand, p Player) error
}

// TokenFunc adapts a function to ExecutionToken.
type TokenFunc func(ctx context.Context, op Operand, p Player) error

// Execute calls f.
func (f TokenFunc) Execute(ctx context.Context, op Operand, p Player) error {
	return f(ctx, op, p)
}

type stackEntry struct {
	token  ExecutionToken
	op     Operand
	entity EntityKey
}

// TokenStack holds the tokens of one flush in application order.
type TokenStack struct {
	entries []stackEntry
}

// Push appends tokens produced by entity.
func (s *TokenStack) Push(entity EntityKey, op Operand, tokens ...ExecutionToken) {
	for _, t := range tokens {
		if t == nil {
			continue
		}
		s.entries = append(s.entries, stackEntry{token: t, op: op, entity: entity})
	}
}

// Append moves every token of o onto the end of s.
func (s *TokenStack) Append(o *TokenStack) {
	s.entries = append(s.entries, o.entries...)
	o.Reset()
}

// Len returns the number of pending tokens.
func (s *TokenStack) Len() int { return len(s.entries) }

// Reset drops every pending token.
func (s *TokenStack) Reset() { s.entries = s.entries[:0] }

// Apply executes every token in order and empties the stack. A failing token
// is logged and skipped. It returns the number of tokens that succeeded.
func (s *TokenStack) Apply(ctx context.Context, p Player) int {
	logger := ctxlog.FromContext(ctx)
	applied := 0
	for _, e := range s.entries {
		if err := e.token.Execute(ctx, e.op, p); err != nil {
			logger.Warn("Execution token failed.",
				"sequence", e.entity.SequenceID, "track", e.entity.TrackID,
				"section", e.entity.SectionIndex, "binding", e.op.BindingID, "error", err)
			continue
		}
		applied++
	}
	s.Reset()
	return applied
}
