package track

import "sync"

// PersistentData is scratch storage that outlives a single frame, keyed by
// entity. Tracks use it to carry state from OnBeginEvaluation through
// Evaluate to OnEndEvaluation.
type PersistentData struct {
	mu   sync.RWMutex
	data map[EntityKey]any
}

// NewPersistentData returns an empty store.
func NewPersistentData() *PersistentData {
	return &PersistentData{data: make(map[EntityKey]any)}
}

// Get returns the value stored for k.
func (p *PersistentData) Get(k EntityKey) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.data[k]
	return v, ok
}

// Set stores v for k.
func (p *PersistentData) Set(k EntityKey, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[k] = v
}

// Delete removes the value stored for k.
func (p *PersistentData) Delete(k EntityKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, k)
}

// Len returns the number of stored values.
func (p *PersistentData) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data)
}

// Load returns the value stored for k if it has type T.
func Load[T any](p *PersistentData, k EntityKey) (T, bool) {
	v, ok := p.Get(k)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
