// Package scene is the object table that sequences animate. Objects are
// addressed by handle and carry a cty object of named properties.
package scene

import (
	"fmt"
	"sync"

	"github.com/vk/seqcore/internal/propertypath"
	"github.com/zclconf/go-cty/cty"
)

// Handle identifies an object in a Scene. The zero handle is never issued.
type Handle uint64

// NoHandle is the zero handle.
const NoHandle Handle = 0

type object struct {
	name  string
	class string
	props cty.Value
}

// Scene is safe for concurrent use.
type Scene struct {
	mu      sync.RWMutex
	next    Handle
	objects map[Handle]*object
	byName  map[string]Handle
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{
		objects: make(map[Handle]*object),
		byName:  make(map[string]Handle),
	}
}

// Add creates an object. Names are optional; a named object can be found
// with FindByName until it is removed.
func (s *Scene) Add(name, class string, props cty.Value) Handle {
	if props.IsNull() {
		props = cty.EmptyObjectVal
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.objects[h] = &object{name: name, class: class, props: props}
	if name != "" {
		s.byName[name] = h
	}
	return h
}

// Remove deletes an object and reports whether it existed.
func (s *Scene) Remove(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[h]
	if !ok {
		return false
	}
	delete(s.objects, h)
	if obj.name != "" && s.byName[obj.name] == h {
		delete(s.byName, obj.name)
	}
	return true
}

// Exists reports whether h refers to a live object.
func (s *Scene) Exists(h Handle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[h]
	return ok
}

// FindByName returns the handle of a named object.
func (s *Scene) FindByName(name string) (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byName[name]
	return h, ok
}

// Describe returns the name and class of an object.
func (s *Scene) Describe(h Handle) (name, class string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[h]
	if !ok {
		return "", "", false
	}
	return obj.name, obj.class, true
}

// Properties returns every property of an object as a cty object.
func (s *Scene) Properties(h Handle) (cty.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[h]
	if !ok {
		return cty.NilVal, false
	}
	return obj.props, true
}

// Get reads one property.
func (s *Scene) Get(h Handle, path propertypath.Path) (cty.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[h]
	if !ok {
		return cty.NilVal, fmt.Errorf("object %d does not exist", h)
	}
	return path.Get(obj.props)
}

// Set writes one property, creating it if needed.
func (s *Scene) Set(h Handle, path propertypath.Path, v cty.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[h]
	if !ok {
		return fmt.Errorf("object %d does not exist", h)
	}
	props, err := path.Set(obj.props, v)
	if err != nil {
		return err
	}
	obj.props = props
	return nil
}

// Len returns the number of live objects.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
