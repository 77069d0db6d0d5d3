package model

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handle is the stable identifier external holders store instead of a live
// object pointer. The registry maps a handle to the current delegate, so
// swapping the delegate during a rebind is a single registry update rather
// than proxy rewiring.
type Handle string

// NewHandle allocates a fresh handle.
func NewHandle() Handle {
	return Handle(uuid.New().String())
}

// Registry is the single authoritative mapping from handle to the current
// live delegate for each managed object.
type Registry struct {
	mu      sync.RWMutex
	objects map[Handle]ManagedObject
	byID    map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[Handle]ManagedObject),
		byID:    make(map[string]Handle),
	}
}

// Bind registers obj under a new handle and returns it. Binding an object
// ID that is already registered is an error; use Swap to replace a
// delegate.
func (r *Registry) Bind(obj ManagedObject) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byID[obj.ID()]; ok {
		return h, fmt.Errorf("object %s already bound to handle %s", obj.ID(), h)
	}
	h := NewHandle()
	r.objects[h] = obj
	r.byID[obj.ID()] = h
	return h, nil
}

// Swap replaces the delegate behind the handle that currently serves
// obj.ID(), or binds a new handle if the ID is unknown. It returns the
// handle now serving the object.
func (r *Registry) Swap(obj ManagedObject) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[obj.ID()]
	if !ok {
		h = NewHandle()
		r.byID[obj.ID()] = h
	}
	r.objects[h] = obj
	return h
}

// Resolve returns the current delegate for a handle.
func (r *Registry) Resolve(h Handle) (ManagedObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[h]
	return obj, ok
}

// Lookup returns the current delegate for an object ID.
func (r *Registry) Lookup(id string) (ManagedObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	obj, ok := r.objects[h]
	return obj, ok
}

// Release removes the handle and its delegate.
func (r *Registry) Release(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if obj, ok := r.objects[h]; ok {
		delete(r.byID, obj.ID())
	}
	delete(r.objects, h)
}

// List returns the current delegates of the given kind. An empty kind
// returns everything.
func (r *Registry) List(kind Kind) []ManagedObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ManagedObject, 0, len(r.objects))
	for _, obj := range r.objects {
		if kind == "" || obj.Kind() == kind {
			out = append(out, obj)
		}
	}
	return out
}

// TopLevelEntities returns every entity without a parent.
func (r *Registry) TopLevelEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entity
	for _, obj := range r.objects {
		if e, ok := obj.(*Entity); ok && e.Parent == nil {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}
