// Package catalog defines the type-registry collaborator consumed by the
// memento codec: resolving a spec's catalog provenance to a type-loading
// context, and following superseded-by mappings when a catalog item has
// been upgraded or removed. Catalog bundle installation mechanics are out
// of scope; implementations register Go constructors in-process.
package catalog

import (
	"fmt"
	"sync"
)

// Factory instantiates one registered implementation type.
type Factory func() (any, error)

// TypeLoadingContext resolves symbolic type names for one catalog item.
// During spec deserialization, contexts are stacked: the innermost context
// is consulted first for the remainder of that object's decode.
type TypeLoadingContext interface {
	// Describe returns a human-readable identification for diagnostics.
	Describe() string

	// ResolveType returns the factory for a symbolic type name.
	ResolveType(name string) (Factory, error)
}

// TypeRegistry is the narrow contract the codec consumes from the catalog.
type TypeRegistry interface {
	// ResolveProvenance maps a catalog item ID to its type-loading
	// context.
	ResolveProvenance(id string) (TypeLoadingContext, error)

	// SupersededBy returns the ID that replaced a removed or upgraded
	// catalog item, if one is registered.
	SupersededBy(id string) (string, bool)
}

// LoadingContext is the in-memory TypeLoadingContext implementation.
type LoadingContext struct {
	description string

	mu        sync.RWMutex
	factories map[string]Factory
}

// NewLoadingContext creates an empty loading context with a description.
func NewLoadingContext(description string) *LoadingContext {
	return &LoadingContext{
		description: description,
		factories:   make(map[string]Factory),
	}
}

// Describe returns the human-readable identification.
func (c *LoadingContext) Describe() string { return c.description }

// RegisterType registers a factory under a symbolic type name.
func (c *LoadingContext) RegisterType(name string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = f
}

// ResolveType returns the factory for a symbolic type name.
func (c *LoadingContext) ResolveType(name string) (Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[name]
	if !ok {
		return nil, fmt.Errorf("type %q not registered in %s", name, c.description)
	}
	return f, nil
}

// Registry is the in-memory TypeRegistry implementation.
type Registry struct {
	mu         sync.RWMutex
	contexts   map[string]TypeLoadingContext
	superseded map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contexts:   make(map[string]TypeLoadingContext),
		superseded: make(map[string]string),
	}
}

// RegisterItem registers the loading context for a catalog item ID.
func (r *Registry) RegisterItem(id string, lc TypeLoadingContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[id] = lc
}

// RegisterSupersededBy records that oldID has been replaced by newID.
func (r *Registry) RegisterSupersededBy(oldID, newID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.superseded[oldID] = newID
}

// ResolveProvenance maps a catalog item ID to its type-loading context.
func (r *Registry) ResolveProvenance(id string) (TypeLoadingContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lc, ok := r.contexts[id]
	if !ok {
		return nil, fmt.Errorf("catalog item not found: %s", id)
	}
	return lc, nil
}

// SupersededBy returns the ID that replaced a catalog item, if registered.
func (r *Registry) SupersededBy(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	newID, ok := r.superseded[id]
	return newID, ok
}
