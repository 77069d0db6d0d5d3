package model

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/openmast/openmast/pkg/exec"
)

// ManagementContextRef is the view of a management context the model layer
// can hold without depending on the management plane. The mgmt package's
// contexts satisfy it. Fields of this type are never persisted: a restore
// always satisfies them with the restoring context.
type ManagementContextRef interface {
	// IsReal returns true for a live backing context and false for a
	// lifecycle facade.
	IsReal() bool

	// IsRunning returns true while the context accepts operations.
	IsRunning() bool
}

// ManagedObject is the common identity surface shared by every member of
// the managed graph.
type ManagedObject interface {
	// ID returns the globally unique identifier of the object.
	ID() string

	// Kind returns which family of managed object this is.
	Kind() Kind

	// DisplayName returns the human-readable name, which may be empty.
	DisplayName() string

	// TypeName returns the implementation type the object was instantiated
	// as, e.g. "webapp.TomcatServer".
	TypeName() string

	// CatalogItemID returns the ID of the catalog-sourced type definition
	// the object was instantiated from, or "" if it was not catalog-sourced.
	CatalogItemID() string

	// Tags returns a sorted copy of the object's opaque tags.
	Tags() []string

	// AddTag adds a tag, returning false if it was already present.
	AddTag(tag string) bool

	// RemoveTag removes a tag, returning false if it was not present.
	RemoveTag(tag string) bool

	// State returns the current lifecycle state.
	State() LifecycleState

	// SetState records a lifecycle transition. Transitions on a single
	// object are serialized; the caller drives the transition function.
	SetState(state LifecycleState)
}

// ObjectBase carries the identity, tag, and lifecycle-state bookkeeping
// shared by all concrete managed-object types.
type ObjectBase struct {
	mu            sync.Mutex
	id            string
	displayName   string
	typeName      string
	catalogItemID string
	tags          map[string]struct{}
	state         LifecycleState
}

// NewObjectBase creates the base for a freshly created object. Skeletons
// built during a rebind use this too, with the persisted ID.
func NewObjectBase(id string) ObjectBase {
	if id == "" {
		id = uuid.New().String()
	}
	return ObjectBase{
		id:    id,
		tags:  make(map[string]struct{}),
		state: StatePreManagement,
	}
}

// ID returns the globally unique identifier.
func (b *ObjectBase) ID() string { return b.id }

// DisplayName returns the human-readable name.
func (b *ObjectBase) DisplayName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayName
}

// SetDisplayName sets the human-readable name.
func (b *ObjectBase) SetDisplayName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.displayName = name
}

// TypeName returns the implementation type name.
func (b *ObjectBase) TypeName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.typeName
}

// SetTypeName records the implementation type name.
func (b *ObjectBase) SetTypeName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typeName = name
}

// CatalogItemID returns the catalog provenance ID, or "".
func (b *ObjectBase) CatalogItemID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.catalogItemID
}

// SetCatalogItemID records the catalog provenance ID.
func (b *ObjectBase) SetCatalogItemID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogItemID = id
}

// Tags returns a sorted copy of the tag set.
func (b *ObjectBase) Tags() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.tags))
	for t := range b.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// AddTag adds a tag, returning false if it was already present.
func (b *ObjectBase) AddTag(tag string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tags[tag]; ok {
		return false
	}
	b.tags[tag] = struct{}{}
	return true
}

// RemoveTag removes a tag, returning false if it was not present.
func (b *ObjectBase) RemoveTag(tag string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tags[tag]; !ok {
		return false
	}
	delete(b.tags, tag)
	return true
}

// State returns the current lifecycle state.
func (b *ObjectBase) State() LifecycleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetState records a lifecycle transition. The per-object mutex prevents a
// concurrent read from observing a torn state.
func (b *ObjectBase) SetState(state LifecycleState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}

// Entity is an application component: the primary node of the managed
// graph. Entities form a tree via Parent/Children and hold references to
// the locations they run in and the policies, enrichers, and feeds attached
// to them.
type Entity struct {
	ObjectBase

	// Parent is the owning entity, nil for a top-level entity.
	Parent *Entity

	// Children are the entities owned by this one.
	Children []*Entity

	// Locations are the deployment targets this entity runs in.
	Locations []*Location

	// Policies are the automation rules attached to this entity.
	Policies []*Policy

	// Enrichers are the sensor derivations attached to this entity.
	Enrichers []*Enricher

	// Feeds are the monitoring feeds attached to this entity.
	Feeds []*Feed

	// Config holds the entity's configuration values. Values may reference
	// other managed objects or carry nested specs.
	Config map[string]any

	// Spec is the recipe this entity was instantiated from, if recorded.
	Spec *Spec

	// LastTask is the most recent effector invocation on this entity. It
	// is never persisted by value: a finished task's result survives a
	// snapshot, an in-flight one does not.
	LastTask *exec.TaskHandle

	// Context is the management context this entity currently sees. Never
	// persisted; a restore sets it to the restoring context.
	Context ManagementContextRef
}

// NewEntity creates an entity skeleton with the given ID (or a generated
// one if empty) and no populated fields.
func NewEntity(id string) *Entity {
	return &Entity{ObjectBase: NewObjectBase(id), Config: make(map[string]any)}
}

// Kind returns KindEntity.
func (*Entity) Kind() Kind { return KindEntity }

// Location is a deployment target. Locations form a tree like entities do.
type Location struct {
	ObjectBase

	// Parent is the owning location, nil for a top-level location.
	Parent *Location

	// Children are locations derived from this one.
	Children []*Location

	// Config holds the location's configuration values.
	Config map[string]any
}

// NewLocation creates a location skeleton with the given ID.
func NewLocation(id string) *Location {
	return &Location{ObjectBase: NewObjectBase(id), Config: make(map[string]any)}
}

// Kind returns KindLocation.
func (*Location) Kind() Kind { return KindLocation }

// Policy is an automation rule attached to one entity.
type Policy struct {
	ObjectBase

	// Entity is the entity this policy is attached to.
	Entity *Entity

	// Config holds the policy's configuration values.
	Config map[string]any

	// Suppressed disables the policy without detaching it.
	Suppressed bool
}

// NewPolicy creates a policy skeleton with the given ID.
func NewPolicy(id string) *Policy {
	return &Policy{ObjectBase: NewObjectBase(id), Config: make(map[string]any)}
}

// Kind returns KindPolicy.
func (*Policy) Kind() Kind { return KindPolicy }

// Enricher derives new sensor values on one entity.
type Enricher struct {
	ObjectBase

	// Entity is the entity this enricher is attached to.
	Entity *Entity

	// Config holds the enricher's configuration values.
	Config map[string]any

	// Suppressed disables the enricher without detaching it.
	Suppressed bool
}

// NewEnricher creates an enricher skeleton with the given ID.
func NewEnricher(id string) *Enricher {
	return &Enricher{ObjectBase: NewObjectBase(id), Config: make(map[string]any)}
}

// Kind returns KindEnricher.
func (*Enricher) Kind() Kind { return KindEnricher }

// Feed pushes external monitoring data into one entity. Feeds are the most
// transient graph members: their polling state is in-flight computation and
// is not restorable.
type Feed struct {
	ObjectBase

	// Entity is the entity this feed is attached to.
	Entity *Entity

	// Config holds the feed's configuration values.
	Config map[string]any

	// LastTask is the feed's most recent poll task, never persisted by
	// value.
	LastTask *exec.TaskHandle
}

// NewFeed creates a feed skeleton with the given ID.
func NewFeed(id string) *Feed {
	return &Feed{ObjectBase: NewObjectBase(id), Config: make(map[string]any)}
}

// Kind returns KindFeed.
func (*Feed) Kind() Kind { return KindFeed }

// CatalogItem is a catalog-sourced type definition: the thing a Spec's
// provenance points at.
type CatalogItem struct {
	ObjectBase

	// SymbolicName is the stable type name, e.g. "webapp.tomcat".
	SymbolicName string

	// Version is the catalog item version.
	Version string

	// PlanSource is the raw blueprint the item was registered from.
	PlanSource string
}

// NewCatalogItem creates a catalog-item skeleton with the given ID.
func NewCatalogItem(id string) *CatalogItem {
	return &CatalogItem{ObjectBase: NewObjectBase(id)}
}

// Kind returns KindCatalogItem.
func (*CatalogItem) Kind() Kind { return KindCatalogItem }
