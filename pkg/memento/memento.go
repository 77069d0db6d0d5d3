package memento

import (
	"strings"

	"github.com/openmast/openmast/pkg/mgmt"
	"github.com/openmast/openmast/pkg/model"
)

// Tagged node keys inside a memento's field map. Any other map is a plain
// nested value object.
const (
	// refKey tags a reference to another managed object.
	refKey = "__ref"

	// specKey tags an embedded instantiation spec.
	specKey = "__spec"
)

// Memento is the portable snapshot of one managed object. The provenance
// header is independently readable: a reader can resolve the type-loading
// context before interpreting Fields.
type Memento struct {
	// ID is the managed object's globally unique ID.
	ID string `json:"id"`

	// Kind is the managed-object kind.
	Kind model.Kind `json:"kind"`

	// Type is the implementation type name.
	Type string `json:"type,omitempty"`

	// CatalogItemID is the catalog provenance header.
	CatalogItemID string `json:"catalogItemId,omitempty"`

	// Fields maps field name to value: primitives, nested value objects,
	// or tagged reference/spec nodes.
	Fields map[string]any `json:"fields"`
}

// LookupContext resolves stable IDs to live (possibly skeleton) objects
// during one restore operation. Implementations must be idempotent:
// repeated lookups of the same ID return the same object identity, and the
// skeleton is registered before its fields are populated.
type LookupContext interface {
	// Describe returns a human-readable identification used in
	// diagnostics.
	Describe() string

	// LookupEntity returns the live entity for an ID.
	LookupEntity(id string) (*model.Entity, error)

	// LookupLocation returns the live location for an ID.
	LookupLocation(id string) (*model.Location, error)

	// LookupPolicy returns the live policy for an ID.
	LookupPolicy(id string) (*model.Policy, error)

	// LookupEnricher returns the live enricher for an ID.
	LookupEnricher(id string) (*model.Enricher, error)

	// LookupFeed returns the live feed for an ID.
	LookupFeed(id string) (*model.Feed, error)

	// LookupCatalogItem returns the live catalog item for an ID.
	LookupCatalogItem(id string) (*model.CatalogItem, error)

	// LookupManagementContext returns the context driving this restore.
	LookupManagementContext() (mgmt.ManagementContext, error)
}

// refNode builds a tagged reference node for a managed object.
func refNode(obj model.ManagedObject) map[string]any {
	return map[string]any{
		refKey: map[string]any{
			"kind": string(obj.Kind()),
			"id":   obj.ID(),
		},
	}
}

// asRefNode extracts (kind, id) from a tagged reference node, if v is one.
func asRefNode(v any) (model.Kind, string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", "", false
	}
	inner, ok := m[refKey].(map[string]any)
	if !ok {
		return "", "", false
	}
	kind, _ := inner["kind"].(string)
	id, _ := inner["id"].(string)
	if kind == "" || id == "" {
		return "", "", false
	}
	return model.Kind(kind), id, true
}

// asSpecNode extracts the payload of a tagged spec node, if v is one.
func asSpecNode(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	inner, ok := m[specKey].(map[string]any)
	return inner, ok
}

// pathTracker records the current position within a document so field
// errors can name where they happened.
type pathTracker struct {
	segs []string
}

func (p *pathTracker) push(seg string) {
	p.segs = append(p.segs, seg)
}

func (p *pathTracker) pop() {
	if len(p.segs) > 0 {
		p.segs = p.segs[:len(p.segs)-1]
	}
}

// String renders the path as "fields.child[2].ref".
func (p *pathTracker) String() string {
	if len(p.segs) == 0 {
		return "(root)"
	}
	return strings.Join(p.segs, ".")
}
