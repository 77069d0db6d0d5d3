package stores

import (
	"context"
	"time"
)

// Document is one persisted managed-object snapshot: a tagged record whose
// body is the serialized memento. Cross-object references inside the body
// are ID strings tagged with kind; the body tolerates unknown fields so the
// format stays readable by future versions.
type Document struct {
	// ObjectID is the managed object's globally unique ID.
	ObjectID string `json:"object_id"`

	// Kind is the managed-object kind the document belongs to.
	Kind string `json:"kind"`

	// Type is the implementation type name recorded at snapshot time.
	Type string `json:"type,omitempty"`

	// CatalogItemID is the catalog provenance header, independently
	// readable without parsing the body.
	CatalogItemID string `json:"catalog_item_id,omitempty"`

	// Body is the serialized memento.
	Body []byte `json:"body"`

	// CreatedAt is when the document was first written.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last rewritten.
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStore persists managed-object snapshot documents.
type SnapshotStore interface {
	// Put writes or replaces the document for a managed object.
	Put(ctx context.Context, doc *Document) error

	// Get retrieves the document for a managed object ID.
	Get(ctx context.Context, objectID string) (*Document, error)

	// Delete removes the document for a managed object ID.
	Delete(ctx context.Context, objectID string) error

	// List retrieves every document of one kind.
	List(ctx context.Context, kind string) ([]*Document, error)

	// ListAll retrieves every document.
	ListAll(ctx context.Context) ([]*Document, error)

	// Close releases the store's resources.
	Close() error
}
