package stores

import (
	"context"
	"testing"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(SQLiteConfig{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	return store
}

// TestSQLiteStoreLifecycle tests database initialization and closure
func TestSQLiteStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(SQLiteConfig{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestSQLiteStoreRequiresPath tests that an empty path is rejected
func TestSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteConfig{}); err == nil {
		t.Fatal("expected error for empty database path")
	}
}

// TestSQLiteDocumentCRUD tests document CRUD operations
func TestSQLiteDocumentCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	doc := &Document{
		ObjectID:      "e-web-01",
		Kind:          "entity",
		Type:          "web.Server",
		CatalogItemID: "catalog:web-server:1.0.0",
		Body:          []byte(`{"id":"e-web-01","kind":"entity"}`),
	}

	if err := store.Put(ctx, doc); err != nil {
		t.Fatalf("failed to put document: %v", err)
	}

	retrieved, err := store.Get(ctx, doc.ObjectID)
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if retrieved.Kind != doc.Kind {
		t.Errorf("expected kind %s, got %s", doc.Kind, retrieved.Kind)
	}
	if retrieved.CatalogItemID != doc.CatalogItemID {
		t.Errorf("expected catalog item %s, got %s", doc.CatalogItemID, retrieved.CatalogItemID)
	}
	if string(retrieved.Body) != string(doc.Body) {
		t.Errorf("expected body %s, got %s", doc.Body, retrieved.Body)
	}
	if retrieved.CreatedAt.IsZero() || retrieved.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	// Replace keeps CreatedAt
	created := retrieved.CreatedAt
	doc.CreatedAt = created
	doc.Body = []byte(`{"id":"e-web-01","kind":"entity","displayName":"web"}`)
	if err := store.Put(ctx, doc); err != nil {
		t.Fatalf("failed to replace document: %v", err)
	}
	replaced, err := store.Get(ctx, doc.ObjectID)
	if err != nil {
		t.Fatalf("failed to get replaced document: %v", err)
	}
	if !replaced.CreatedAt.Equal(created) {
		t.Errorf("expected CreatedAt %v to survive replace, got %v", created, replaced.CreatedAt)
	}
	if string(replaced.Body) != string(doc.Body) {
		t.Error("expected replaced body")
	}

	if err := store.Delete(ctx, doc.ObjectID); err != nil {
		t.Fatalf("failed to delete document: %v", err)
	}
	if _, err := store.Get(ctx, doc.ObjectID); err == nil {
		t.Error("expected error when getting deleted document")
	}
	if err := store.Delete(ctx, doc.ObjectID); err == nil {
		t.Error("expected error when deleting missing document")
	}
}

// TestSQLiteList tests listing by kind and listing everything
func TestSQLiteList(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	seed := []*Document{
		{ObjectID: "e-b", Kind: "entity", Body: []byte(`{}`)},
		{ObjectID: "e-a", Kind: "entity", Body: []byte(`{}`)},
		{ObjectID: "l-1", Kind: "location", Body: []byte(`{}`)},
	}
	for _, doc := range seed {
		if err := store.Put(ctx, doc); err != nil {
			t.Fatalf("failed to put %s: %v", doc.ObjectID, err)
		}
	}

	entities, err := store.List(ctx, "entity")
	if err != nil {
		t.Fatalf("failed to list entities: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	if entities[0].ObjectID != "e-a" || entities[1].ObjectID != "e-b" {
		t.Errorf("expected entities ordered by object ID, got %s, %s", entities[0].ObjectID, entities[1].ObjectID)
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("failed to list all documents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(all))
	}

	none, err := store.List(ctx, "feed")
	if err != nil {
		t.Fatalf("failed to list empty kind: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected 0 feed documents, got %d", len(none))
	}
}
