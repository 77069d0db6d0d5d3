package stores

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func setupFileStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	return store
}

// TestFileStoreCRUD tests document CRUD against the directory layout
func TestFileStoreCRUD(t *testing.T) {
	store := setupFileStore(t)
	defer store.Close()

	ctx := context.Background()

	doc := &Document{
		ObjectID: "e-1",
		Kind:     "entity",
		Type:     "web.Server",
		Body:     []byte(`{"id":"e-1"}`),
	}
	if err := store.Put(ctx, doc); err != nil {
		t.Fatalf("failed to put document: %v", err)
	}

	// One JSON file per object under the kind subdirectory
	if _, err := os.Stat(filepath.Join(store.dir, "entity", "e-1.json")); err != nil {
		t.Fatalf("expected document file on disk: %v", err)
	}

	retrieved, err := store.Get(ctx, "e-1")
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if retrieved.Type != "web.Server" {
		t.Errorf("expected type web.Server, got %s", retrieved.Type)
	}
	if string(retrieved.Body) != string(doc.Body) {
		t.Errorf("unexpected body: %s", retrieved.Body)
	}

	if err := store.Delete(ctx, "e-1"); err != nil {
		t.Fatalf("failed to delete document: %v", err)
	}
	if _, err := store.Get(ctx, "e-1"); err == nil {
		t.Error("expected error when getting deleted document")
	}
	if err := store.Delete(ctx, "e-1"); err == nil {
		t.Error("expected error when deleting missing document")
	}
}

// TestFileStoreList tests listing across kind subdirectories
func TestFileStoreList(t *testing.T) {
	store := setupFileStore(t)
	defer store.Close()

	ctx := context.Background()
	for _, doc := range []*Document{
		{ObjectID: "e-2", Kind: "entity", Body: []byte(`{}`)},
		{ObjectID: "e-1", Kind: "entity", Body: []byte(`{}`)},
		{ObjectID: "l-1", Kind: "location", Body: []byte(`{}`)},
	} {
		if err := store.Put(ctx, doc); err != nil {
			t.Fatalf("failed to put %s: %v", doc.ObjectID, err)
		}
	}

	entities, err := store.List(ctx, "entity")
	if err != nil {
		t.Fatalf("failed to list entities: %v", err)
	}
	if len(entities) != 2 || entities[0].ObjectID != "e-1" {
		t.Errorf("expected ordered entities, got %+v", entities)
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("failed to list all documents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(all))
	}
}

// awaitChange drains the channel until an event for the wanted object
// arrives or the deadline passes. Watchers may emit several events for one
// write, so unrelated events are skipped.
func awaitChange(t *testing.T, ch <-chan ChangeEvent, objectID string, removed bool) ChangeEvent {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("watch channel closed before the expected event")
			}
			if ev.ObjectID == objectID && ev.Removed == removed {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change event for %s (removed=%v)", objectID, removed)
		}
	}
}

// TestFileStoreWatchReportsExternalWrites tests the standby-node surface:
// documents written and removed by another process show up as change events
func TestFileStoreWatchReportsExternalWrites(t *testing.T) {
	store := setupFileStore(t)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An existing kind directory is watched from the start
	if err := store.Put(ctx, &Document{ObjectID: "e-1", Kind: "entity", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("failed to put document: %v", err)
	}

	ch, err := store.Watch(ctx)
	if err != nil {
		t.Fatalf("failed to start watching: %v", err)
	}

	// Another process drops a document in
	external := filepath.Join(store.dir, "entity", "e-2.json")
	if err := os.WriteFile(external, []byte(`{"object_id":"e-2","kind":"entity"}`), 0o644); err != nil {
		t.Fatalf("failed to write external document: %v", err)
	}
	ev := awaitChange(t, ch, "e-2", false)
	if ev.Kind != "entity" {
		t.Errorf("expected kind entity, got %q", ev.Kind)
	}

	// And removes it again
	if err := os.Remove(external); err != nil {
		t.Fatalf("failed to remove external document: %v", err)
	}
	awaitChange(t, ch, "e-2", true)

	// Cancellation closes the channel
	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("expected watch channel to close on cancellation")
		}
	}
}

// TestFileStoreSkipsCorruptDocuments tests that one unreadable file does
// not hide the rest of the snapshot
func TestFileStoreSkipsCorruptDocuments(t *testing.T) {
	store := setupFileStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, &Document{ObjectID: "e-1", Kind: "entity", Body: []byte(`{}`)}); err != nil {
		t.Fatalf("failed to put document: %v", err)
	}

	corrupt := filepath.Join(store.dir, "entity", "e-bad.json")
	if err := os.WriteFile(corrupt, []byte("not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	docs, err := store.List(ctx, "entity")
	if err != nil {
		t.Fatalf("failed to list entities: %v", err)
	}
	if len(docs) != 1 || docs[0].ObjectID != "e-1" {
		t.Errorf("expected only the readable document, got %+v", docs)
	}
}
