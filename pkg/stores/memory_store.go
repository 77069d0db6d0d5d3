package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory SnapshotStore used in tests and for
// ephemeral planes.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

// Put writes or replaces the document for a managed object.
func (s *MemoryStore) Put(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	copied := *doc
	copied.Body = append([]byte(nil), doc.Body...)
	copied.UpdatedAt = now
	if prev, ok := s.docs[doc.ObjectID]; ok {
		copied.CreatedAt = prev.CreatedAt
	} else if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	s.docs[doc.ObjectID] = &copied
	return nil
}

// Get retrieves the document for a managed object ID.
func (s *MemoryStore) Get(_ context.Context, objectID string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[objectID]
	if !ok {
		return nil, fmt.Errorf("document not found: %s", objectID)
	}
	copied := *doc
	return &copied, nil
}

// Delete removes the document for a managed object ID.
func (s *MemoryStore) Delete(_ context.Context, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[objectID]; !ok {
		return fmt.Errorf("document not found: %s", objectID)
	}
	delete(s.docs, objectID)
	return nil
}

// List retrieves every document of one kind.
func (s *MemoryStore) List(_ context.Context, kind string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Document
	for _, doc := range s.docs {
		if doc.Kind == kind {
			copied := *doc
			out = append(out, &copied)
		}
	}
	sortDocuments(out)
	return out, nil
}

// ListAll retrieves every document.
func (s *MemoryStore) ListAll(_ context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		copied := *doc
		out = append(out, &copied)
	}
	sortDocuments(out)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func sortDocuments(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Kind != docs[j].Kind {
			return docs[i].Kind < docs[j].Kind
		}
		return docs[i].ObjectID < docs[j].ObjectID
	})
}
