package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileStore is a SnapshotStore laid out as one JSON document per managed
// object under a kind subdirectory:
//
//	<dir>/<kind>/<object-id>.json
//
// Writes are atomic per object (temp file + rename). A standby node can
// watch the directory for documents written by the master.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With().Str("component", "file-store").Logger(),
	}, nil
}

// docPath returns the path for one document.
func (s *FileStore) docPath(kind, objectID string) string {
	return filepath.Join(s.dir, kind, objectID+".json")
}

// Put writes or replaces the document for a managed object atomically.
func (s *FileStore) Put(_ context.Context, doc *Document) error {
	kindDir := filepath.Join(s.dir, doc.Kind)
	if err := os.MkdirAll(kindDir, 0o755); err != nil {
		return fmt.Errorf("failed to create kind directory: %w", err)
	}

	copied := *doc
	copied.UpdatedAt = time.Now().UTC()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = copied.UpdatedAt
	}

	data, err := json.MarshalIndent(&copied, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	final := s.docPath(doc.Kind, doc.ObjectID)
	tmp, err := os.CreateTemp(kindDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename document into place: %w", err)
	}
	return nil
}

// Get retrieves the document for a managed object ID, scanning each kind
// subdirectory.
func (s *FileStore) Get(_ context.Context, objectID string) (*Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := s.docPath(entry.Name(), objectID)
		doc, err := s.readDocument(path)
		if err == nil {
			return doc, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("document not found: %s", objectID)
}

// Delete removes the document for a managed object ID.
func (s *FileStore) Delete(_ context.Context, objectID string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read store directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := s.docPath(entry.Name(), objectID)
		if err := os.Remove(path); err == nil {
			return nil
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete document: %w", err)
		}
	}
	return fmt.Errorf("document not found: %s", objectID)
}

// List retrieves every document of one kind.
func (s *FileStore) List(_ context.Context, kind string) ([]*Document, error) {
	docs, err := s.readKindDir(kind)
	if err != nil {
		return nil, err
	}
	sortDocuments(docs)
	return docs, nil
}

// ListAll retrieves every document.
func (s *FileStore) ListAll(_ context.Context) ([]*Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	var out []*Document
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		docs, err := s.readKindDir(entry.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	sortDocuments(out)
	return out, nil
}

// readKindDir loads every document in one kind subdirectory. Unreadable
// documents are skipped with a warning so one corrupt file does not hide
// the rest of the snapshot.
func (s *FileStore) readKindDir(kind string) ([]*Document, error) {
	kindDir := filepath.Join(s.dir, kind)
	entries, err := os.ReadDir(kindDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read kind directory: %w", err)
	}

	var docs []*Document
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		doc, err := s.readDocument(filepath.Join(kindDir, name))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable document")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// readDocument loads one document file. Unknown JSON fields are tolerated.
func (s *FileStore) readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", path, err)
	}
	return doc, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

// ChangeEvent reports an externally written or removed document.
type ChangeEvent struct {
	// ObjectID is the affected managed object.
	ObjectID string

	// Kind is the document's kind subdirectory.
	Kind string

	// Removed is true when the document was deleted.
	Removed bool
}

// Watch reports documents written or removed under the store directory by
// another process, until ctx is done. New kind subdirectories are picked up
// as they appear.
func (s *FileStore) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch store directory: %w", err)
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := watcher.Add(filepath.Join(s.dir, entry.Name())); err != nil {
				_ = watcher.Close()
				return nil, fmt.Errorf("failed to watch kind directory: %w", err)
			}
		}
	}

	out := make(chan ChangeEvent)
	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				s.handleFSEvent(ctx, watcher, event, out)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Msg("store watcher error")
			}
		}
	}()
	return out, nil
}

func (s *FileStore) handleFSEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event, out chan<- ChangeEvent) {
	rel, err := filepath.Rel(s.dir, event.Name)
	if err != nil {
		return
	}

	// A new kind subdirectory needs its own watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				s.logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new kind directory")
			}
			return
		}
	}

	base := filepath.Base(rel)
	if !strings.HasSuffix(base, ".json") || strings.HasPrefix(base, ".") {
		return
	}

	change := ChangeEvent{
		ObjectID: strings.TrimSuffix(base, ".json"),
		Kind:     filepath.Dir(rel),
		Removed:  event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename),
	}
	select {
	case out <- change:
	case <-ctx.Done():
	}
}
