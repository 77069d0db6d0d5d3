package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements SnapshotStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg SQLiteConfig
}

// SQLiteConfig holds SQLite snapshot store configuration.
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite snapshot store instance.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database, enables WAL mode, and runs migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate runs the embedded schema migrations.
func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Put writes or replaces the document for a managed object.
func (s *SQLiteStore) Put(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (object_id, kind, type, catalog_item_id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(object_id) DO UPDATE SET
			kind = excluded.kind,
			type = excluded.type,
			catalog_item_id = excluded.catalog_item_id,
			body = excluded.body,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	created := doc.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := s.db.ExecContext(ctx, query,
		doc.ObjectID,
		doc.Kind,
		doc.Type,
		doc.CatalogItemID,
		doc.Body,
		created,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Get retrieves the document for a managed object ID.
func (s *SQLiteStore) Get(ctx context.Context, objectID string) (*Document, error) {
	query := `
		SELECT object_id, kind, type, catalog_item_id, body, created_at, updated_at
		FROM documents
		WHERE object_id = ?
	`

	doc := &Document{}
	err := s.db.QueryRowContext(ctx, query, objectID).Scan(
		&doc.ObjectID,
		&doc.Kind,
		&doc.Type,
		&doc.CatalogItemID,
		&doc.Body,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", objectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Delete removes the document for a managed object ID.
func (s *SQLiteStore) Delete(ctx context.Context, objectID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE object_id = ?`, objectID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("document not found: %s", objectID)
	}
	return nil
}

// List retrieves every document of one kind.
func (s *SQLiteStore) List(ctx context.Context, kind string) ([]*Document, error) {
	query := `
		SELECT object_id, kind, type, catalog_item_id, body, created_at, updated_at
		FROM documents
		WHERE kind = ?
		ORDER BY object_id ASC
	`
	return s.queryDocuments(ctx, query, kind)
}

// ListAll retrieves every document.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]*Document, error) {
	query := `
		SELECT object_id, kind, type, catalog_item_id, body, created_at, updated_at
		FROM documents
		ORDER BY kind ASC, object_id ASC
	`
	return s.queryDocuments(ctx, query)
}

func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		doc := &Document{}
		err := rows.Scan(
			&doc.ObjectID,
			&doc.Kind,
			&doc.Type,
			&doc.CatalogItemID,
			&doc.Body,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}
