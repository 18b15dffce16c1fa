// Package store persists documents of every registered content type in
// SQLite. Scalar attributes live in a JSON column; relations are stored
// once, on the owning side, and projected onto the inverse side by
// reverse lookup.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/logger"
)

var (
	// ErrNotFound is returned when a document reference does not resolve.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidField is returned for writes to unknown, system or
	// non-owning fields.
	ErrInvalidField = errors.New("invalid field")
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

const timeLayout = time.RFC3339Nano

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id  TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL,
		data         TEXT NOT NULL DEFAULT '{}',
		status       TEXT NOT NULL DEFAULT 'draft',
		published_at TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_content_type ON documents (content_type, id)`,
	`CREATE TABLE IF NOT EXISTS relations (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		content_type       TEXT NOT NULL,
		document_id        TEXT NOT NULL REFERENCES documents (document_id) ON DELETE CASCADE,
		field              TEXT NOT NULL,
		target_type        TEXT NOT NULL,
		target_document_id TEXT NOT NULL REFERENCES documents (document_id) ON DELETE CASCADE,
		position           INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS relations_owner ON relations (content_type, document_id, field, position)`,
	`CREATE INDEX IF NOT EXISTS relations_target ON relations (content_type, field, target_document_id)`,
}

// Store reads and writes documents.
type Store struct {
	drv *entsql.Driver
	reg *contenttype.Registry
	log *logger.Logger
	now func() time.Time
}

// Open opens the SQLite database at dsn.
func Open(ctx context.Context, dsn string, reg *contenttype.Registry, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return New(db, reg, log), nil
}

// New wraps an open database handle.
func New(db *sql.DB, reg *contenttype.Registry, log *logger.Logger) *Store {
	return &Store{
		drv: entsql.OpenDB(dialect.SQLite, db),
		reg: reg,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.drv.Close()
}

// DB returns the underlying database handle so other tables (activity) can
// share the single connection.
func (s *Store) DB() *sql.DB {
	return s.drv.DB()
}

// Registry returns the schema registry the store validates against.
func (s *Store) Registry() *contenttype.Registry {
	return s.reg
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	s.log.Info("database migrated")
	return nil
}

// withTx runs fn in a transaction.
func (s *Store) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.log.Error("rollback failed", "error", rerr)
		}
		return err
	}
	return tx.Commit()
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}
