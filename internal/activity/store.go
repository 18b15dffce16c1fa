package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes the entries one event fans out into.
	WriteEntries(ctx context.Context, entries []Entry) error

	// QueryByDocument returns entries for one document, newest first.
	QueryByDocument(ctx context.Context, contentType, documentID string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)

	// Search matches summaries case-insensitively.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []Entry, totalCount int, err error)
}

// occurredLayout is fixed width so text ordering matches time ordering.
const occurredLayout = "2006-01-02T15:04:05.000000000Z"

var entryColumns = []string{
	"event_id", "event_type", "occurred_at", "content_type", "document_id",
	"role", "refs", "summary", "category", "payload",
}

// IsMemoryDSN reports whether dsn names an in-memory SQLite database.
func IsMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Open returns the store for the documents database at dsn: a MemoryStore
// for in-memory databases, otherwise a SQLStore on db with its table
// created.
func Open(ctx context.Context, dsn string, db *sql.DB) (Store, error) {
	if IsMemoryDSN(dsn) {
		return NewMemoryStore(), nil
	}
	s := NewSQLStore(db)
	if err := s.CreateTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SQLStore implements Store on a SQLite table next to the documents.
type SQLStore struct {
	drv *entsql.Driver
}

// NewSQLStore creates a new SQLStore on db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{drv: entsql.OpenDB(dialect.SQLite, db)}
}

// CreateTable creates the activity_entries table.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS activity_entries (
			event_id     TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			occurred_at  TEXT NOT NULL,
			content_type TEXT NOT NULL,
			document_id  TEXT NOT NULL,
			role         TEXT NOT NULL,
			refs         TEXT NOT NULL DEFAULT '[]',
			summary      TEXT NOT NULL,
			category     TEXT NOT NULL,
			payload      TEXT,
			PRIMARY KEY (content_type, document_id, occurred_at, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_category_time
			ON activity_entries (content_type, document_id, category, occurred_at)`,
	} {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("creating activity table: %w", err)
		}
	}
	return nil
}

// WriteEntries inserts entries, ignoring ones already written.
func (s *SQLStore) WriteEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ins := entsql.Dialect(dialect.SQLite).Insert("activity_entries").Columns(entryColumns...)
	for _, e := range entries {
		refs, err := json.Marshal(e.Refs)
		if err != nil {
			return fmt.Errorf("encoding refs: %w", err)
		}
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		ins.Values(
			e.EventID, e.EventType, e.OccurredAt.UTC().Format(occurredLayout), e.ContentType, e.DocumentID,
			e.Role, string(refs), e.Summary, e.Category, payload,
		)
	}
	q, args := ins.OnConflict(entsql.DoNothing()).Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

// QueryByDocument returns entries for one document with filtering and
// pagination.
func (s *SQLStore) QueryByDocument(ctx context.Context, contentType, documentID string, opts QueryOptions) ([]Entry, string, int, error) {
	limit := opts.limit()
	filter := func() []*entsql.Predicate {
		preds := []*entsql.Predicate{
			entsql.EQ("content_type", contentType),
			entsql.EQ("document_id", documentID),
		}
		if opts.Since != nil {
			preds = append(preds, entsql.GTE("occurred_at", opts.Since.UTC().Format(occurredLayout)))
		}
		if opts.Until != nil {
			preds = append(preds, entsql.LTE("occurred_at", opts.Until.UTC().Format(occurredLayout)))
		}
		if len(opts.Categories) > 0 {
			preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
		}
		return preds
	}

	preds := filter()
	if opts.Cursor != "" {
		if t, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			preds = append(preds, entsql.LT("occurred_at", t.UTC().Format(occurredLayout)))
		}
	}
	q, args := entsql.Dialect(dialect.SQLite).Select(entryColumns...).
		From(entsql.Table("activity_entries")).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(limit + 1).
		Query()
	entries, err := s.query(ctx, q, args)
	if err != nil {
		return nil, "", 0, fmt.Errorf("querying activity entries: %w", err)
	}

	var nextCursor string
	if len(entries) > limit {
		entries = entries[:limit]
		nextCursor = entries[len(entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}

	total, err := s.count(ctx, filter())
	if err != nil {
		return nil, "", 0, err
	}
	return entries, nextCursor, total, nil
}

// Search performs a case-insensitive substring search across summaries.
func (s *SQLStore) Search(ctx context.Context, query string, opts SearchOptions) ([]Entry, int, error) {
	filter := func() []*entsql.Predicate {
		preds := []*entsql.Predicate{entsql.ContainsFold("summary", query)}
		if opts.ContentType != "" {
			preds = append(preds, entsql.EQ("content_type", opts.ContentType))
		}
		if opts.Since != nil {
			preds = append(preds, entsql.GTE("occurred_at", opts.Since.UTC().Format(occurredLayout)))
		}
		if len(opts.Categories) > 0 {
			preds = append(preds, entsql.In("category", anySlice(opts.Categories)...))
		}
		return preds
	}

	q, args := entsql.Dialect(dialect.SQLite).Select(entryColumns...).
		From(entsql.Table("activity_entries")).
		Where(entsql.And(filter()...)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(opts.limit()).
		Query()
	entries, err := s.query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("searching activity entries: %w", err)
	}
	total, err := s.count(ctx, filter())
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *SQLStore) count(ctx context.Context, preds []*entsql.Predicate) (int, error) {
	q, args := entsql.Dialect(dialect.SQLite).Select(entsql.Count("*")).
		From(entsql.Table("activity_entries")).
		Where(entsql.And(preds...)).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return 0, fmt.Errorf("counting activity entries: %w", err)
	}
	defer rows.Close()
	var total int
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, fmt.Errorf("counting activity entries: %w", err)
		}
	}
	return total, rows.Err()
}

func (s *SQLStore) query(ctx context.Context, q string, args []any) ([]Entry, error) {
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			occurred string
			refs     string
			payload  sql.NullString
		)
		err := rows.Scan(
			&e.EventID, &e.EventType, &occurred, &e.ContentType, &e.DocumentID,
			&e.Role, &refs, &e.Summary, &e.Category, &payload,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		if e.OccurredAt, err = time.Parse(occurredLayout, occurred); err != nil {
			return nil, fmt.Errorf("parsing occurred_at %q: %w", occurred, err)
		}
		_ = json.Unmarshal([]byte(refs), &e.Refs)
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
