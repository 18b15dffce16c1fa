package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/matthewbaird/gridedit/internal/contenttype"
)

var documentColumns = []string{
	"id", "document_id", "content_type", "data", "status", "published_at", "created_at", "updated_at",
}

// Write is a change to one document.
type Write struct {
	// Fields holds scalar attribute values.
	Fields map[string]any
	// Relations replaces the target set of owning relation fields. Each
	// reference is a numeric id or a document id.
	Relations map[string][]any
	// Status is "draft" or "published"; empty leaves it unchanged. Ignored
	// for content types without draft and publish.
	Status string
}

// Pagination describes one page of a list.
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type document struct {
	id          int64
	documentID  string
	contentType string
	data        map[string]any
	status      string
	publishedAt sql.NullString
	createdAt   string
	updatedAt   string
}

func (d *document) record() map[string]any {
	out := make(map[string]any, len(d.data)+6)
	for k, v := range d.data {
		out[k] = v
	}
	out["id"] = d.id
	out["documentId"] = d.documentID
	out["status"] = d.status
	out["createdAt"] = d.createdAt
	out["updatedAt"] = d.updatedAt
	if d.publishedAt.Valid {
		out["publishedAt"] = d.publishedAt.String
	} else {
		out["publishedAt"] = nil
	}
	return out
}

// Create inserts a new document and returns it populated.
func (s *Store) Create(ctx context.Context, contentType string, w Write) (map[string]any, error) {
	schema, err := s.reg.Get(contentType)
	if err != nil {
		return nil, err
	}
	if err := checkWrite(schema, w); err != nil {
		return nil, err
	}
	data := make(map[string]any, len(w.Fields))
	for k, v := range w.Fields {
		data[k] = v
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s data: %w", contentType, err)
	}

	now := s.now().Format(timeLayout)
	status := StatusPublished
	var publishedAt any = now
	if schema.DraftAndPublish && w.Status != StatusPublished {
		status, publishedAt = StatusDraft, nil
	}
	docID := uuid.NewString()

	err = s.withTx(ctx, func(tx dialect.Tx) error {
		q, args := builder().Insert("documents").
			Columns("document_id", "content_type", "data", "status", "published_at", "created_at", "updated_at").
			Values(docID, contentType, string(raw), status, publishedAt, now, now).
			Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("inserting %s: %w", contentType, err)
		}
		return s.writeRelations(ctx, tx, schema, docID, w.Relations)
	})
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, contentType, docID, true)
}

// Update applies w to the document ref points at and returns it populated.
func (s *Store) Update(ctx context.Context, contentType, ref string, w Write) (map[string]any, error) {
	schema, err := s.reg.Get(contentType)
	if err != nil {
		return nil, err
	}
	if err := checkWrite(schema, w); err != nil {
		return nil, err
	}
	var docID string
	err = s.withTx(ctx, func(tx dialect.Tx) error {
		doc, err := s.resolve(ctx, tx, contentType, ref)
		if err != nil {
			return err
		}
		docID = doc.documentID
		for k, v := range w.Fields {
			doc.data[k] = v
		}
		raw, err := json.Marshal(doc.data)
		if err != nil {
			return fmt.Errorf("encoding %s data: %w", contentType, err)
		}
		now := s.now().Format(timeLayout)
		upd := builder().Update("documents").
			Set("data", string(raw)).
			Set("updated_at", now).
			Where(entsql.EQ("id", doc.id))
		if schema.DraftAndPublish {
			switch w.Status {
			case StatusPublished:
				upd.Set("status", StatusPublished).Set("published_at", now)
			case StatusDraft:
				upd.Set("status", StatusDraft).SetNull("published_at")
			}
		}
		q, args := upd.Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("updating %s %s: %w", contentType, doc.documentID, err)
		}
		return s.writeRelations(ctx, tx, schema, doc.documentID, w.Relations)
	})
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, contentType, docID, true)
}

// FindOne returns the document ref points at. With populate, relation
// fields hold the related records; otherwise {count: n} placeholders.
func (s *Store) FindOne(ctx context.Context, contentType, ref string, populate bool) (map[string]any, error) {
	schema, err := s.reg.Get(contentType)
	if err != nil {
		return nil, err
	}
	doc, err := s.resolve(ctx, s.drv, contentType, ref)
	if err != nil {
		return nil, err
	}
	out := doc.record()
	for _, f := range schema.RelationFields() {
		if !populate {
			counts, err := s.countRelations(ctx, schema, f, []string{doc.documentID})
			if err != nil {
				return nil, err
			}
			out[f.Name] = map[string]any{"count": counts[doc.documentID]}
			continue
		}
		related, err := s.related(ctx, schema, f, doc.documentID)
		if err != nil {
			return nil, err
		}
		if f.IsToMany() {
			out[f.Name] = related
		} else if len(related) > 0 {
			out[f.Name] = related[len(related)-1]
		} else {
			out[f.Name] = nil
		}
	}
	return out, nil
}

// List returns one page of documents of contentType ordered by id.
// Relation fields hold {count: n} placeholders.
func (s *Store) List(ctx context.Context, contentType string, page, pageSize int) ([]map[string]any, Pagination, error) {
	schema, err := s.reg.Get(contentType)
	if err != nil {
		return nil, Pagination{}, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var total int
	q, args := builder().Select(entsql.Count("*")).
		From(entsql.Table("documents")).
		Where(entsql.EQ("content_type", contentType)).
		Query()
	if err := s.scanOne(ctx, s.drv, q, args, &total); err != nil {
		return nil, Pagination{}, fmt.Errorf("counting %s: %w", contentType, err)
	}

	q, args = builder().Select(documentColumns...).
		From(entsql.Table("documents")).
		Where(entsql.EQ("content_type", contentType)).
		OrderBy("id").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Query()
	docs, err := s.queryDocuments(ctx, s.drv, q, args)
	if err != nil {
		return nil, Pagination{}, err
	}

	ids := make([]string, len(docs))
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		ids[i] = d.documentID
		out[i] = d.record()
	}
	for _, f := range schema.RelationFields() {
		counts, err := s.countRelations(ctx, schema, f, ids)
		if err != nil {
			return nil, Pagination{}, err
		}
		for i, id := range ids {
			out[i][f.Name] = map[string]any{"count": counts[id]}
		}
	}

	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	p.PageCount = (total + pageSize - 1) / pageSize
	return out, p, nil
}

// resolve finds a document by numeric id or document id.
func (s *Store) resolve(ctx context.Context, q dialect.ExecQuerier, contentType string, ref string) (*document, error) {
	ref = strings.TrimSpace(ref)
	where := entsql.EQ("document_id", ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		where = entsql.EQ("id", id)
	}
	query, args := builder().Select(documentColumns...).
		From(entsql.Table("documents")).
		Where(entsql.And(entsql.EQ("content_type", contentType), where)).
		Query()
	docs, err := s.queryDocuments(ctx, q, query, args)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, contentType, ref)
	}
	return docs[0], nil
}

// refString renders a relation reference as accepted by resolve.
func refString(ref any) (string, bool) {
	switch v := ref.(type) {
	case string:
		return v, v != ""
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		if v != float64(int64(v)) {
			return "", false
		}
		return strconv.FormatInt(int64(v), 10), true
	case json.Number:
		return v.String(), true
	case map[string]any:
		if id, ok := v["documentId"].(string); ok && id != "" {
			return id, true
		}
		return refString(v["id"])
	default:
		return "", false
	}
}

func (s *Store) queryDocuments(ctx context.Context, q dialect.ExecQuerier, query string, args []any) ([]*document, error) {
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []*document
	for rows.Next() {
		d := &document{}
		var raw string
		if err := rows.Scan(&d.id, &d.documentID, &d.contentType, &raw, &d.status, &d.publishedAt, &d.createdAt, &d.updatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &d.data); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", d.documentID, err)
		}
		if d.data == nil {
			d.data = map[string]any{}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) scanOne(ctx context.Context, q dialect.ExecQuerier, query string, args []any, dest ...any) error {
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.Scan(dest...)
}

// checkWrite rejects writes the schema does not allow.
func checkWrite(schema *contenttype.Schema, w Write) error {
	for name := range w.Fields {
		f := schema.Field(name)
		switch {
		case f == nil:
			return fmt.Errorf("%w: %s has no attribute %q", ErrInvalidField, schema.UID, name)
		case f.IsRelation():
			return fmt.Errorf("%w: %s.%s is a relation", ErrInvalidField, schema.UID, name)
		}
	}
	for name := range w.Relations {
		f := schema.Field(name)
		switch {
		case !f.IsRelation():
			return fmt.Errorf("%w: %s.%s is not a relation", ErrInvalidField, schema.UID, name)
		case !f.Owning():
			return fmt.Errorf("%w: %s.%s is mapped by %s.%s", ErrInvalidField, schema.UID, name, f.Target, f.MappedBy)
		}
	}
	return nil
}
