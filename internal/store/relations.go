package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/matthewbaird/gridedit/internal/contenttype"
)

// side locates the relation rows that back field f of schema. Owning
// fields read their own rows; inverse fields read the rows of the owning
// field on the target, keyed by target document.
type side struct {
	contentType string
	field       string
	keyColumn   string
	valueColumn string
	orderColumn string
}

func relationSide(schema *contenttype.Schema, f *contenttype.Field) side {
	if f.Owning() {
		return side{
			contentType: schema.UID,
			field:       f.Name,
			keyColumn:   "document_id",
			valueColumn: "target_document_id",
			orderColumn: "position",
		}
	}
	return side{
		contentType: f.Target,
		field:       f.MappedBy,
		keyColumn:   "target_document_id",
		valueColumn: "document_id",
		orderColumn: "id",
	}
}

func (sd side) where(keys ...string) *entsql.Predicate {
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return entsql.And(
		entsql.EQ("content_type", sd.contentType),
		entsql.EQ("field", sd.field),
		entsql.In(sd.keyColumn, args...),
	)
}

// writeRelations replaces the target set of every owning relation in rels.
// References resolve against the relation target; to-one relations keep
// the last reference.
func (s *Store) writeRelations(ctx context.Context, tx dialect.Tx, schema *contenttype.Schema, docID string, rels map[string][]any) error {
	for _, f := range schema.RelationFields() {
		refs, ok := rels[f.Name]
		if !ok {
			continue
		}
		var targets []string
		seen := map[string]bool{}
		for _, ref := range refs {
			r, ok := refString(ref)
			if !ok {
				return fmt.Errorf("%w: %s.%s reference %v", ErrInvalidField, schema.UID, f.Name, ref)
			}
			target, err := s.resolve(ctx, tx, f.Target, r)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", schema.UID, f.Name, err)
			}
			if !seen[target.documentID] {
				seen[target.documentID] = true
				targets = append(targets, target.documentID)
			}
		}
		if !f.IsToMany() && len(targets) > 1 {
			targets = targets[len(targets)-1:]
		}

		q, args := builder().Delete("relations").
			Where(entsql.And(
				entsql.EQ("content_type", schema.UID),
				entsql.EQ("document_id", docID),
				entsql.EQ("field", f.Name),
			)).
			Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("clearing %s.%s: %w", schema.UID, f.Name, err)
		}
		if len(targets) == 0 {
			continue
		}
		ins := builder().Insert("relations").
			Columns("content_type", "document_id", "field", "target_type", "target_document_id", "position")
		for i, target := range targets {
			ins.Values(schema.UID, docID, f.Name, f.Target, target, i)
		}
		q, args = ins.Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("linking %s.%s: %w", schema.UID, f.Name, err)
		}
	}
	return nil
}

// countRelations returns the number of related documents per document id.
func (s *Store) countRelations(ctx context.Context, schema *contenttype.Schema, f *contenttype.Field, docIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(docIDs))
	if len(docIDs) == 0 {
		return counts, nil
	}
	sd := relationSide(schema, f)
	q, args := builder().Select(sd.keyColumn, entsql.Count("*")).
		From(entsql.Table("relations")).
		Where(sd.where(docIDs...)).
		GroupBy(sd.keyColumn).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("counting %s.%s: %w", schema.UID, f.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning %s.%s count: %w", schema.UID, f.Name, err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// related returns the records linked through f, in link order.
func (s *Store) related(ctx context.Context, schema *contenttype.Schema, f *contenttype.Field, docID string) ([]map[string]any, error) {
	sd := relationSide(schema, f)
	q, args := builder().Select(sd.valueColumn).
		From(entsql.Table("relations")).
		Where(sd.where(docID)).
		OrderBy(sd.orderColumn).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("loading %s.%s: %w", schema.UID, f.Name, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning %s.%s: %w", schema.UID, f.Name, err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		doc, err := s.resolve(ctx, s.drv, f.Target, id)
		if err != nil {
			s.log.Warn("dangling relation", "content_type", schema.UID, "field", f.Name, "target_document_id", id)
			continue
		}
		out = append(out, doc.record())
	}
	return out, nil
}
