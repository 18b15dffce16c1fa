package wire

import (
	"context"
	"fmt"

	"github.com/matthewbaird/gridedit/internal/bulkedit"
	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/store"
)

// optionPageSize bounds the relation targets offered per field.
const optionPageSize = 100

// DocumentReader is the read side of the document store.
type DocumentReader interface {
	FindOne(ctx context.Context, contentType, ref string, populate bool) (map[string]any, error)
	List(ctx context.Context, contentType string, page, pageSize int) ([]map[string]any, store.Pagination, error)
}

// BulkService applies batches and fetches populated records.
type BulkService interface {
	BulkUpdate(ctx context.Context, req bulkedit.Request) (bulkedit.Response, error)
	GetPopulated(ctx context.Context, req bulkedit.PopulateRequest) (bulkedit.PopulateResponse, error)
}

// RecordLoader fetches the records a session is opened over.
type RecordLoader interface {
	Records(ctx context.Context, contentType string, documentIDs []string) ([]grid.Record, error)
}

// Backend supplies an editor session with its records and collaborators.
type Backend interface {
	RecordLoader
	Deps() grid.Deps
}

// Local serves every editor collaborator from the registry, the store and
// the bulk edit service of this process.
type Local struct {
	reg  *contenttype.Registry
	docs DocumentReader
	svc  BulkService
}

var (
	_ grid.SchemaSource = (*Local)(nil)
	_ grid.OptionSource = (*Local)(nil)
	_ grid.Populator    = (*Local)(nil)
	_ grid.Saver        = (*Local)(nil)
	_ Backend           = (*Local)(nil)
)

// NewLocal creates a Local.
func NewLocal(reg *contenttype.Registry, docs DocumentReader, svc BulkService) *Local {
	return &Local{reg: reg, docs: docs, svc: svc}
}

// Deps returns editor collaborators backed by l.
func (l *Local) Deps() grid.Deps {
	return grid.Deps{Schemas: l, Options: l, Populator: l, Saver: l}
}

func (l *Local) Schema(_ context.Context, uid string) (*contenttype.Schema, error) {
	return l.reg.Get(uid)
}

func (l *Local) RelationTargets(ctx context.Context, uid string) ([]grid.Record, error) {
	docs, _, err := l.docs.List(ctx, uid, 1, optionPageSize)
	if err != nil {
		return nil, err
	}
	return toRecords(docs), nil
}

func (l *Local) GetPopulated(ctx context.Context, contentType string, documentIDs []string) ([]grid.Record, error) {
	resp, err := l.svc.GetPopulated(ctx, bulkedit.PopulateRequest{ContentType: contentType, DocumentIDs: documentIDs})
	if err != nil {
		return nil, err
	}
	return toRecords(resp.Documents), nil
}

func (l *Local) BulkUpdate(ctx context.Context, req grid.SaveRequest) (grid.SaveResult, error) {
	in := bulkedit.Request{ContentType: req.ContentType, Publish: req.Publish}
	in.Updates = make([]bulkedit.Entry, len(req.Updates))
	for i, u := range req.Updates {
		in.Updates[i] = bulkedit.Entry{ID: u.ID, Data: u.Data}
	}
	resp, err := l.svc.BulkUpdate(ctx, in)
	if err != nil {
		return grid.SaveResult{}, err
	}
	out := grid.SaveResult{Success: resp.Success, Results: make([]grid.RecordResult, len(resp.Results))}
	for i, r := range resp.Results {
		out.Results[i] = grid.RecordResult{ID: r.ID, Success: r.Success, Data: r.Data, Error: r.Error}
	}
	return out, nil
}

// Records returns the documents as stored, relations as count placeholders.
func (l *Local) Records(ctx context.Context, contentType string, documentIDs []string) ([]grid.Record, error) {
	out := make([]grid.Record, 0, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := l.docs.FindOne(ctx, contentType, id, false)
		if err != nil {
			return nil, fmt.Errorf("loading %s %s: %w", contentType, id, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func toRecords(docs []map[string]any) []grid.Record {
	out := make([]grid.Record, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
