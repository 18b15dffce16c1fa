package grid

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/gridedit/internal/contenttype"
)

const (
	galleryUID = "api::gallery.gallery"
	articleUID = "api::article.article"
)

func demoSchema(t *testing.T, uid string) *contenttype.Schema {
	t.Helper()
	reg, err := contenttype.Default()
	require.NoError(t, err)
	s, err := reg.Get(uid)
	require.NoError(t, err)
	return s
}

func galleryRecords() []Record {
	return []Record{
		{"id": float64(1), "documentId": "g1", "title": "Alps", "rank": float64(1), "featured": true,
			"category": "nature", "publishedOn": "2024-05-01", "cover": map[string]any{"url": "/uploads/alps.jpg"},
			"images": []any{map[string]any{"id": float64(10)}}, "createdAt": "2024-01-01T00:00:00.000Z"},
		{"id": float64(2), "documentId": "g2", "title": "Tokyo", "rank": float64(2), "featured": false,
			"category": "urban", "publishedOn": nil, "cover": nil,
			"images": []any{}, "createdAt": "2024-01-01T00:00:00.000Z"},
		{"id": float64(3), "documentId": "g3", "title": "Faces", "rank": nil, "featured": false,
			"category": nil, "publishedOn": nil, "cover": nil,
			"images": map[string]any{"count": float64(4)}, "createdAt": "2024-01-01T00:00:00.000Z"},
	}
}

func articleRecords() []Record {
	return []Record{
		{"id": float64(1), "documentId": "a1", "title": "One", "tags": []any{map[string]any{"id": float64(7)}}, "author": map[string]any{"id": float64(3)}},
		{"id": float64(2), "documentId": "a2", "title": "Two", "tags": []any{}, "author": nil},
		{"id": float64(3), "documentId": "a3", "title": "Three", "tags": []any{map[string]any{"id": float64(8)}}, "author": nil},
	}
}

type fakeSchemas struct {
	reg *contenttype.Registry
	err error
}

func (f fakeSchemas) Schema(_ context.Context, uid string) (*contenttype.Schema, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reg.Get(uid)
}

func newFakeSchemas(t *testing.T) fakeSchemas {
	t.Helper()
	reg, err := contenttype.Default()
	require.NoError(t, err)
	return fakeSchemas{reg: reg}
}

type fakeOptions struct {
	targets map[string][]Record
}

func (f fakeOptions) RelationTargets(_ context.Context, uid string) ([]Record, error) {
	recs, ok := f.targets[uid]
	if !ok {
		return nil, errors.New("not found")
	}
	return recs, nil
}

type fakePopulator struct {
	mu    sync.Mutex
	calls [][]string
	byID  map[string]Record
	err   error
}

func (f *fakePopulator) GetPopulated(_ context.Context, _ string, ids []string) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	var out []Record
	for _, id := range ids {
		if r, ok := f.byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSaver struct {
	mu       sync.Mutex
	requests []SaveRequest
	result   func(SaveRequest) (SaveResult, error)
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeSaver) BulkUpdate(_ context.Context, req SaveRequest) (SaveResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.result != nil {
		return f.result(req)
	}
	res := SaveResult{Success: true}
	for _, u := range req.Updates {
		res.Results = append(res.Results, RecordResult{ID: u.ID, Success: true})
	}
	return res, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return Notification{}
	}
	return r.seen[len(r.seen)-1]
}

func openGallery(t *testing.T, saver *fakeSaver, notifier *recordingNotifier) *Editor {
	t.Helper()
	e, err := Open(context.Background(), Deps{
		Schemas:  newFakeSchemas(t),
		Saver:    saver,
		Notifier: notifier,
	}, galleryUID, galleryRecords())
	require.NoError(t, err)
	return e
}

func cell(id, field string) Cell {
	return Cell{RecordID: id, Field: field}
}
