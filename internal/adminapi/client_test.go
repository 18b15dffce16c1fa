package adminapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/gridedit/internal/activity"
	"github.com/matthewbaird/gridedit/internal/bulkedit"
	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/server"
	"github.com/matthewbaird/gridedit/internal/session"
	"github.com/matthewbaird/gridedit/internal/store"
	"github.com/matthewbaird/gridedit/internal/wire"
)

const (
	articleUID = "api::article.article"
	tagUID     = "api::tag.tag"
)

func newClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := New(logger.Nop(), Config{BaseURL: url + "/", Token: "secret", MaxRetries: retries})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(logger.Nop(), Config{BaseURL: "  "})
	require.Error(t, err)
	_, err = New(nil, Config{BaseURL: "http://x"})
	require.Error(t, err)
}

func TestSchema_NormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/content-manager/content-types/api::tag.tag", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"draftAndPublish":false,"attributes":{"name":{"type":"string"},"articles":{"type":"relation","relation":"manyToMany","target":"api::article.article","mappedBy":"tags"}}}}`))
	}))
	defer srv.Close()

	s, err := newClient(t, srv.URL, 0).Schema(context.Background(), tagUID)
	require.NoError(t, err)
	assert.Equal(t, tagUID, s.UID)
	assert.Equal(t, []string{"articles", "name"}, s.FieldOrder)
	assert.Equal(t, "articles", s.Field("articles").Name)
	assert.False(t, s.Field("articles").Owning())
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		w.Write([]byte(`{"results":[{"id":1,"title":"One"}]}`))
	}))
	defer srv.Close()

	recs, err := newClient(t, srv.URL, 3).RelationTargets(context.Background(), articleUID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "One", recs[0]["title"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Missing or invalid contentType or updates", "code": "VALIDATION_ERROR"})
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 3).GetPopulated(context.Background(), "", nil)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", he.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBulkUpdate_NotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, 3).BulkUpdate(context.Background(), grid.SaveRequest{ContentType: tagUID, Updates: []grid.Update{}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// TestEditorOverHTTP drives a grid editor whose collaborators are all
// remote calls against the real router.
func TestEditorOverHTTP(t *testing.T) {
	ctx := context.Background()
	reg, err := contenttype.Default()
	require.NoError(t, err)
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	st := store.New(db, reg, logger.Nop())
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))
	svc := bulkedit.NewService(st, reg, nil, logger.Nop())

	srv := httptest.NewServer(server.NewRouter(server.Config{
		Registry: reg,
		Docs:     st,
		Bulk:     svc,
		Activity: activity.NewMemoryStore(),
		Sessions: session.NewManager(time.Hour, time.Hour, logger.Nop()),
		Editor:   wire.NewLocal(reg, st, svc),
		Log:      logger.Nop(),
	}))
	defer srv.Close()

	tag, err := st.Create(ctx, tagUID, store.Write{Fields: map[string]any{"name": "go"}})
	require.NoError(t, err)
	a1, err := st.Create(ctx, articleUID, store.Write{Fields: map[string]any{"title": "One"}})
	require.NoError(t, err)
	tagID := tag["documentId"].(string)

	c := newClient(t, srv.URL, 0)
	recs, err := c.Records(ctx, tagUID, []string{tagID})
	require.NoError(t, err)

	var notes []grid.Notification
	deps := c.Deps()
	deps.Notifier = grid.NotifierFunc(func(n grid.Notification) { notes = append(notes, n) })
	ed, err := grid.Open(ctx, deps, tagUID, recs)
	require.NoError(t, err)

	snap := ed.Snapshot()
	var articles *grid.ColumnView
	for i := range snap.Columns {
		if snap.Columns[i].Field == "articles" {
			articles = &snap.Columns[i]
		}
	}
	require.NotNil(t, articles)
	require.Len(t, articles.Options, 1)
	assert.Equal(t, "One", articles.Options[0].Label)

	cell := grid.Cell{RecordID: tagID, Field: "articles"}
	require.NoError(t, ed.Dispatch(grid.AddRelation{Cell: cell, ID: articles.Options[0].ID}))
	out, err := ed.Save(ctx, grid.SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	require.Len(t, notes, 1)
	assert.Equal(t, "Updated 1 entries", notes[0].Message)

	got, err := st.FindOne(ctx, articleUID, a1["documentId"].(string), true)
	require.NoError(t, err)
	require.Len(t, got["tags"], 1)

	_, err = c.Records(ctx, tagUID, []string{tagID, "missing"})
	require.Error(t, err)
}
