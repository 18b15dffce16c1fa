package wire

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/gridedit/internal/bulkedit"
	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/session"
	"github.com/matthewbaird/gridedit/internal/store"
)

const (
	tagUID     = "api::tag.tag"
	articleUID = "api::article.article"
)

type received struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	conn     *websocket.Conn
	store    *store.Store
	sessions *session.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := contenttype.Default()
	require.NoError(t, err)
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	st := store.New(db, reg, logger.Nop())
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	local := NewLocal(reg, st, bulkedit.NewService(st, reg, nil, logger.Nop()))
	sessions := session.NewManager(time.Hour, time.Hour, logger.Nop())
	srv := httptest.NewServer(NewHandler(sessions, local, local.Deps(), logger.Nop()))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	return &harness{t: t, ctx: ctx, conn: conn, store: st, sessions: sessions}
}

func (h *harness) create(uid string, fields map[string]any) map[string]any {
	h.t.Helper()
	rec, err := h.store.Create(context.Background(), uid, store.Write{Fields: fields})
	require.NoError(h.t, err)
	return rec
}

func (h *harness) send(typ string, data any) {
	h.t.Helper()
	msg := map[string]any{"type": typ, "id": typ}
	if data != nil {
		msg["data"] = data
	}
	require.NoError(h.t, wsjson.Write(h.ctx, h.conn, msg))
}

// until reads messages until one of type typ satisfies accept.
func (h *harness) until(typ string, accept func(json.RawMessage) bool) received {
	h.t.Helper()
	for {
		var msg received
		require.NoError(h.t, wsjson.Read(h.ctx, h.conn, &msg))
		if msg.Type == typ && (accept == nil || accept(msg.Data)) {
			return msg
		}
	}
}

func (h *harness) state(accept func(grid.Snapshot) bool) grid.Snapshot {
	h.t.Helper()
	var snap grid.Snapshot
	h.until(TypeState, func(raw json.RawMessage) bool {
		snap = grid.Snapshot{}
		require.NoError(h.t, json.Unmarshal(raw, &snap))
		return accept == nil || accept(snap)
	})
	return snap
}

func (h *harness) open(uid string, ids ...string) string {
	h.t.Helper()
	h.send(TypeOpen, OpenData{ContentType: uid, DocumentIDs: ids})
	var sd SessionData
	require.NoError(h.t, json.Unmarshal(h.until(TypeSession, nil).Data, &sd))
	h.state(func(s grid.Snapshot) bool { return !s.Loading })
	return sd.SessionID
}

func docID(rec map[string]any) string { return rec["documentId"].(string) }

func TestSession_EditSelectionAndSave(t *testing.T) {
	h := newHarness(t)
	t1 := h.create(tagUID, map[string]any{"name": "go"})
	t2 := h.create(tagUID, map[string]any{"name": "rust"})

	h.open(tagUID, docID(t1), docID(t2))

	h.send(TypeClick, ClickData{CellData: CellData{RecordID: docID(t1), Field: "name"}})
	h.state(nil)
	h.send(TypeClick, ClickData{CellData: CellData{RecordID: docID(t2), Field: "name"}, Shift: true})
	snap := h.state(nil)
	assert.Equal(t, 2, snap.Selected)

	h.send(TypeEdit, EditData{CellData: CellData{RecordID: docID(t1), Field: "name"}, Value: "lang"})
	snap = h.state(nil)
	assert.True(t, snap.Dirty)

	h.send(TypeSave, nil)
	var n grid.Notification
	require.NoError(t, json.Unmarshal(h.until(TypeNotification, nil).Data, &n))
	assert.Equal(t, grid.Notification{Type: grid.NotifySuccess, Message: "Updated 2 entries"}, n)

	var closed ClosedData
	require.NoError(t, json.Unmarshal(h.until(TypeClosed, nil).Data, &closed))
	assert.True(t, closed.NeedsReload)
	assert.Equal(t, 0, h.sessions.Len())

	for _, rec := range []map[string]any{t1, t2} {
		got, err := h.store.FindOne(context.Background(), tagUID, docID(rec), false)
		require.NoError(t, err)
		assert.Equal(t, "lang", got["name"])
	}
}

func TestSession_InverseRelationSavedOnOwningSide(t *testing.T) {
	h := newHarness(t)
	tag := h.create(tagUID, map[string]any{"name": "go"})
	article := h.create(articleUID, map[string]any{"title": "Generics"})

	h.open(tagUID, docID(tag))

	h.send(TypeRelationAdd, RelationData{
		CellData: CellData{RecordID: docID(tag), Field: "articles"},
		TargetID: article["id"].(int64),
	})
	snap := h.state(nil)
	assert.True(t, snap.Dirty)

	h.send(TypeSave, SaveData{})
	h.until(TypeClosed, nil)

	got, err := h.store.FindOne(context.Background(), articleUID, docID(article), true)
	require.NoError(t, err)
	tags, ok := got["tags"].([]map[string]any)
	require.True(t, ok, "tags populated as a list")
	require.Len(t, tags, 1)
	assert.Equal(t, docID(tag), tags[0]["documentId"])
}

func TestSession_CloseGuard(t *testing.T) {
	h := newHarness(t)
	tag := h.create(tagUID, map[string]any{"name": "go"})
	h.open(tagUID, docID(tag))

	h.send(TypeEdit, EditData{CellData: CellData{RecordID: docID(tag), Field: "name"}, Value: "golang"})
	h.state(nil)

	h.send(TypeClose, nil)
	snap := h.state(nil)
	assert.True(t, snap.ConfirmClose)
	assert.False(t, snap.Closed)

	h.send(TypeCancelClose, nil)
	snap = h.state(nil)
	assert.False(t, snap.ConfirmClose)
	assert.True(t, snap.Dirty)

	h.send(TypeClose, nil)
	h.state(nil)
	h.send(TypeConfirmClose, nil)
	var closed ClosedData
	require.NoError(t, json.Unmarshal(h.until(TypeClosed, nil).Data, &closed))
	assert.False(t, closed.NeedsReload)

	got, err := h.store.FindOne(context.Background(), tagUID, docID(tag), false)
	require.NoError(t, err)
	assert.Equal(t, "go", got["name"])
}

func TestSession_Reattach(t *testing.T) {
	h := newHarness(t)
	tag := h.create(tagUID, map[string]any{"name": "go"})
	id := h.open(tagUID, docID(tag))

	h.send(TypeEdit, EditData{CellData: CellData{RecordID: docID(tag), Field: "name"}, Value: "golang"})
	h.state(nil)

	h.send(TypeOpen, OpenData{SessionID: id})
	var sd SessionData
	require.NoError(t, json.Unmarshal(h.until(TypeSession, nil).Data, &sd))
	assert.Equal(t, id, sd.SessionID)
	snap := h.state(nil)
	assert.True(t, snap.Dirty)
}

func TestSession_ProtocolErrors(t *testing.T) {
	h := newHarness(t)

	h.send(TypePing, nil)
	assert.Equal(t, "ping", h.until(TypePong, nil).RequestID)

	h.send(TypeClick, ClickData{})
	var e ErrorData
	require.NoError(t, json.Unmarshal(h.until(TypeError, nil).Data, &e))
	assert.Equal(t, "no_session", e.Code)

	h.send(TypeOpen, OpenData{ContentType: tagUID, DocumentIDs: []string{"missing"}})
	require.NoError(t, json.Unmarshal(h.until(TypeError, nil).Data, &e))
	assert.Equal(t, "load_failed", e.Code)

	h.send(TypeOpen, OpenData{SessionID: "nope"})
	require.NoError(t, json.Unmarshal(h.until(TypeError, nil).Data, &e))
	assert.Equal(t, "no_session", e.Code)

	h.send("bogus", nil)
	require.NoError(t, json.Unmarshal(h.until(TypeError, nil).Data, &e))
	assert.Equal(t, "no_session", e.Code)
}
