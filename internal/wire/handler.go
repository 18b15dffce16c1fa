package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/session"
)

// Handler manages WebSocket connections of bulk edit sessions.
type Handler struct {
	sessions *session.Manager
	records  RecordLoader
	deps     grid.Deps
	log      *logger.Logger
}

// NewHandler creates a WebSocket handler. deps.Notifier is replaced per
// session.
func NewHandler(sessions *session.Manager, records RecordLoader, deps grid.Deps, log *logger.Logger) *Handler {
	log = log.With("component", "wire")
	if deps.Log == nil {
		deps.Log = log
	}
	return &Handler{sessions: sessions, records: records, deps: deps, log: log}
}

// connection is the state of one socket.
type connection struct {
	h    *Handler
	conn *websocket.Conn
	ctx  context.Context
	sess *session.Session
}

// ServeHTTP upgrades to WebSocket and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	c := &connection{h: h, conn: conn, ctx: r.Context()}
	defer func() {
		if c.sess != nil {
			c.sess.Attach(nil)
		}
	}()

	for {
		var msg ClientMessage
		if err := wsjson.Read(c.ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				h.log.Debug("connection closed", "status", status)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *connection) handle(msg ClientMessage) {
	switch msg.Type {
	case TypePing:
		c.send(ServerMessage{Type: TypePong, RequestID: msg.ID})
		return
	case TypeOpen:
		c.handleOpen(msg)
		return
	}

	if c.sess == nil {
		c.sendError(msg.ID, "no_session", "open a session first")
		return
	}
	c.sess.Touch()
	ed := c.sess.Editor()

	switch msg.Type {
	case TypeClick:
		d, ok := decode[ClickData](c, msg)
		if ok {
			c.dispatch(msg.ID, ed, grid.Click{Cell: d.cell(), Shift: d.Shift, Toggle: d.Toggle, OnControl: d.OnControl})
		}
	case TypeDragStart:
		if d, ok := decode[CellData](c, msg); ok {
			c.dispatch(msg.ID, ed, grid.DragStart{Cell: d.cell()})
		}
	case TypeDragOver:
		if d, ok := decode[CellData](c, msg); ok {
			c.dispatch(msg.ID, ed, grid.DragOver{Cell: d.cell()})
		}
	case TypeDragEnd:
		c.dispatch(msg.ID, ed, grid.DragEnd{})
	case TypeHover:
		var d CellData
		if len(msg.Data) > 0 {
			var ok bool
			if d, ok = decode[CellData](c, msg); !ok {
				return
			}
		}
		c.dispatch(msg.ID, ed, grid.Hover{Cell: d.cell()})
	case TypeEdit:
		if d, ok := decode[EditData](c, msg); ok {
			c.dispatch(msg.ID, ed, grid.Edit{Cell: d.cell(), Value: d.Value})
		}
	case TypeRelationAdd:
		if d, ok := decode[RelationData](c, msg); ok {
			c.dispatch(msg.ID, ed, grid.AddRelation{Cell: d.cell(), ID: d.TargetID})
		}
	case TypeRelationRemove:
		if d, ok := decode[RelationData](c, msg); ok {
			c.dispatch(msg.ID, ed, grid.RemoveRelation{Cell: d.cell(), ID: d.TargetID})
		}
	case TypeSave:
		var d SaveData
		if len(msg.Data) > 0 {
			var ok bool
			if d, ok = decode[SaveData](c, msg); !ok {
				return
			}
		}
		c.handleSave(msg.ID, c.sess, d)
	case TypeClose:
		if ed.RequestClose() == grid.CloseDone {
			c.finish(msg.ID, c.sess)
			return
		}
		c.sendState(msg.ID, ed)
	case TypeConfirmClose:
		ed.ConfirmClose()
		c.finish(msg.ID, c.sess)
	case TypeCancelClose:
		ed.CancelClose()
		c.sendState(msg.ID, ed)
	default:
		c.sendError(msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *connection) handleOpen(msg ClientMessage) {
	d, ok := decode[OpenData](c, msg)
	if !ok {
		return
	}
	if c.sess != nil {
		c.sess.Attach(nil)
		c.sess = nil
	}

	if d.SessionID != "" {
		sess, err := c.h.sessions.Get(d.SessionID)
		if err != nil {
			c.sendError(msg.ID, "no_session", err.Error())
			return
		}
		c.attach(msg.ID, sess)
		return
	}

	if d.ContentType == "" || len(d.DocumentIDs) == 0 {
		c.sendError(msg.ID, "invalid_data", "content_type and document_ids are required")
		return
	}
	records, err := c.h.records.Records(c.ctx, d.ContentType, d.DocumentIDs)
	if err != nil {
		c.sendError(msg.ID, "load_failed", err.Error())
		return
	}
	sess, err := c.h.sessions.Create(d.ContentType, func(n grid.Notifier) (*grid.Editor, error) {
		deps := c.h.deps
		deps.Notifier = n
		return grid.New(deps, d.ContentType, records)
	})
	if err != nil {
		c.sendError(msg.ID, errorCode(err), err.Error())
		return
	}
	c.attach(msg.ID, sess)

	// The session outlives this socket, so loading must too.
	loadCtx := context.WithoutCancel(c.ctx)
	go func() {
		ed := sess.Editor()
		if err := ed.Load(loadCtx); err != nil {
			c.h.log.Warn("editor load failed", "session_id", sess.ID, "error", err)
			c.sendError(msg.ID, "load_failed", err.Error())
		}
		c.sendState(msg.ID, ed)
	}()
}

func (c *connection) attach(requestID string, sess *session.Session) {
	c.sess = sess
	c.send(ServerMessage{
		Type:      TypeSession,
		RequestID: requestID,
		Data:      SessionData{SessionID: sess.ID, ContentType: sess.ContentType},
	})
	sess.Attach(func(n grid.Notification) {
		c.send(ServerMessage{Type: TypeNotification, Data: n})
	})
	c.sendState(requestID, sess.Editor())
}

// handleSave runs the save off the read loop so a second save arriving
// while the first is in flight is rejected by the editor.
func (c *connection) handleSave(requestID string, sess *session.Session, d SaveData) {
	ed := sess.Editor()
	saveCtx := context.WithoutCancel(c.ctx)
	go func() {
		if _, err := ed.Save(saveCtx, grid.SaveOptions{Publish: d.Publish}); err != nil {
			c.sendError(requestID, errorCode(err), err.Error())
			if !errors.Is(err, grid.ErrSaveInProgress) {
				c.sendState(requestID, ed)
			}
			return
		}
		c.finish(requestID, sess)
	}()
}

func (c *connection) finish(requestID string, sess *session.Session) {
	ed := sess.Editor()
	c.sendState(requestID, ed)
	c.send(ServerMessage{
		Type:      TypeClosed,
		RequestID: requestID,
		Data:      ClosedData{NeedsReload: ed.NeedsReload()},
	})
	c.h.sessions.Remove(sess.ID)
}

func (c *connection) dispatch(requestID string, ed *grid.Editor, a grid.Action) {
	if err := ed.Dispatch(a); err != nil {
		c.sendError(requestID, errorCode(err), err.Error())
		return
	}
	c.sendState(requestID, ed)
}

func (c *connection) sendState(requestID string, ed *grid.Editor) {
	c.send(ServerMessage{Type: TypeState, RequestID: requestID, Data: ed.Snapshot()})
}

func (c *connection) send(msg ServerMessage) {
	if err := wsjson.Write(c.ctx, c.conn, msg); err != nil {
		c.h.log.Debug("write error", "type", msg.Type, "error", err)
	}
}

func (c *connection) sendError(requestID, code, message string) {
	c.send(ServerMessage{
		Type:      TypeError,
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	})
}

func decode[T any](c *connection, msg ClientMessage) (T, bool) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		c.sendError(msg.ID, "invalid_data", fmt.Sprintf("invalid %s data", msg.Type))
		return v, false
	}
	return v, true
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, grid.ErrBusy):
		return "busy"
	case errors.Is(err, grid.ErrClosed):
		return "closed"
	case errors.Is(err, grid.ErrSaveInProgress):
		return "save_in_progress"
	case errors.Is(err, grid.ErrNotEditable):
		return "not_editable"
	case errors.Is(err, grid.ErrNotToMany):
		return "not_to_many"
	case errors.Is(err, grid.ErrUnknownRecord):
		return "unknown_record"
	case errors.Is(err, grid.ErrNoRecords):
		return "no_records"
	case errors.Is(err, grid.ErrSaveRejected):
		return "save_failed"
	default:
		return "error"
	}
}
