// Package wire defines the WebSocket protocol of a bulk edit session and
// the in-process collaborators the session's editor talks to.
package wire

import (
	"encoding/json"

	"github.com/matthewbaird/gridedit/internal/grid"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id"` // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// Client message types.
const (
	TypeOpen           = "open"
	TypeClick          = "click"
	TypeDragStart      = "drag_start"
	TypeDragOver       = "drag_over"
	TypeDragEnd        = "drag_end"
	TypeHover          = "hover"
	TypeEdit           = "edit"
	TypeRelationAdd    = "relation_add"
	TypeRelationRemove = "relation_remove"
	TypeSave           = "save"
	TypeClose          = "close"
	TypeConfirmClose   = "confirm_close"
	TypeCancelClose    = "cancel_close"
	TypePing           = "ping"
)

// OpenData starts a session over the given records, or reattaches to an
// existing one when SessionID is set.
type OpenData struct {
	SessionID   string   `json:"session_id,omitempty"`
	ContentType string   `json:"content_type"`
	DocumentIDs []string `json:"document_ids"`
}

// CellData addresses one cell.
type CellData struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
}

func (c CellData) cell() grid.Cell {
	return grid.Cell{RecordID: c.RecordID, Field: c.Field}
}

// ClickData is a cell click with its modifier keys.
type ClickData struct {
	CellData
	Shift     bool `json:"shift,omitempty"`
	Toggle    bool `json:"toggle,omitempty"`
	OnControl bool `json:"on_control,omitempty"`
}

// EditData sets a cell value.
type EditData struct {
	CellData
	Value any `json:"value"`
}

// RelationData adds or removes one target of a to-many relation cell.
type RelationData struct {
	CellData
	TargetID int64 `json:"target_id"`
}

// SaveData controls a save.
type SaveData struct {
	Publish bool `json:"publish,omitempty"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "state", "notification", "closed", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// Server message types.
const (
	TypeSession      = "session"
	TypeState        = "state"
	TypeNotification = "notification"
	TypeClosed       = "closed"
	TypeError        = "error"
	TypePong         = "pong"
)

// SessionData carries session information.
type SessionData struct {
	SessionID   string `json:"session_id"`
	ContentType string `json:"content_type"`
}

// ClosedData is sent once the editor has closed.
type ClosedData struct {
	NeedsReload bool `json:"needs_reload"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
