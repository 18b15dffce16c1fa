package grid

import (
	"context"
	"errors"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/logger"
)

var (
	ErrSaveInProgress = errors.New("save already in progress")
	ErrBusy           = errors.New("editor is busy")
	ErrUnknownRecord  = errors.New("unknown record")
	ErrNotToMany      = errors.New("field is not a to-many relation")
	ErrNotEditable    = errors.New("field is not editable")
	ErrClosed         = errors.New("editor is closed")
	ErrNoRecords      = errors.New("no records to edit")
	ErrSaveRejected   = errors.New("bulk update rejected")
)

// SchemaSource resolves content type schemas.
type SchemaSource interface {
	Schema(ctx context.Context, uid string) (*contenttype.Schema, error)
}

// OptionSource lists candidate records of a relation target.
type OptionSource interface {
	RelationTargets(ctx context.Context, uid string) ([]Record, error)
}

// Populator re-fetches records with every relation resolved.
type Populator interface {
	GetPopulated(ctx context.Context, contentType string, documentIDs []string) ([]Record, error)
}

// SaveRequest is the body of one bulk update.
type SaveRequest struct {
	ContentType string   `json:"contentType"`
	Updates     []Update `json:"updates"`
	Publish     *bool    `json:"publish,omitempty"`
}

// RecordResult is the per-record outcome of a bulk update.
type RecordResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    Record `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SaveResult is the response of a bulk update.
type SaveResult struct {
	Success bool           `json:"success"`
	Results []RecordResult `json:"results"`
}

// Saver persists a batch of updates.
type Saver interface {
	BulkUpdate(ctx context.Context, req SaveRequest) (SaveResult, error)
}

// NotificationType is the severity of a user notification.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyDanger  NotificationType = "danger"
)

// Notification is a toast shown to the user.
type Notification struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Deps bundles the collaborators of an editor. Schemas, Options and
// Populator may be nil; the editor then runs without schema, without
// relation options, or without re-fetching.
type Deps struct {
	Schemas   SchemaSource
	Options   OptionSource
	Populator Populator
	Saver     Saver
	Notifier  Notifier
	Log       *logger.Logger
}
