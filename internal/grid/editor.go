package grid

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// Mode is the interaction state of the grid.
type Mode int

const (
	ModeIdle Mode = iota
	ModeSelecting
	ModeDragging
)

func (m Mode) String() string {
	switch m {
	case ModeSelecting:
		return "selecting"
	case ModeDragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Action is a user gesture fed to Editor.Dispatch.
type Action interface {
	action()
}

// DragStart begins drag-to-fill from a cell's handle.
type DragStart struct{ Cell Cell }

// DragOver reports the pointer entering a cell during a drag.
type DragOver struct{ Cell Cell }

// DragEnd is the pointer release, wherever it happens.
type DragEnd struct{}

// Hover reports the pointer over a cell. A zero Cell clears the hover.
type Hover struct{ Cell Cell }

// Edit sets a cell's value.
type Edit struct {
	Cell  Cell
	Value any
}

// AddRelation adds a target id to a to-many relation cell.
type AddRelation struct {
	Cell Cell
	ID   int64
}

// RemoveRelation removes a target id from a to-many relation cell.
type RemoveRelation struct {
	Cell Cell
	ID   int64
}

func (Click) action()          {}
func (DragStart) action()      {}
func (DragOver) action()       {}
func (DragEnd) action()        {}
func (Hover) action()          {}
func (Edit) action()           {}
func (AddRelation) action()    {}
func (RemoveRelation) action() {}

// State is the selection, drag and hover state of the grid.
type State struct {
	Selection Selection
	Drag      Drag
	Hover     Cell
}

// Mode derives the interaction mode.
func (s State) Mode() Mode {
	switch {
	case s.Drag.Active():
		return ModeDragging
	case !s.Selection.Empty():
		return ModeSelecting
	default:
		return ModeIdle
	}
}

// CloseResult is the outcome of a close request.
type CloseResult int

const (
	// CloseDone means the editor closed.
	CloseDone CloseResult = iota
	// CloseConfirm means unsaved changes exist and the user must confirm.
	CloseConfirm
)

// SaveOptions controls a save.
type SaveOptions struct {
	Publish bool
}

// SaveOutcome summarizes a finished save.
type SaveOutcome struct {
	Succeeded    int
	Failed       int
	Notification Notification
}

// Editor is one bulk-edit grid over a fixed set of records of one content
// type. All methods are safe for concurrent use; gestures are serialized.
type Editor struct {
	mu          sync.Mutex
	deps        Deps
	log         *logger.Logger
	contentType string
	records     []Record
	schema      *contenttype.Schema
	options     map[string][]RelationOption
	buffer      *Buffer
	state       State
	loading     bool
	saving      bool
	confirming  bool
	closed      bool
	reload      bool
}

// New creates an editor over records in the loading state. The buffer is
// seeded from records as given until Load completes.
func New(deps Deps, contentType string, records []Record) (*Editor, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	e := &Editor{
		deps:        deps,
		log:         deps.Log.With("content_type", contentType),
		contentType: contentType,
		records:     records,
		options:     map[string][]RelationOption{},
		loading:     true,
	}
	e.buffer = NewBuffer(records, nil, EditableFields(records, nil))
	return e, nil
}

// Open creates an editor and loads it.
func Open(ctx context.Context, deps Deps, contentType string, records []Record) (*Editor, error) {
	e, err := New(deps, contentType, records)
	if err != nil {
		return nil, err
	}
	if err := e.Load(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Load fetches the schema, then relation options and populated records
// concurrently, and reseeds the buffer. Collaborator failures degrade to
// running without schema, options or population. If ctx ends first the
// editor leaves the loading state on its seed buffer and ctx's error is
// returned.
func (e *Editor) Load(ctx context.Context) error {
	schema := e.fetchSchema(ctx)

	var (
		options   map[string][]RelationOption
		populated []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		options = LoadRelationOptions(gctx, e.deps.Options, schema, e.log)
		return nil
	})
	g.Go(func() error {
		populated = Populate(gctx, e.deps.Populator, e.contentType, e.records, schema, e.log)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		// The seed buffer stays usable.
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
		return err
	}

	fields := EditableFields(e.records, schema)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.schema = schema
	e.options = options
	e.buffer = NewBuffer(populated, schema, fields)
	e.loading = false
	e.log.Debug("editor loaded", "records", len(populated), "fields", len(fields), "schema", schema != nil)
	return nil
}

func (e *Editor) fetchSchema(ctx context.Context) *contenttype.Schema {
	if e.deps.Schemas == nil {
		return nil
	}
	s, err := e.deps.Schemas.Schema(ctx, e.contentType)
	if err != nil {
		e.log.Warn("schema unavailable, inferring field types", "error", err)
		return nil
	}
	return s
}

// ContentType returns the UID being edited.
func (e *Editor) ContentType() string {
	return e.contentType
}

// Holds reports whether the record with the given id is in the grid.
func (e *Editor) Holds(recordID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Has(recordID)
}

// Loading reports whether Load has not completed yet.
func (e *Editor) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Saving reports whether a save is in flight.
func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Dirty reports whether there are unsaved edits.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Dirty()
}

// Closed reports whether the editor has been closed.
func (e *Editor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// NeedsReload reports whether a successful save requires the caller to
// refetch the list it opened the editor from.
func (e *Editor) NeedsReload() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reload
}

// State returns the current interaction state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Value returns the editable value of a cell.
func (e *Editor) Value(c Cell) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Value(c.RecordID, c.Field)
}

// Pending returns the updates a save would send now.
func (e *Editor) Pending() []Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Flatten()
}

// InDragRange reports whether c is covered by the active drag.
func (e *Editor) InDragRange(c Cell) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Drag.Contains(c, e.buffer.rows)
}

// Dispatch applies one gesture.
func (e *Editor) Dispatch(a Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return ErrClosed
	case e.saving, e.loading:
		return ErrBusy
	}
	rows := e.buffer.rows
	switch a := a.(type) {
	case Click:
		e.state.Selection = e.state.Selection.Apply(a, rows)
	case DragStart:
		if !e.buffer.Has(a.Cell.RecordID) || !e.buffer.Editable(a.Cell.Field) || e.isMedia(a.Cell.Field) {
			return nil
		}
		e.state.Drag = e.state.Drag.Start(a.Cell)
	case DragOver:
		e.state.Drag = e.state.Drag.Over(a.Cell)
	case DragEnd:
		err := e.fill()
		e.state.Drag = Drag{}
		return err
	case Hover:
		e.state.Hover = a.Cell
	case Edit:
		return e.edit(a)
	case AddRelation:
		return e.editRelation(a.Cell, func(ids []int64) []int64 { return AddID(ids, a.ID) })
	case RemoveRelation:
		return e.editRelation(a.Cell, func(ids []int64) []int64 { return RemoveID(ids, a.ID) })
	default:
		return fmt.Errorf("unsupported action %T", a)
	}
	return nil
}

func (e *Editor) isMedia(field string) bool {
	f := e.schema.Field(field)
	return f != nil && f.Type == contenttype.TypeMedia
}

// targets returns the records an edit of c applies to: c's record plus
// every selected record when the selection is in c's column.
func (e *Editor) targets(c Cell) []string {
	ids := []string{c.RecordID}
	if e.state.Selection.Field() != c.Field {
		return ids
	}
	for _, id := range e.state.Selection.RecordIDs(e.buffer.rows) {
		if id != c.RecordID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *Editor) checkCell(c Cell) error {
	if !e.buffer.Has(c.RecordID) {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, c.RecordID)
	}
	if !e.buffer.Editable(c.Field) || e.isMedia(c.Field) {
		return fmt.Errorf("%w: %s", ErrNotEditable, c.Field)
	}
	return nil
}

func (e *Editor) edit(a Edit) error {
	if err := e.checkCell(a.Cell); err != nil {
		return err
	}
	value := ToEditable(a.Value, e.schema.Field(a.Cell.Field))
	return e.buffer.SetField(e.targets(a.Cell), a.Cell.Field, value)
}

func (e *Editor) editRelation(c Cell, change func([]int64) []int64) error {
	if err := e.checkCell(c); err != nil {
		return err
	}
	if !e.schema.Field(c.Field).IsToMany() {
		return fmt.Errorf("%w: %s", ErrNotToMany, c.Field)
	}
	values := make(map[string]any)
	for _, id := range e.targets(c) {
		values[id] = change(RelationIDs(e.buffer.Value(id, c.Field)))
	}
	return e.buffer.SetValues(c.Field, values)
}

// fill copies the anchor's value onto every cell of the drag range in one
// write. The selection is left as it was.
func (e *Editor) fill() error {
	span := e.state.Drag.Span(e.buffer.rows)
	if len(span) == 0 {
		return nil
	}
	anchor := e.state.Drag.Anchor()
	value := e.buffer.Value(anchor.RecordID, anchor.Field)
	if f := e.schema.Field(anchor.Field); f.IsRelation() {
		value = ToEditable(value, f)
	}
	return e.buffer.SetField(span, anchor.Field, value)
}

// Save sends all pending edits in one batch and notifies the outcome.
// Gestures are rejected while the request is in flight.
func (e *Editor) Save(ctx context.Context, opts SaveOptions) (SaveOutcome, error) {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return SaveOutcome{}, ErrClosed
	case e.saving:
		e.mu.Unlock()
		return SaveOutcome{}, ErrSaveInProgress
	case e.loading:
		e.mu.Unlock()
		return SaveOutcome{}, ErrBusy
	}
	e.saving = true
	req := SaveRequest{ContentType: e.contentType, Updates: e.buffer.Flatten()}
	if opts.Publish {
		publish := true
		req.Publish = &publish
	}
	e.mu.Unlock()

	res, err := e.deps.Saver.BulkUpdate(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err == nil && !res.Success {
		err = ErrSaveRejected
	}
	if err != nil {
		n := Notification{Type: NotifyDanger, Message: "Failed to update entries: " + err.Error()}
		e.notify(n)
		e.log.Error("bulk update failed", "updates", len(req.Updates), "error", err)
		return SaveOutcome{Notification: n}, err
	}

	out := SaveOutcome{}
	for _, r := range res.Results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	out.Notification = saveNotification(out.Succeeded, out.Failed, opts.Publish)
	e.notify(out.Notification)
	e.log.Info("bulk update saved", "succeeded", out.Succeeded, "failed", out.Failed, "publish", opts.Publish)

	e.buffer.MarkClean()
	e.reload = true
	e.closed = true
	return out, nil
}

func saveNotification(succeeded, failed int, publish bool) Notification {
	verb := "Updated"
	if publish {
		verb = "Published"
	}
	n := Notification{Type: NotifySuccess, Message: fmt.Sprintf("%s %d entries", verb, succeeded)}
	if failed > 0 {
		n.Type = NotifyWarning
		n.Message += fmt.Sprintf(", %d failed", failed)
	}
	return n
}

func (e *Editor) notify(n Notification) {
	if e.deps.Notifier != nil {
		e.deps.Notifier.Notify(n)
	}
}

// RequestClose closes the editor unless there are unsaved edits, in which
// case confirmation is required.
func (e *Editor) RequestClose() CloseResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.buffer.Dirty() && !e.closed {
		e.confirming = true
		return CloseConfirm
	}
	e.closed = true
	return CloseDone
}

// ConfirmPending reports whether a close is waiting for confirmation.
func (e *Editor) ConfirmPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirming
}

// ConfirmClose discards unsaved edits and closes.
func (e *Editor) ConfirmClose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirming = false
	e.buffer.Discard()
	e.closed = true
}

// CancelClose keeps the editor open with its edits.
func (e *Editor) CancelClose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirming = false
}
