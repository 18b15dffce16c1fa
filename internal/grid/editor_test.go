package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RequiresRecords(t *testing.T) {
	_, err := Open(context.Background(), Deps{}, galleryUID, nil)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestOpen_PopulatesAndSeeds(t *testing.T) {
	full := Record{"id": float64(3), "documentId": "g3", "title": "Faces", "images": []any{map[string]any{"id": float64(31)}, map[string]any{"id": float64(32)}}}
	p := &fakePopulator{byID: map[string]Record{"g3": full}}
	e, err := Open(context.Background(), Deps{Schemas: newFakeSchemas(t), Populator: p, Saver: &fakeSaver{}}, galleryUID, galleryRecords())
	require.NoError(t, err)

	assert.False(t, e.Loading())
	assert.Equal(t, []int64{31, 32}, e.Value(cell("g3", "images")))
	assert.Equal(t, ModeIdle, e.State().Mode())
}

func TestOpen_SchemaFailureDegrades(t *testing.T) {
	e, err := Open(context.Background(), Deps{Schemas: fakeSchemas{err: errors.New("down")}, Saver: &fakeSaver{}}, galleryUID, galleryRecords())
	require.NoError(t, err)
	snap := e.Snapshot()
	var cols []string
	for _, c := range snap.Columns {
		cols = append(cols, c.Field)
	}
	assert.Equal(t, []string{"category", "featured", "publishedOn", "rank", "title"}, cols)
}

func TestEditor_GesturesRejectedWhileLoading(t *testing.T) {
	e, err := New(Deps{Saver: &fakeSaver{}}, galleryUID, galleryRecords())
	require.NoError(t, err)
	assert.True(t, e.Loading())
	assert.ErrorIs(t, e.Dispatch(Click{Cell: cell("g1", "title")}), ErrBusy)
}

func TestEditor_EditPropagatesToSelection(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Click{Cell: cell("g1", "title")}))
	require.NoError(t, e.Dispatch(Click{Cell: cell("g3", "title"), Shift: true}))
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g2", "title"), Value: "Same"}))

	for _, id := range []string{"g1", "g2", "g3"} {
		assert.Equal(t, "Same", e.Value(cell(id, "title")))
	}
	assert.Equal(t, ModeSelecting, e.State().Mode())
}

func TestEditor_EditOutsideSelectionJoinsColumnSelection(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Click{Cell: cell("g1", "title")}))
	require.NoError(t, e.Dispatch(Click{Cell: cell("g2", "title"), Toggle: true}))
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g3", "title"), Value: "Solo"}))

	for _, id := range []string{"g1", "g2", "g3"} {
		assert.Equal(t, "Solo", e.Value(cell(id, "title")))
	}
	assert.Len(t, e.Pending(), 3)
	assert.Equal(t, []string{Key("g1", "title"), Key("g2", "title")}, e.State().Selection.Keys())
}

func TestEditor_RelationOutsideSelectionJoinsColumnSelection(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Click{Cell: cell("g1", "images")}))
	require.NoError(t, e.Dispatch(Click{Cell: cell("g2", "images"), Toggle: true}))
	require.NoError(t, e.Dispatch(AddRelation{Cell: cell("g3", "images"), ID: 99}))

	assert.Equal(t, []int64{10, 99}, e.Value(cell("g1", "images")))
	assert.Equal(t, []int64{99}, e.Value(cell("g2", "images")))
	assert.Equal(t, []int64{99}, e.Value(cell("g3", "images")))
}

func TestEditor_EditInOtherColumnOnlyTouchesCell(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Click{Cell: cell("g1", "title")}))
	require.NoError(t, e.Dispatch(Click{Cell: cell("g2", "title"), Toggle: true}))
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g3", "category"), Value: "urban"}))

	assert.Equal(t, "urban", e.Value(cell("g3", "category")))
	assert.Equal(t, "nature", e.Value(cell("g1", "category")))
	assert.Equal(t, "Alps", e.Value(cell("g1", "title")))
	assert.Len(t, e.Pending(), 1)
}

func TestEditor_EditNormalizesValue(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g1", "rank"), Value: "12"}))
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g2", "rank"), Value: "twelve"}))
	assert.Equal(t, int64(12), e.Value(cell("g1", "rank")))
	assert.Nil(t, e.Value(cell("g2", "rank")))
}

func TestEditor_EditRejectsReadOnlyAndUnknown(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	assert.ErrorIs(t, e.Dispatch(Edit{Cell: cell("g1", "cover"), Value: "x"}), ErrNotEditable)
	assert.ErrorIs(t, e.Dispatch(Edit{Cell: cell("g1", "createdAt"), Value: "x"}), ErrNotEditable)
	assert.ErrorIs(t, e.Dispatch(Edit{Cell: cell("nope", "title"), Value: "x"}), ErrUnknownRecord)
	assert.False(t, e.Dirty())
}

func TestEditor_DragFillsColumnRange(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Click{Cell: cell("g1", "rank")}))
	require.NoError(t, e.Dispatch(DragStart{Cell: cell("g1", "rank")}))
	assert.Equal(t, ModeDragging, e.State().Mode())
	require.NoError(t, e.Dispatch(DragOver{Cell: cell("g2", "title")}))
	require.NoError(t, e.Dispatch(DragOver{Cell: cell("g3", "rank")}))
	assert.True(t, e.InDragRange(cell("g2", "rank")))
	require.NoError(t, e.Dispatch(DragEnd{}))

	for _, id := range []string{"g1", "g2", "g3"} {
		assert.Equal(t, int64(1), e.Value(cell(id, "rank")))
	}
	st := e.State()
	assert.False(t, st.Drag.Active())
	assert.Equal(t, []string{Key("g1", "rank")}, st.Selection.Keys())
	assert.Equal(t, ModeSelecting, st.Mode())
}

func TestEditor_DragUpwardsCopiesAnchor(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(DragStart{Cell: cell("g3", "category")}))
	require.NoError(t, e.Dispatch(DragOver{Cell: cell("g1", "category")}))
	require.NoError(t, e.Dispatch(DragEnd{}))
	for _, id := range []string{"g1", "g2", "g3"} {
		assert.Nil(t, e.Value(cell(id, "category")))
	}
	assert.Equal(t, ModeIdle, e.State().Mode())
}

func TestEditor_DragOnMediaRefused(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(DragStart{Cell: cell("g1", "cover")}))
	assert.False(t, e.State().Drag.Active())
	require.NoError(t, e.Dispatch(DragEnd{}))
	assert.False(t, e.Dirty())
}

func dragFill(t *testing.T, e *Editor, from, to Cell) {
	t.Helper()
	require.NoError(t, e.Dispatch(DragStart{Cell: from}))
	require.NoError(t, e.Dispatch(DragOver{Cell: to}))
	require.NoError(t, e.Dispatch(DragEnd{}))
}

func TestEditor_DragFillsRelationIDs(t *testing.T) {
	e, err := Open(context.Background(), Deps{Schemas: newFakeSchemas(t), Saver: &fakeSaver{}}, articleUID, articleRecords())
	require.NoError(t, err)

	for range 2 {
		dragFill(t, e, cell("a1", "tags"), cell("a3", "tags"))
		dragFill(t, e, cell("a1", "author"), cell("a3", "author"))

		for _, id := range []string{"a1", "a2", "a3"} {
			assert.Equal(t, []int64{7}, e.Value(cell(id, "tags")), id)
			assert.Equal(t, int64(3), e.Value(cell(id, "author")), id)
		}
		assert.Equal(t, ModeIdle, e.State().Mode())
	}

	pending := e.Pending()
	require.Len(t, pending, 3)
	for _, u := range pending {
		assert.Equal(t, map[string]any{"tags": []int64{7}, "author": int64(3)}, u.Data)
	}
}

func TestEditor_DragOntoSelfIsNoOpWrite(t *testing.T) {
	e, err := Open(context.Background(), Deps{Schemas: newFakeSchemas(t), Saver: &fakeSaver{}}, articleUID, articleRecords())
	require.NoError(t, err)

	require.NoError(t, e.Dispatch(DragStart{Cell: cell("a2", "title")}))
	assert.True(t, e.InDragRange(cell("a2", "title")))
	assert.False(t, e.InDragRange(cell("a1", "title")))
	require.NoError(t, e.Dispatch(DragEnd{}))

	assert.Equal(t, "Two", e.Value(cell("a2", "title")))
	assert.Equal(t, "One", e.Value(cell("a1", "title")))
	assert.Equal(t, []Update{{ID: "a2", Data: map[string]any{"title": "Two"}}}, e.Pending())
	assert.False(t, e.State().Drag.Active())
}

func TestEditor_CancelledLoadLeavesSeedUsable(t *testing.T) {
	e, err := New(Deps{Schemas: newFakeSchemas(t), Saver: &fakeSaver{}}, galleryUID, galleryRecords())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Load(ctx), context.Canceled)
	assert.False(t, e.Loading())
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g1", "title"), Value: "x"}))
	assert.Equal(t, "x", e.Value(cell("g1", "title")))
}

func TestEditor_RelationAddRemovePerCell(t *testing.T) {
	e, err := Open(context.Background(), Deps{Schemas: newFakeSchemas(t), Saver: &fakeSaver{}}, articleUID, articleRecords())
	require.NoError(t, err)

	require.NoError(t, e.Dispatch(Click{Cell: cell("a1", "tags")}))
	require.NoError(t, e.Dispatch(Click{Cell: cell("a3", "tags"), Shift: true}))
	require.NoError(t, e.Dispatch(AddRelation{Cell: cell("a2", "tags"), ID: 9}))
	assert.Equal(t, []int64{7, 9}, e.Value(cell("a1", "tags")))
	assert.Equal(t, []int64{9}, e.Value(cell("a2", "tags")))
	assert.Equal(t, []int64{8, 9}, e.Value(cell("a3", "tags")))

	require.NoError(t, e.Dispatch(RemoveRelation{Cell: cell("a1", "tags"), ID: 7}))
	assert.Equal(t, []int64{9}, e.Value(cell("a1", "tags")))
	assert.Equal(t, []int64{8, 9}, e.Value(cell("a3", "tags")))

	assert.ErrorIs(t, e.Dispatch(AddRelation{Cell: cell("a1", "author"), ID: 1}), ErrNotToMany)
}

func TestEditor_SaveSendsFlattenedBatch(t *testing.T) {
	saver := &fakeSaver{}
	notes := &recordingNotifier{}
	e := openGallery(t, saver, notes)
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g2", "featured"), Value: true}))
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g1", "category"), Value: ""}))

	out, err := e.Save(context.Background(), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Succeeded)

	require.Len(t, saver.requests, 1)
	req := saver.requests[0]
	assert.Nil(t, req.Publish)
	assert.Equal(t, galleryUID, req.ContentType)
	assert.Equal(t, []Update{
		{ID: "g1", Data: map[string]any{"category": nil}},
		{ID: "g2", Data: map[string]any{"featured": true}},
	}, req.Updates)

	assert.Equal(t, Notification{Type: NotifySuccess, Message: "Updated 2 entries"}, notes.last())
	assert.False(t, e.Dirty())
	assert.True(t, e.NeedsReload())
	assert.ErrorIs(t, e.Dispatch(Click{Cell: cell("g1", "title")}), ErrClosed)
}

func TestEditor_PublishWithFailures(t *testing.T) {
	saver := &fakeSaver{result: func(req SaveRequest) (SaveResult, error) {
		return SaveResult{Success: true, Results: []RecordResult{
			{ID: "g1", Success: true},
			{ID: "g2", Success: false, Error: "Missing id or data"},
		}}, nil
	}}
	notes := &recordingNotifier{}
	e := openGallery(t, saver, notes)
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g1", "title"), Value: "x"}))

	_, err := e.Save(context.Background(), SaveOptions{Publish: true})
	require.NoError(t, err)
	require.NotNil(t, saver.requests[0].Publish)
	assert.True(t, *saver.requests[0].Publish)
	assert.Equal(t, Notification{Type: NotifyWarning, Message: "Published 1 entries, 1 failed"}, notes.last())
}

func TestEditor_SaveFailureKeepsEdits(t *testing.T) {
	saver := &fakeSaver{result: func(SaveRequest) (SaveResult, error) {
		return SaveResult{}, errors.New("connection refused")
	}}
	notes := &recordingNotifier{}
	e := openGallery(t, saver, notes)
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g1", "title"), Value: "x"}))

	_, err := e.Save(context.Background(), SaveOptions{})
	require.Error(t, err)
	assert.Equal(t, NotifyDanger, notes.last().Type)
	assert.True(t, e.Dirty())
	assert.False(t, e.Closed())
	assert.Equal(t, "x", e.Value(cell("g1", "title")))
}

func TestEditor_SaveIsNotReentrant(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	e := openGallery(t, saver, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g1", "title"), Value: "x"}))

	done := make(chan error, 1)
	go func() {
		_, err := e.Save(context.Background(), SaveOptions{})
		done <- err
	}()

	select {
	case <-saver.entered:
	case <-time.After(time.Second):
		t.Fatal("save did not reach the saver")
	}
	assert.True(t, e.Saving())
	_, err := e.Save(context.Background(), SaveOptions{})
	assert.ErrorIs(t, err, ErrSaveInProgress)
	assert.ErrorIs(t, e.Dispatch(Edit{Cell: cell("g2", "title"), Value: "y"}), ErrBusy)

	close(saver.block)
	require.NoError(t, <-done)
	assert.Len(t, saver.requests, 1)
}

func TestEditor_CloseGuard(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g1", "title"), Value: "x"}))

	assert.Equal(t, CloseConfirm, e.RequestClose())
	assert.True(t, e.ConfirmPending())
	e.CancelClose()
	assert.False(t, e.ConfirmPending())
	assert.False(t, e.Closed())
	assert.Equal(t, "x", e.Value(cell("g1", "title")))

	assert.Equal(t, CloseConfirm, e.RequestClose())
	e.ConfirmClose()
	assert.True(t, e.Closed())
	assert.False(t, e.Dirty())
}

func TestEditor_CloseCleanIsImmediate(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	assert.Equal(t, CloseDone, e.RequestClose())
	assert.True(t, e.Closed())
}

func TestEditor_SnapshotFlags(t *testing.T) {
	e := openGallery(t, &fakeSaver{}, &recordingNotifier{})
	require.NoError(t, e.Dispatch(Click{Cell: cell("g2", "title")}))
	require.NoError(t, e.Dispatch(Hover{Cell: cell("g1", "rank")}))
	require.NoError(t, e.Dispatch(Edit{Cell: cell("g2", "title"), Value: "New"}))

	snap := e.Snapshot()
	assert.Equal(t, "selecting", snap.Mode)
	assert.True(t, snap.Dirty)
	assert.Equal(t, 1, snap.Selected)
	require.Len(t, snap.Rows, 3)

	title := snap.Rows[1].Cells[0]
	assert.Equal(t, "title", title.Field)
	assert.Equal(t, "New", title.Value)
	assert.True(t, title.Selected)
	assert.True(t, title.Edited)

	rank := snap.Rows[0].Cells[2]
	assert.Equal(t, "rank", rank.Field)
	assert.True(t, rank.Hovered)

	for _, c := range snap.Columns {
		if c.Field == "cover" {
			assert.True(t, c.ReadOnly)
		}
	}
}
