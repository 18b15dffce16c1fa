package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/gridedit/internal/event"
	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/session"
)

const tagUID = "api::tag.tag"

func open(t *testing.T, m *session.Manager, ids ...string) (*session.Session, *[]grid.Notification) {
	t.Helper()
	recs := make([]grid.Record, len(ids))
	for i, id := range ids {
		recs[i] = grid.Record{"id": int64(i + 1), "documentId": id, "name": id}
	}
	s, err := m.Create(tagUID, func(n grid.Notifier) (*grid.Editor, error) {
		return grid.New(grid.Deps{Notifier: n}, tagUID, recs)
	})
	require.NoError(t, err)
	var got []grid.Notification
	s.Attach(func(n grid.Notification) { got = append(got, n) })
	return s, &got
}

func TestStaleSessionWorker(t *testing.T) {
	m := session.NewManager(time.Hour, time.Hour, logger.Nop())
	_, holding := open(t, m, "t1", "t2")
	_, other := open(t, m, "t3")
	closed, closedGot := open(t, m, "t1")
	require.Equal(t, grid.CloseDone, closed.Editor().RequestClose())

	w := NewStaleSessionWorker(m, logger.Nop())
	evt := event.NewDocumentUpdated(event.DocumentUpdatedPayload{ContentType: tagUID, DocumentID: "t1", Fields: []string{"name"}})
	require.NoError(t, w.HandleEvent(context.Background(), evt))

	require.Len(t, *holding, 1)
	assert.Equal(t, grid.NotifyWarning, (*holding)[0].Type)
	assert.Equal(t, "1 of the entries being edited changed elsewhere", (*holding)[0].Message)
	assert.Empty(t, *other)
	assert.Empty(t, *closedGot)
}

func TestStaleSessionWorker_IgnoresOtherEvents(t *testing.T) {
	m := session.NewManager(time.Hour, time.Hour, logger.Nop())
	_, got := open(t, m, "t1")

	w := NewStaleSessionWorker(m, logger.Nop())
	evt := event.NewBulkUpdateApplied(event.BulkUpdateAppliedPayload{ContentType: tagUID, Requested: 1, Succeeded: 1})
	require.NoError(t, w.HandleEvent(context.Background(), evt))
	assert.Empty(t, *got)

	evt = event.NewDocumentUpdated(event.DocumentUpdatedPayload{ContentType: "api::article.article", DocumentID: "t1"})
	require.NoError(t, w.HandleEvent(context.Background(), evt))
	assert.Empty(t, *got)
}
