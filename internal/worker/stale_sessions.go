// Package worker contains event consumers that act on open editor sessions.
package worker

import (
	"context"
	"fmt"

	"github.com/matthewbaird/gridedit/internal/event"
	"github.com/matthewbaird/gridedit/internal/grid"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/session"
)

// StaleSessionWorker warns open editor sessions when a save elsewhere
// changes documents they hold. Sessions that are saving or closed are
// skipped: they produced the change or no longer show it.
type StaleSessionWorker struct {
	sessions *session.Manager
	log      *logger.Logger
}

// NewStaleSessionWorker creates a StaleSessionWorker.
func NewStaleSessionWorker(sessions *session.Manager, log *logger.Logger) *StaleSessionWorker {
	return &StaleSessionWorker{sessions: sessions, log: log.With("worker", "stale_sessions")}
}

// HandleEvent implements eventbus.Handler.
func (w *StaleSessionWorker) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	switch evt.EventType {
	case event.TypeDocumentUpdated, event.TypeRelationRedirected:
	default:
		return nil
	}

	w.sessions.Each(func(s *session.Session) {
		ed := s.Editor()
		if ed == nil || ed.Closed() || ed.Saving() {
			return
		}
		changed := 0
		for _, ref := range evt.AffectedDocuments {
			if ref.ContentType == ed.ContentType() && ed.Holds(ref.DocumentID) {
				changed++
			}
		}
		if changed == 0 {
			return
		}
		w.log.Debug("session holds changed documents", "session_id", s.ID, "event_id", evt.ID, "changed", changed)
		s.Notify(grid.Notification{
			Type:    grid.NotifyWarning,
			Message: fmt.Sprintf("%d of the entries being edited changed elsewhere", changed),
		})
	})
	return nil
}
