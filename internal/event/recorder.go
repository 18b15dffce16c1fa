// Package event provides domain event recording for bulk edits.
// Events are fanned out as activity entries via the activity.Store
// interface, then published to the in-process event bus.
package event

import (
	"context"

	"github.com/matthewbaird/gridedit/internal/activity"
)

// Recorder writes domain events to the activity store.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// ActivityRecorder implements Recorder by fanning out a DomainEvent into
// one activity entry per affected document, then writing via
// activity.Store. If a Publisher is set, the event is also published after
// the store write succeeds.
type ActivityRecorder struct {
	store activity.Store
	bus   Publisher
}

// NewActivityRecorder creates a new ActivityRecorder backed by the given store.
func NewActivityRecorder(store activity.Store) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// SetPublisher attaches an event bus.
func (r *ActivityRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

func (r *ActivityRecorder) Record(ctx context.Context, evt DomainEvent) error {
	entries := make([]activity.Entry, 0, len(evt.AffectedDocuments))
	for _, ref := range evt.AffectedDocuments {
		entries = append(entries, activity.Entry{
			EventID:     evt.ID,
			EventType:   evt.EventType,
			OccurredAt:  evt.OccurredAt,
			ContentType: ref.ContentType,
			DocumentID:  ref.DocumentID,
			Role:        ref.Role,
			Refs:        evt.AffectedDocuments,
			Summary:     evt.Summary,
			Category:    evt.Category,
			Payload:     evt.Payload,
		})
	}
	if err := r.store.WriteEntries(ctx, entries); err != nil {
		return err
	}

	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// Discard is a Recorder that drops every event.
type Discard struct{}

func (Discard) Record(context.Context, DomainEvent) error { return nil }
