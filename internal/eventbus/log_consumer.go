package eventbus

import (
	"context"

	"github.com/matthewbaird/gridedit/internal/event"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// LogConsumer logs all domain events.
type LogConsumer struct {
	log *logger.Logger
}

func NewLogConsumer(log *logger.Logger) *LogConsumer { return &LogConsumer{log: log} }

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	docs := make([]string, len(evt.AffectedDocuments))
	for i, ref := range evt.AffectedDocuments {
		docs[i] = ref.ContentType + ":" + ref.DocumentID
	}
	c.log.Info("event",
		"event_type", evt.EventType,
		"category", evt.Category,
		"summary", evt.Summary,
		"documents", docs,
	)
	return nil
}
