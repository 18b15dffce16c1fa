// Package eventbus provides an in-process pub/sub event bus for domain
// events. The bulk edit service publishes after its writes commit;
// subscribers process events asynchronously on a single goroutine.
package eventbus

import (
	"context"
	"sync"

	"github.com/matthewbaird/gridedit/internal/event"
	"github.com/matthewbaird/gridedit/internal/logger"
)

// Handler processes a domain event. Implementations must be safe for
// concurrent calls from different goroutines.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus is an in-process event bus. Events are published to a buffered
// channel and dispatched to all subscribers in a single consumer
// goroutine, which keeps SQLite writes from subscribers serialized.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	events      chan event.DomainEvent
	done        chan struct{}
	log         *logger.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus with the given channel buffer size.
func New(bufSize int, log *logger.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	return &Bus{
		events: make(chan event.DomainEvent, bufSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Subscribe registers a named handler. Must be called before Start.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish sends an event to the bus. Non-blocking: if the buffer is full
// the event is dropped and a warning is logged.
func (b *Bus) Publish(ctx context.Context, evt event.DomainEvent) {
	select {
	case b.events <- evt:
	default:
		b.log.Warn("eventbus buffer full, dropping event", "event_type", evt.EventType, "event_id", evt.ID)
	}
}

// Start begins the consumer goroutine. It processes events until the
// context is cancelled or Stop is called, draining what is buffered.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt, ok := <-b.events:
				if !ok {
					return
				}
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				for {
					select {
					case evt, ok := <-b.events:
						if !ok {
							return
						}
						b.dispatch(ctx, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop closes the bus and waits for the consumer goroutine to finish.
func (b *Bus) Stop() {
	close(b.events)
	<-b.done
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.log.Error("eventbus handler error", "subscriber", s.name, "event_type", evt.EventType, "error", err)
		}
	}
}
