package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is anything the bus can route. Concrete events embed BaseEvent and
// add their own typed fields.
type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func newBaseEvent(eventType string) BaseEvent {
	return BaseEvent{ID: uuid.NewString(), Type: eventType, Timestamp: time.Now().UTC()}
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

type Handler func(ctx context.Context, event Event) error

// Publisher is the side of the bus that services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type subscription struct {
	handler Handler
	inline  bool
}

type EventBus struct {
	handlers map[string][]subscription
	logger   *slog.Logger
	mu       sync.RWMutex
	inflight sync.WaitGroup
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]subscription),
		logger:   logger,
	}
}

// Subscribe registers a handler that runs on its own goroutine.
func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.subscribe(eventType, subscription{handler: handler})
}

// SubscribeInline registers a handler that runs before Publish returns, for
// work the publisher's caller must observe, such as cache eviction.
func (eb *EventBus) SubscribeInline(eventType string, handler Handler) {
	eb.subscribe(eventType, subscription{handler: handler, inline: true})
}

func (eb *EventBus) subscribe(eventType string, sub subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], sub)
	eb.logger.Debug("event handler registered",
		"event_type", eventType,
		"inline", sub.inline,
		"total_handlers", len(eb.handlers[eventType]))
}

func (eb *EventBus) handlersFor(eventType string) []subscription {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.handlers[eventType]
}

// Publish runs inline handlers on the caller's goroutine, then fans the event
// out to the other handlers on separate goroutines. Handler failures are
// logged and never reach the publisher. Asynchronous handlers run on a
// context detached from the caller's cancellation.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	subs := eb.handlersFor(event.EventType())
	if len(subs) == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
		return nil
	}

	eb.logger.Debug("publishing event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"handlers_count", len(subs))

	hctx := context.WithoutCancel(ctx)
	for _, sub := range subs {
		if sub.inline {
			eb.run(hctx, sub.handler, event)
			continue
		}
		eb.inflight.Add(1)
		go func(h Handler) {
			defer eb.inflight.Done()
			eb.run(hctx, h, event)
		}(sub.handler)
	}

	return nil
}

func (eb *EventBus) run(ctx context.Context, h Handler, event Event) {
	if err := h(ctx, event); err != nil {
		eb.logger.Error("event handler failed",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"error", err)
	}
}

// Wait blocks until every asynchronously dispatched handler has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}
