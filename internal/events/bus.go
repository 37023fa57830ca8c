package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HandlerFunc is a function that handles an event.
type HandlerFunc func(ctx context.Context, event Event) error

// EventBus is a publish-subscribe dispatcher. Emit delivers to every
// handler in subscription order on the caller's goroutine, so events from
// one source are observed in the order they were emitted.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	stopped  bool
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewEventBus creates a new EventBus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]handlerEntry),
	}
}

// Subscribe registers a handler function for a specific event type.
// EventAny receives every event after the type-specific handlers.
// The name parameter is used for logging and Unsubscribe.
func (eb *EventBus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handlerEntry{
		name:    name,
		handler: handler,
	})

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// Unsubscribe removes a named handler from a specific event type.
func (eb *EventBus) Unsubscribe(eventType EventType, name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	handlers, exists := eb.handlers[eventType]
	if !exists {
		return
	}

	filtered := make([]handlerEntry, 0, len(handlers))
	for _, h := range handlers {
		if h.name != name {
			filtered = append(filtered, h)
		}
	}
	eb.handlers[eventType] = filtered

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("unsubscribed from event")
}

// snapshot copies the handlers for an event so none run under the lock.
func (eb *EventBus) snapshot(eventType EventType) []handlerEntry {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.stopped {
		return nil
	}
	specific := eb.handlers[eventType]
	wildcard := eb.handlers[EventAny]
	if eventType == EventAny {
		wildcard = nil
	}
	out := make([]handlerEntry, 0, len(specific)+len(wildcard))
	out = append(out, specific...)
	return append(out, wildcard...)
}

// Emit delivers an event to its handlers synchronously and in order.
// Handler errors and panics are logged and do not stop delivery.
func (eb *EventBus) Emit(ctx context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	handlers := eb.snapshot(event.Type)
	if len(handlers) == 0 {
		return
	}

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(handlers)).
		Msg("emitting event")

	for _, h := range handlers {
		eb.invoke(ctx, h, event)
	}
}

func (eb *EventBus) invoke(ctx context.Context, h handlerEntry, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()

	if err := h.handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("handler returned error")
	}
}

// Stop makes every later Emit a no-op.
func (eb *EventBus) Stop() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.stopped {
		return
	}
	eb.stopped = true
	log.Info().Msg("event bus stopped")
}

// HandlerCount returns the number of handlers registered for a specific
// event type, not counting EventAny subscribers.
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}
