// Package events provides the in-process event bus that carries UI effects
// (refresh, dialog dismissal, results, notifications) from the plugin core
// to host UI subscribers.
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine; they must not block.
type Handler func(event Event)

type subscription struct {
	id        string
	eventType EventType
	all       bool
	handler   Handler
}

// Bus is a minimal synchronous publish/subscribe event bus
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	logger        hclog.Logger
}

// NewBus creates a new event bus instance
func NewBus(logger hclog.Logger) *Bus {
	return &Bus{
		subscriptions: make(map[string]*subscription),
		logger:        logger.Named("event-bus"),
	}
}

// Subscribe registers a handler for one event type and returns the
// subscription id used to unsubscribe.
func (b *Bus) Subscribe(eventType EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subscriptions[id] = &subscription{id: id, eventType: eventType, handler: handler}
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subscriptions[id] = &subscription{id: id, all: true, handler: handler}
	return id
}

// Unsubscribe removes a subscription. Unknown ids are a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, id)
}

// Publish delivers an event to every matching subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.all || sub.eventType == event.Type {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	b.logger.Debug("publishing event", "type", event.Type, "source", event.Source, "subscribers", len(matched))
	for _, sub := range matched {
		sub.handler(event)
	}
}
