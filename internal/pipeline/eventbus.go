package pipeline

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/examforge/harvester/pkg/logging"
)

// EventHandler consumes one run event
type EventHandler func(event *RunEvent)

type subscription struct {
	id      string
	types   map[EventType]struct{}
	handler EventHandler
}

// EventBus fans run events out to subscribers. Delivery is synchronous
// and in publish order; handlers are expected to be cheap (logging,
// counters). Unmatched events are dropped silently.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	published     int64
	delivered     int64
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{subscriptions: make(map[string]*subscription)}
}

// Subscribe registers a handler for the given event types. An empty
// type list subscribes to everything. Returns the subscription ID.
func (eb *EventBus) Subscribe(types []EventType, handler EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &subscription{
		id:      uuid.New().String(),
		handler: handler,
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	eb.subscriptions[sub.id] = sub
	return sub.id
}

// Unsubscribe removes a subscription
func (eb *EventBus) Unsubscribe(id string) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, ok := eb.subscriptions[id]; !ok {
		return fmt.Errorf("subscription not found: %s", id)
	}
	delete(eb.subscriptions, id)
	return nil
}

// Publish delivers an event to every matching subscriber
func (eb *EventBus) Publish(event *RunEvent) {
	eb.mu.Lock()
	eb.published++
	subs := make([]*subscription, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if sub.matches(event.Type) {
			subs = append(subs, sub)
		}
	}
	eb.mu.Unlock()

	for _, sub := range subs {
		sub.handler(event)
		eb.mu.Lock()
		eb.delivered++
		eb.mu.Unlock()
	}

	logger := logging.GetLogger("eventbus")
	logger.Debug().
		Str("event", string(event.Type)).
		Str("run_id", event.RunID).
		Int("subscribers", len(subs)).
		Msg("Published run event")
}

// Stats returns published and delivered counts
func (eb *EventBus) Stats() (published, delivered int64) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.published, eb.delivered
}

func (s *subscription) matches(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}
