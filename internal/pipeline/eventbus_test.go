package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewEventBus()

	var unitEvents, allEvents []*RunEvent
	bus.Subscribe([]EventType{EventUnitCompleted}, func(e *RunEvent) {
		unitEvents = append(unitEvents, e)
	})
	bus.Subscribe(nil, func(e *RunEvent) {
		allEvents = append(allEvents, e)
	})

	bus.Publish(NewRunEvent(EventUnitCompleted, "run-1"))
	bus.Publish(NewRunEvent(EventRunCompleted, "run-1"))

	require.Len(t, unitEvents, 1)
	assert.Equal(t, EventUnitCompleted, unitEvents[0].Type)
	assert.Len(t, allEvents, 2)

	published, delivered := bus.Stats()
	assert.EqualValues(t, 2, published)
	assert.EqualValues(t, 3, delivered)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	count := 0
	id := bus.Subscribe(nil, func(*RunEvent) { count++ })

	bus.Publish(NewRunEvent(EventRunCompleted, "run-1"))
	require.NoError(t, bus.Unsubscribe(id))
	bus.Publish(NewRunEvent(EventRunCompleted, "run-1"))

	assert.Equal(t, 1, count)
	assert.Error(t, bus.Unsubscribe("no-such-id"))
}

func TestEventBusSubscriptionIDsNeverCollide(t *testing.T) {
	bus := NewEventBus()

	first := bus.Subscribe(nil, func(*RunEvent) {})
	survivorCount := 0
	survivor := bus.Subscribe(nil, func(*RunEvent) { survivorCount++ })
	require.NotEqual(t, first, survivor)

	// Churning a subscription must not hand out an ID that displaces
	// the surviving subscriber.
	require.NoError(t, bus.Unsubscribe(first))
	replacement := bus.Subscribe(nil, func(*RunEvent) {})
	assert.NotEqual(t, survivor, replacement)

	bus.Publish(NewRunEvent(EventRunCompleted, "run-1"))
	assert.Equal(t, 1, survivorCount)
}

func TestRunEventHasIdentity(t *testing.T) {
	a := NewRunEvent(EventUnitStarted, "run-1")
	b := NewRunEvent(EventUnitStarted, "run-1")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "run-1", a.RunID)
	assert.False(t, a.Timestamp.IsZero())
}
