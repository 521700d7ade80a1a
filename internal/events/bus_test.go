package events

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func newTestBus() *Bus {
	return NewBus(hclog.NewNullLogger())
}

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := newTestBus()

	var received []Event
	bus.Subscribe(EventNotification, func(event Event) {
		received = append(received, event)
	})

	bus.Publish(NewEvent(EventNotification, "test", map[string]interface{}{"message": "hello"}))
	bus.Publish(NewEvent(EventMediaRefresh, "test", nil))

	assert.Len(t, received, 1)
	assert.Equal(t, EventNotification, received[0].Type)
	assert.Equal(t, "hello", received[0].Data["message"])
	assert.NotEmpty(t, received[0].ID)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := newTestBus()

	var count int
	bus.SubscribeAll(func(event Event) {
		count++
	})

	bus.Publish(NewEvent(EventDialogShow, "test", nil))
	bus.Publish(NewEvent(EventDialogClose, "test", nil))
	bus.Publish(NewEvent(EventResultsShow, "test", nil))

	assert.Equal(t, 3, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	var count int
	id := bus.Subscribe(EventMediaRefresh, func(event Event) {
		count++
	})

	bus.Publish(NewEvent(EventMediaRefresh, "test", nil))
	bus.Unsubscribe(id)
	bus.Publish(NewEvent(EventMediaRefresh, "test", nil))

	assert.Equal(t, 1, count)

	// Unknown id is a no-op.
	bus.Unsubscribe("not-a-subscription")
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := newTestBus()

	var first, second bool
	bus.Subscribe(EventPluginReloaded, func(event Event) { first = true })
	bus.Subscribe(EventPluginReloaded, func(event Event) { second = true })

	bus.Publish(NewEvent(EventPluginReloaded, "test", map[string]interface{}{"plugin_id": "p"}))

	assert.True(t, first)
	assert.True(t, second)
}
