package pluginui

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/reelhaven/reelhaven/internal/events"
)

// EventHost implements Host by publishing UI effects onto the event bus.
// The rendering layer subscribes and performs the actual drawing; the core
// never holds a reference to a widget.
type EventHost struct {
	bus    *events.Bus
	logger hclog.Logger

	mu             sync.Mutex
	progressActive bool
}

// NewEventHost creates a Host bridged onto the event bus
func NewEventHost(bus *events.Bus, logger hclog.Logger) *EventHost {
	return &EventHost{
		bus:    bus,
		logger: logger.Named("host-bridge"),
	}
}

// ShowDialog publishes a dialog-render request.
func (h *EventHost) ShowDialog(dialog *Dialog) {
	h.bus.Publish(events.NewEvent(events.EventDialogShow, "pluginui", map[string]interface{}{
		"dialog": dialog,
	}))
}

// CloseDialog asks the renderer to dismiss the current plugin dialog.
func (h *EventHost) CloseDialog() {
	h.bus.Publish(events.NewEvent(events.EventDialogClose, "pluginui", nil))
}

// ShowProgress displays or updates the blocking progress indicator.
func (h *EventHost) ShowProgress(message string) {
	h.mu.Lock()
	h.progressActive = true
	h.mu.Unlock()
	h.bus.Publish(events.NewEvent(events.EventNotification, "pluginui", map[string]interface{}{
		"progress": true,
		"message":  message,
	}))
}

// DismissProgress hides the progress indicator. Dismissing an indicator
// that is not showing is a no-op.
func (h *EventHost) DismissProgress() {
	h.mu.Lock()
	active := h.progressActive
	h.progressActive = false
	h.mu.Unlock()
	if !active {
		return
	}
	h.bus.Publish(events.NewEvent(events.EventNotification, "pluginui", map[string]interface{}{
		"progress": true,
		"dismiss":  true,
	}))
}

// Notify publishes a transient, dismissible message.
func (h *EventHost) Notify(message string) {
	h.bus.Publish(events.NewEvent(events.EventNotification, "pluginui", map[string]interface{}{
		"message": message,
	}))
}

// ShowResults publishes a results payload for the renderer's results dialog.
func (h *EventHost) ShowResults(results map[string]interface{}) {
	h.bus.Publish(events.NewEvent(events.EventResultsShow, "pluginui", map[string]interface{}{
		"results": results,
	}))
}

// RefreshPage asks the renderer to invalidate caches and re-render the
// current page.
func (h *EventHost) RefreshPage() {
	h.bus.Publish(events.NewEvent(events.EventMediaRefresh, "pluginui", nil))
}
