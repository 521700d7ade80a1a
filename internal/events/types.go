package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of event flowing through the bus
type EventType string

const (
	// EventMediaRefresh asks the host UI to re-fetch and re-render the
	// current media page (cache invalidation included).
	EventMediaRefresh EventType = "media.refresh"

	// EventDialogShow asks the host UI to render a plugin-declared dialog.
	EventDialogShow EventType = "dialog.show"

	// EventDialogClose asks the host UI to dismiss the currently open
	// plugin dialog.
	EventDialogClose EventType = "dialog.close"

	// EventResultsShow carries a result payload the host UI should present
	// in a results dialog.
	EventResultsShow EventType = "results.show"

	// EventNotification carries a transient, dismissible user-facing
	// message.
	EventNotification EventType = "notification"

	// EventPluginReloaded signals that a plugin's UI manifest was reloaded.
	EventPluginReloaded EventType = "plugin.reloaded"
)

// Event is a single message on the bus
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event with a fresh id and timestamp
func NewEvent(eventType EventType, source string, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
