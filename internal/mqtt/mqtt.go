// Package mqtt publishes door and system events to an MQTT broker, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/door-alerter/internal/logic"
)

// DefaultTopicPrefix is the topic root when none is configured.
const DefaultTopicPrefix = "home/garage/door"

// EventsTopic returns the topic for door events under prefix.
func EventsTopic(prefix string) string {
	return prefix + "/events"
}

// SystemTopic returns the topic for system lifecycle events under prefix.
func SystemTopic(prefix string) string {
	return prefix + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a door event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RESTART"
	Reason     string // e.g., "SIGTERM", "TTL reached"
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the door event message.
type Payload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the door event details.
type DoorPayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	State      string `json:"state"`
	Authorized bool   `json:"authorized"`
	Incident   bool   `json:"incident"`
}

// EventName maps a transition to the published event name.
func EventName(t logic.Transition) string {
	switch t {
	case logic.OpeningDetected:
		return "OPENED"
	case logic.ClosingDetected:
		return "CLOSED"
	default:
		return string(t)
	}
}

// FormatPayload creates the JSON payload for a door event.
func FormatPayload(event logic.Event) ([]byte, error) {
	return json.Marshal(Payload{
		Door: DoorPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      EventName(event.Transition),
			State:      string(event.State),
			Authorized: event.Authorized,
			Incident:   event.Incident,
		},
	})
}

// SystemPayload is the message for simple system events (LWT, RESTART) that
// don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
