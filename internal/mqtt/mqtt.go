// Package mqtt provides MQTT telemetry publishing with abstraction for
// testing. Telemetry is strictly observability: operator alerting happens
// over SMS, never through the broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/flood-watchdog/internal/logic"
)

// Topic is the MQTT topic for watchdog state events.
const Topic = "facilities/flood/watchdog/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "facilities/flood/watchdog/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a watchdog state event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event WatchdogEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// WatchdogEvent is a state event with its emit time.
type WatchdogEvent struct {
	Timestamp time.Time
	Event     logic.Event
}

// SystemEvent represents a system lifecycle event (startup, shutdown,
// heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Flood FloodPayload `json:"flood"`
}

// FloodPayload contains the watchdog event details.
type FloodPayload struct {
	Timestamp     string `json:"timestamp"`
	Event         string `json:"event"`
	Indicator     string `json:"indicator,omitempty"`
	WaterStreak   int    `json:"water_streak,omitempty"`
	MissingCycles int    `json:"missing_cycles,omitempty"`
}

// FormatPayload creates the JSON payload for a watchdog event.
func FormatPayload(event WatchdogEvent) ([]byte, error) {
	payload := Payload{
		Flood: FloodPayload{
			Timestamp:     event.Timestamp.UTC().Format(time.RFC3339),
			Event:         string(event.Event.Type),
			Indicator:     string(event.Event.Indicator),
			WaterStreak:   event.Event.WaterStreak,
			MissingCycles: event.Event.MissingCycles,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for simple system
// events that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly (used for full status
// snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
