// Package mqtt connects the doors to the remote device model over MQTT.
//
// Each door is a switch: commands arrive on <prefix>/<door>/power/set and the
// resting state is reported, retained, on <prefix>/<door>/power.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/garage-opener/internal/door"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "garage/opener"

// Publisher publishes door state and lifecycle events.
type Publisher interface {
	door.Reporter

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives a parsed switch command.
type CommandHandler func(id door.ID, on bool) error

var errBadPayload = errors.New("unrecognised power payload")

// Topics derives every topic from a prefix.
type Topics struct {
	Prefix string
}

// NewTopics trims slashes from prefix, falling back to DefaultPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{Prefix: prefix}
}

// Command is the topic a door's switch commands arrive on.
func (t Topics) Command(id door.ID) string {
	return t.Prefix + "/" + id.String() + "/power/set"
}

// State is the retained topic a door's power state is reported on.
func (t Topics) State(id door.ID) string {
	return t.Prefix + "/" + id.String() + "/power"
}

// System is the topic for lifecycle events.
func (t Topics) System() string {
	return t.Prefix + "/system"
}

// ParseCommand maps a command message to a door and requested state.
func (t Topics) ParseCommand(topic string, payload []byte) (door.ID, bool, error) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/")
	if !ok {
		return 0, false, fmt.Errorf("topic %q outside prefix %q", topic, t.Prefix)
	}
	name, ok := strings.CutSuffix(rest, "/power/set")
	if !ok {
		return 0, false, fmt.Errorf("topic %q is not a command topic", topic)
	}
	id, err := door.ParseID(name)
	if err != nil {
		return 0, false, err
	}
	on, err := ParsePower(payload)
	if err != nil {
		return 0, false, err
	}
	return id, on, nil
}

// ParsePower accepts true/false, on/off, 1/0 (any case) or {"power": bool}.
func ParsePower(payload []byte) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(string(payload)))
	switch s {
	case "true", "on", "1":
		return true, nil
	case "false", "off", "0":
		return false, nil
	}

	if strings.HasPrefix(s, "{") {
		var body struct {
			Power *bool `json:"power"`
		}
		if err := json.Unmarshal(payload, &body); err == nil && body.Power != nil {
			return *body.Power, nil
		}
	}
	return false, fmt.Errorf("%w: %q", errBadPayload, string(payload))
}

// StatePayload is the MQTT payload for a door's reported power state.
type StatePayload struct {
	Door DoorPayload `json:"door"`
}

// DoorPayload contains the door state details.
type DoorPayload struct {
	ID        string `json:"id"`
	Power     bool   `json:"power"`
	Timestamp string `json:"timestamp"`
}

// FormatPowerState creates the JSON payload for a power-state report.
func FormatPowerState(id door.ID, on bool, at time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{
		Door: DoorPayload{
			ID:        id.String(),
			Power:     on,
			Timestamp: at.UTC().Format(time.RFC3339),
		},
	})
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// willPayload is published by the broker if the client drops without a clean disconnect.
func willPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	return data
}
