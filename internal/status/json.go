package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/garage-opener/internal/indicator"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Doors         []DoorJSON    `json:"doors"`
	Indicator     IndicatorJSON `json:"indicator"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Config        ConfigJSON    `json:"config"`
}

// DoorJSON is the JSON representation of one door.
type DoorJSON struct {
	ID        string `json:"id"`
	Active    bool   `json:"active"`
	Pulses    uint64 `json:"pulses"`
	Rejected  uint64 `json:"rejected"`
	LastPulse string `json:"last_pulse,omitempty"`
}

// IndicatorJSON reports the activity indicator.
type IndicatorJSON struct {
	On    bool   `json:"on"`
	Color string `json:"color"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Door1Pin     int    `json:"door1_pin"`
	Door2Pin     int    `json:"door2_pin"`
	IndicatorPin int    `json:"indicator_pin"`
	PulseMs      int64  `json:"pulse_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	doors := make([]DoorJSON, 0, len(snap.Doors))
	for _, d := range snap.Doors {
		dj := DoorJSON{
			ID:       d.ID.String(),
			Active:   d.Active,
			Pulses:   d.Pulses,
			Rejected: d.Rejected,
		}
		if !d.LastPulse.IsZero() {
			dj.LastPulse = d.LastPulse.UTC().Format(time.RFC3339)
		}
		doors = append(doors, dj)
	}

	return StatusInner{
		Doors:         doors,
		Indicator:     IndicatorJSON{On: snap.Indicator(), Color: indicator.ActiveColor.String()},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Door1Pin:     snap.Config.Door1Pin,
			Door2Pin:     snap.Config.Door2Pin,
			IndicatorPin: snap.Config.IndicatorPin,
			PulseMs:      snap.Config.PulseMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
