// Package status provides a thread-safe status tracker for the garage-opener daemon.
// It is read by the HTTP handlers and by MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/indicator"
)

// DoorSource supplies live door state.
type DoorSource interface {
	Doors() []door.Status
}

// Config contains daemon configuration for display.
type Config struct {
	Door1Pin     int
	Door2Pin     int
	IndicatorPin int
	PulseMs      int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Doors         []door.Status
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Indicator reports whether the activity indicator is lit.
func (s Snapshot) Indicator() bool {
	states := make([]bool, len(s.Doors))
	for i, d := range s.Doors {
		states[i] = d.Active
	}
	return indicator.Combine(states...)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu            sync.RWMutex
	startTime     time.Time
	cfg           Config
	mqttConnected bool
	doors         DoorSource
}

// NewTracker creates a Tracker reading door state from src.
func NewTracker(startTime time.Time, cfg Config, src DoorSource) *Tracker {
	return &Tracker{startTime: startTime, cfg: cfg, doors: src}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.mqttConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		StartTime:     t.startTime,
		MQTTConnected: t.mqttConnected,
		Config:        t.cfg,
	}
	src := t.doors
	t.mu.RUnlock()

	if src != nil {
		s.Doors = src.Doors()
	}
	s.Now = time.Now()
	return s
}
