package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/garage-opener/internal/door"
)

type staticDoors []door.Status

func (s staticDoors) Doors() []door.Status { return append([]door.Status(nil), s...) }

type mutableDoors struct {
	mu    sync.Mutex
	doors []door.Status
}

func (m *mutableDoors) set(doors ...door.Status) {
	m.mu.Lock()
	m.doors = doors
	m.mu.Unlock()
}

func (m *mutableDoors) Doors() []door.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]door.Status(nil), m.doors...)
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PulseMs: 500, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg, nil)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PulseMs != 500 {
		t.Errorf("Config.PulseMs: got %d, want 500", snap.Config.PulseMs)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.Doors != nil {
		t.Errorf("expected no doors without a source, got %v", snap.Doors)
	}
}

func TestSnapshotReadsDoorsLive(t *testing.T) {
	src := &mutableDoors{}
	src.set(door.Status{ID: door.Door1}, door.Status{ID: door.Door2})
	tr := NewTracker(time.Now(), Config{}, src)

	if tr.Snapshot().Indicator() {
		t.Error("indicator should be off with both doors idle")
	}

	src.set(door.Status{ID: door.Door1}, door.Status{ID: door.Door2, Active: true})
	snap := tr.Snapshot()
	if !snap.Doors[1].Active {
		t.Error("expected door2 active")
	}
	if !snap.Indicator() {
		t.Error("indicator should be on while door2 is pulsing")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{}, nil)

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := start.Add(5 * time.Minute)
	snap := Snapshot{
		Doors: []door.Status{
			{ID: door.Door1, Active: true, Pulses: 4, Rejected: 1, LastPulse: last},
			{ID: door.Door2},
		},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Door1Pin: 17, Door2Pin: 27, IndicatorPin: 22, PulseMs: 500, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if len(s.Doors) != 2 {
		t.Fatalf("expected 2 doors, got %d", len(s.Doors))
	}
	if s.Doors[0].ID != "door1" || !s.Doors[0].Active || s.Doors[0].Pulses != 4 || s.Doors[0].Rejected != 1 {
		t.Errorf("door1: got %+v", s.Doors[0])
	}
	if s.Doors[0].LastPulse != "2026-01-01T00:05:00Z" {
		t.Errorf("door1 last pulse: got %q", s.Doors[0].LastPulse)
	}
	if s.Doors[1].LastPulse != "" {
		t.Errorf("door2 last pulse should be omitted, got %q", s.Doors[1].LastPulse)
	}
	if !s.Indicator.On {
		t.Error("expected indicator on")
	}
	if s.Indicator.Color != "#001900" {
		t.Errorf("indicator color: got %q", s.Indicator.Color)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("MQTT: got %+v", s.MQTT)
	}
	if s.Config.PulseMs != 500 || s.Config.Door2Pin != 27 {
		t.Errorf("Config: got %+v", s.Config)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("web format should carry no event/reason, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Doors:     staticDoors{{ID: door.Door1}, {ID: door.Door2}}.Doors(),
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.Indicator.On {
		t.Error("expected indicator off")
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	if _, exists := raw["status"]["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if raw["status"]["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", raw["status"]["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	src := &mutableDoors{}
	tr := NewTracker(time.Now(), Config{}, src)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			src.set(door.Status{ID: door.Door1, Active: i%2 == 0})
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = snap.Indicator()
		}
	}()

	wg.Wait()
}
