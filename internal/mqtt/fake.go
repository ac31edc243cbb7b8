package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/garage-opener/internal/door"
)

// PowerReport is a recorded ReportPowerState call.
type PowerReport struct {
	ID      door.ID
	On      bool
	Payload []byte
}

// FakeClient records published messages for test assertions.
// Safe for concurrent use: reports arrive from pulse goroutines.
type FakeClient struct {
	mu sync.Mutex

	topics  Topics
	handler CommandHandler

	reports        []PowerReport
	systemEvents   []SystemEvent
	systemPayloads [][]byte
	closed         bool
	connected      bool

	// ReportError, if set, will be returned by ReportPowerState.
	ReportError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error
}

// NewFakeClient creates a FakeClient using the given topic prefix.
func NewFakeClient(prefix string) *FakeClient {
	return &FakeClient{topics: NewTopics(prefix)}
}

// OnCommand sets the handler Deliver dispatches to.
func (f *FakeClient) OnCommand(h CommandHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// Deliver simulates an inbound message on topic, parsed exactly as the real
// client parses it.
func (f *FakeClient) Deliver(topic string, payload []byte) error {
	id, on, err := f.topics.ParseCommand(topic, payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(id, on)
}

// ReportPowerState records the report.
func (f *FakeClient) ReportPowerState(id door.ID, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReportError != nil {
		return f.ReportError
	}
	payload, err := FormatPowerState(id, on, time.Now())
	if err != nil {
		return err
	}
	f.reports = append(f.reports, PowerReport{ID: id, On: on, Payload: payload})
	return nil
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.systemEvents = append(f.systemEvents, event)
	f.systemPayloads = append(f.systemPayloads, payload)
	return nil
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// SetConnected controls the return value of IsConnected.
func (f *FakeClient) SetConnected(c bool) {
	f.mu.Lock()
	f.connected = c
	f.mu.Unlock()
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Reports returns a copy of recorded power reports.
func (f *FakeClient) Reports() []PowerReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PowerReport(nil), f.reports...)
}

// SystemEvents returns a copy of recorded system events.
func (f *FakeClient) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// SystemPayloads returns a copy of recorded system payloads.
func (f *FakeClient) SystemPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.systemPayloads...)
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
