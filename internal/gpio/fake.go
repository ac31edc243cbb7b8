package gpio

import (
	"fmt"
	"sync"
	"time"
)

// Change is a level written to a FakeOutput.
type Change struct {
	Level      Level
	Configured bool // whether the line was an output when the level was written
	At         time.Time
}

// FakeOutput is a test double that records every operation.
// Safe for concurrent use.
type FakeOutput struct {
	mu sync.Mutex

	// Name appears in Ops entries and errors.
	Name string

	level      Level
	configured bool
	closed     bool
	changes    []Change
	ops        []string

	// SetError, if set, will be returned by Set.
	SetError error

	// ConfigureError, if set, will be returned by Configure.
	ConfigureError error
}

// NewFakeOutput creates a FakeOutput reading LOW, the undefined level a
// floating relay input would see.
func NewFakeOutput(name string) *FakeOutput {
	return &FakeOutput{Name: name, level: Low}
}

// Set records the level.
func (f *FakeOutput) Set(level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ops = append(f.ops, fmt.Sprintf("%s:set:%s", f.Name, level))
	if f.SetError != nil {
		return f.SetError
	}
	f.level = level
	f.changes = append(f.changes, Change{Level: level, Configured: f.configured, At: time.Now()})
	return nil
}

// Configure marks the line as an output.
func (f *FakeOutput) Configure() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ops = append(f.ops, f.Name+":configure")
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.configured = true
	return nil
}

// Level returns the last level set.
func (f *FakeOutput) Level() (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, nil
}

// Close marks the line as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ops = append(f.ops, f.Name+":close")
	f.closed = true
	return nil
}

// Configured reports whether Configure succeeded.
func (f *FakeOutput) Configured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configured
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Changes returns a copy of all recorded level changes.
func (f *FakeOutput) Changes() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Change(nil), f.changes...)
}

// Ops returns a copy of all recorded operations, e.g. "door1:set:HIGH".
func (f *FakeOutput) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// OpLog collects operations from several fakes in call order.
type OpLog struct {
	mu  sync.Mutex
	ops []string
}

// Record appends op.
func (l *OpLog) Record(op string) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

// Ops returns a copy of the recorded operations.
func (l *OpLog) Ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

// Logged wraps an Output and records each call in a shared OpLog, so tests
// can check ordering across lines.
type Logged struct {
	Output
	Name string
	Log  *OpLog
}

func (l *Logged) Set(level Level) error {
	l.Log.Record(fmt.Sprintf("%s:set:%s", l.Name, level))
	return l.Output.Set(level)
}

func (l *Logged) Configure() error {
	l.Log.Record(l.Name + ":configure")
	return l.Output.Configure()
}
