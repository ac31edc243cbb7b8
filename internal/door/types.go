// Package door turns activation commands into timed relay pulses.
//
// Each door owns one output line. A pulse drives the line LOW (relay closed)
// for PulseDuration and then HIGH again. At most one pulse per door is in
// flight; the two doors pulse independently.
package door

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/garage-opener/internal/gpio"
)

// ID identifies a door.
type ID int

const (
	Door1 ID = iota + 1
	Door2
)

const doorCount = 2

// IDs returns every door in order.
func IDs() []ID {
	return []ID{Door1, Door2}
}

func (id ID) String() string {
	switch id {
	case Door1:
		return "door1"
	case Door2:
		return "door2"
	default:
		return fmt.Sprintf("door(%d)", int(id))
	}
}

// Valid reports whether id names a known door.
func (id ID) Valid() bool {
	return id == Door1 || id == Door2
}

// ParseID accepts "door1", "Door1" or "1".
func ParseID(s string) (ID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "door1", "1":
		return Door1, nil
	case "door2", "2":
		return Door2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDoor, s)
	}
}

const (
	// PulseDuration is how long the relay is held closed.
	PulseDuration = 500 * time.Millisecond

	// SettleDelay is the hold after boot-time line configuration.
	SettleDelay = 100 * time.Millisecond

	// ActiveLevel closes the relay.
	ActiveLevel = gpio.Low

	// SafeLevel leaves the relay open.
	SafeLevel = gpio.High
)

var (
	// ErrPulseInProgress is returned when a door is activated mid-pulse.
	ErrPulseInProgress = errors.New("pulse already in progress")

	// ErrUnknownDoor is returned for an ID outside Door1, Door2.
	ErrUnknownDoor = errors.New("unknown door")

	// ErrStopped is returned by Activate once the controller is stopped.
	ErrStopped = errors.New("controller stopped")
)

// Reporter receives the door's power state for the remote device model.
type Reporter interface {
	ReportPowerState(id ID, on bool) error
}

// Status is a point-in-time view of one door.
type Status struct {
	ID        ID
	Active    bool
	Pulses    uint64 // completed pulses since start
	Rejected  uint64 // activations dropped because a pulse was in flight
	LastPulse time.Time
}
