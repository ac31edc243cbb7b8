package door

import (
	"sync/atomic"
	"time"

	"github.com/sweeney/garage-opener/internal/gpio"
)

// Actuator holds one door's output line and pulse state.
// The active flag is written only by the owning Controller.
type Actuator struct {
	id  ID
	out gpio.Output

	active    atomic.Bool
	pulses    atomic.Uint64
	rejected  atomic.Uint64
	lastPulse atomic.Int64 // unix nanos of the last completed pulse, 0 if none
}

func newActuator(id ID, out gpio.Output) *Actuator {
	return &Actuator{id: id, out: out}
}

// Active reports whether a pulse is in flight.
func (a *Actuator) Active() bool {
	return a.active.Load()
}

func (a *Actuator) status() Status {
	s := Status{
		ID:       a.id,
		Active:   a.active.Load(),
		Pulses:   a.pulses.Load(),
		Rejected: a.rejected.Load(),
	}
	if ns := a.lastPulse.Load(); ns != 0 {
		s.LastPulse = time.Unix(0, ns)
	}
	return s
}
