package door

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/garage-opener/internal/gpio"
	"github.com/sweeney/garage-opener/internal/indicator"
	"github.com/sweeney/garage-opener/internal/logger"
)

// Config wires a Controller. Zero fields take defaults.
type Config struct {
	Door1, Door2 gpio.Output // required
	Indicator    *indicator.Aggregator
	Reporter     Reporter
	Logger       *zap.SugaredLogger

	// PulseDuration defaults to PulseDuration.
	PulseDuration time.Duration
	// SettleDelay defaults to SettleDelay.
	SettleDelay time.Duration
	// Sleep defaults to time.Sleep. Tests replace it to hold a pulse open.
	Sleep func(time.Duration)
}

// Controller owns both door actuators and the indicator.
type Controller struct {
	doors     [doorCount]*Actuator
	indicator *indicator.Aggregator
	reporter  Reporter
	log       *zap.SugaredLogger

	pulse  time.Duration
	settle time.Duration
	sleep  func(time.Duration)

	// mu serializes flag transitions with the indicator refresh so the
	// rendered state always equals the OR of both flags.
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool // guarded by mu
}

// NewController creates a Controller. Call Boot before Activate.
func NewController(cfg Config) *Controller {
	c := &Controller{
		doors: [doorCount]*Actuator{
			newActuator(Door1, cfg.Door1),
			newActuator(Door2, cfg.Door2),
		},
		indicator: cfg.Indicator,
		reporter:  cfg.Reporter,
		log:       logger.OrNop(cfg.Logger),
		pulse:     cfg.PulseDuration,
		settle:    cfg.SettleDelay,
		sleep:     cfg.Sleep,
	}
	if c.indicator == nil {
		c.indicator = indicator.New(nil, c.log)
	}
	if c.pulse <= 0 {
		c.pulse = PulseDuration
	}
	if c.settle <= 0 {
		c.settle = SettleDelay
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	return c
}

// Boot puts both relay lines into the safe state and initializes the indicator.
//
// The safe level is latched before the lines become outputs, so there is no
// window where a line could come up LOW, and asserted again after
// configuration because a mode change may reset the level.
func (c *Controller) Boot() error {
	for _, a := range c.doors {
		if err := a.out.Set(SafeLevel); err != nil {
			return fmt.Errorf("%s: preset safe level: %w", a.id, err)
		}
	}
	for _, a := range c.doors {
		if err := a.out.Configure(); err != nil {
			return fmt.Errorf("%s: configure output: %w", a.id, err)
		}
	}
	for _, a := range c.doors {
		if err := a.out.Set(SafeLevel); err != nil {
			return fmt.Errorf("%s: assert safe level: %w", a.id, err)
		}
	}

	c.sleep(c.settle)

	c.mu.Lock()
	err := c.indicator.Init(c.IndicatorActive())
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.log.Infow("relay lines safe", "settle", c.settle)
	return nil
}

// Activate starts a pulse on door id and returns without waiting for it.
// on == false is ignored: the relay is momentary, so there is nothing to
// switch off. A door that is already pulsing rejects the request with
// ErrPulseInProgress.
func (c *Controller) Activate(id ID, on bool) error {
	a, err := c.door(id)
	if err != nil {
		return err
	}
	if !on {
		c.log.Debugw("ignoring off request", "door", id)
		return nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		c.log.Warnw("controller stopped, ignoring activation", "door", id)
		return ErrStopped
	}
	if !a.active.CompareAndSwap(false, true) {
		c.mu.Unlock()
		a.rejected.Add(1)
		c.log.Warnw("pulse already active, ignoring", "door", id)
		return ErrPulseInProgress
	}
	c.refreshLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	go c.runPulse(a)
	return nil
}

func (c *Controller) runPulse(a *Actuator) {
	defer c.wg.Done()

	c.log.Infow("starting pulse", "door", a.id, "duration", c.pulse)

	if err := a.out.Set(ActiveLevel); err != nil {
		c.log.Errorw("drive relay closed failed", "door", a.id, "error", err)
	}

	c.sleep(c.pulse)

	if err := a.out.Set(SafeLevel); err != nil {
		c.log.Errorw("drive relay open failed", "door", a.id, "error", err)
	}

	c.mu.Lock()
	a.pulses.Add(1)
	a.lastPulse.Store(time.Now().UnixNano())
	a.active.Store(false)
	c.refreshLocked()
	c.mu.Unlock()

	if c.reporter != nil {
		if err := c.reporter.ReportPowerState(a.id, false); err != nil {
			c.log.Errorw("report power state failed", "door", a.id, "error", err)
			return
		}
	}
	c.log.Infow("pulse completed, reported off", "door", a.id)
}

// refreshLocked recomputes the indicator. Caller holds c.mu.
func (c *Controller) refreshLocked() {
	c.indicator.Apply(c.IndicatorActive())
}

// Active reports whether door id has a pulse in flight.
// Unknown doors report false.
func (c *Controller) Active(id ID) bool {
	a, err := c.door(id)
	if err != nil {
		return false
	}
	return a.Active()
}

// IndicatorActive reports whether any door is pulsing.
func (c *Controller) IndicatorActive() bool {
	return indicator.Combine(c.doors[0].Active(), c.doors[1].Active())
}

// Doors returns a snapshot of every door.
func (c *Controller) Doors() []Status {
	out := make([]Status, 0, doorCount)
	for _, a := range c.doors {
		out = append(out, a.status())
	}
	return out
}

// Wait blocks until every in-flight pulse has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Stop rejects every later activation with ErrStopped and waits for the
// pulses already running. The relay lines may be released once it returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Controller) door(id ID) (*Actuator, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDoor, int(id))
	}
	return c.doors[id-1], nil
}
