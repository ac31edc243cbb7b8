// Package indicator renders the combined door activity on a single light.
// It holds no activity state of its own: callers pass the freshly computed
// OR of every door's pulse flag.
package indicator

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/garage-opener/internal/gpio"
	"github.com/sweeney/garage-opener/internal/logger"
)

// Color is an RGB colour for renderers that support one.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ActiveColor is rendered while any door is pulsing (H,S,V = 120,100,10).
var ActiveColor = Color{R: 0, G: 25, B: 0}

// Renderer draws the indicator. Init prepares the hardware and is called
// once, after the relay lines are safe.
type Renderer interface {
	Init() error
	SetActiveColor() error
	Clear() error
}

// Combine returns true if any state is true.
func Combine(states ...bool) bool {
	for _, s := range states {
		if s {
			return true
		}
	}
	return false
}

// Aggregator applies the combined activity signal to a Renderer.
type Aggregator struct {
	r   Renderer
	log *zap.SugaredLogger
}

// New creates an Aggregator. A nil renderer renders nothing.
func New(r Renderer, log *zap.SugaredLogger) *Aggregator {
	if r == nil {
		r = NopRenderer{}
	}
	return &Aggregator{r: r, log: logger.OrNop(log)}
}

// Init prepares the renderer and draws the given starting state.
func (a *Aggregator) Init(active bool) error {
	if err := a.r.Init(); err != nil {
		return fmt.Errorf("init indicator: %w", err)
	}
	a.Apply(active)
	return nil
}

// Apply renders the active colour if active, otherwise clears the indicator.
// Render failures are logged; the indicator is cosmetic.
func (a *Aggregator) Apply(active bool) {
	var err error
	if active {
		err = a.r.SetActiveColor()
	} else {
		err = a.r.Clear()
	}
	if err != nil {
		a.log.Errorw("indicator render failed", "active", active, "error", err)
	}
}

// NopRenderer discards all render calls.
type NopRenderer struct{}

func (NopRenderer) Init() error           { return nil }
func (NopRenderer) SetActiveColor() error { return nil }
func (NopRenderer) Clear() error          { return nil }

// LEDRenderer drives a single-colour LED on a GPIO line, lit when HIGH.
type LEDRenderer struct {
	out gpio.Output
}

// NewLEDRenderer returns a renderer for out. The line is left untouched
// until Init.
func NewLEDRenderer(out gpio.Output) *LEDRenderer {
	return &LEDRenderer{out: out}
}

// Init switches the LED off and configures the line as an output.
func (l *LEDRenderer) Init() error {
	if err := l.out.Set(gpio.Low); err != nil {
		return fmt.Errorf("indicator off: %w", err)
	}
	if err := l.out.Configure(); err != nil {
		return fmt.Errorf("configure indicator: %w", err)
	}
	return nil
}

// SetActiveColor lights the LED.
func (l *LEDRenderer) SetActiveColor() error {
	return l.out.Set(gpio.High)
}

// Clear switches the LED off.
func (l *LEDRenderer) Clear() error {
	return l.out.Set(gpio.Low)
}

// FakeRenderer records render calls. Safe for concurrent use.
type FakeRenderer struct {
	mu    sync.Mutex
	lit   bool
	inits int
	calls []bool

	// Err, if set, is returned by every render call.
	Err error
	// InitErr, if set, is returned by Init.
	InitErr error
}

func (f *FakeRenderer) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.InitErr
}

// Inits returns how many times Init was called.
func (f *FakeRenderer) Inits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inits
}

func (f *FakeRenderer) SetActiveColor() error { return f.record(true) }
func (f *FakeRenderer) Clear() error          { return f.record(false) }

func (f *FakeRenderer) record(lit bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lit)
	if f.Err != nil {
		return f.Err
	}
	f.lit = lit
	return nil
}

// Lit reports whether the last successful call set the active colour.
func (f *FakeRenderer) Lit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lit
}

// Calls returns every call in order: true for SetActiveColor, false for Clear.
func (f *FakeRenderer) Calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.calls...)
}
