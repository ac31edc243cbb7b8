//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// Chip wraps a GPIO character device and hands out output lines.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named GPIO chip, e.g. "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Output requests the line at offset. The line is requested as an input with
// pull-up so an attached active-low relay module stays released until
// Configure turns it into an output.
func (c *Chip) Output(offset int, consumer string) (*RealOutput, error) {
	line, err := c.chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithoutEdges,
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request pin %d: %w", offset, err)
	}
	return &RealOutput{line: line, offset: offset, level: High}, nil
}

// Close releases the chip. Lines must be closed separately.
func (c *Chip) Close() error {
	if err := c.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}

// RealOutput drives one line of a Chip.
type RealOutput struct {
	mu         sync.Mutex
	line       *gpiocdev.Line
	offset     int
	level      Level
	configured bool
}

// Set drives the line, or latches the level if the line is not yet an output.
func (o *RealOutput) Set(level Level) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.configured {
		if err := o.line.SetValue(int(level)); err != nil {
			return fmt.Errorf("set pin %d %s: %w", o.offset, level, err)
		}
	}
	o.level = level
	return nil
}

// Configure reconfigures the line as an output at the latched level.
func (o *RealOutput) Configure() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	err := o.line.Reconfigure(
		gpiocdev.AsOutput(int(o.level)),
		gpiocdev.WithPullUp,
		gpiocdev.WithoutEdges)
	if err != nil {
		return fmt.Errorf("configure pin %d as output: %w", o.offset, err)
	}
	o.configured = true
	return nil
}

// Level returns the driven level.
func (o *RealOutput) Level() (Level, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.configured {
		return o.level, nil
	}
	v, err := o.line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", o.offset, err)
	}
	if v == 0 {
		return Low, nil
	}
	return High, nil
}

// Close drives the line HIGH, hands it back as an input with pull-up and
// releases it, so the relay stays open across a restart.
func (o *RealOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.line == nil {
		return nil
	}

	var err error
	if o.configured {
		if serr := o.line.SetValue(int(High)); serr != nil {
			err = multierr.Append(err, fmt.Errorf("release pin %d: %w", o.offset, serr))
		}
	}
	if rerr := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); rerr != nil {
		err = multierr.Append(err, fmt.Errorf("reconfigure pin %d: %w", o.offset, rerr))
	}
	if cerr := o.line.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("close pin %d: %w", o.offset, cerr))
	}
	o.line = nil
	o.configured = false
	return err
}
