//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Output is not implemented on non-Linux platforms.
func (c *Chip) Output(offset int, consumer string) (*RealOutput, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

func (o *RealOutput) Set(level Level) error { return errUnsupported }
func (o *RealOutput) Configure() error      { return errUnsupported }
func (o *RealOutput) Level() (Level, error) { return Low, errUnsupported }
func (o *RealOutput) Close() error          { return nil }
