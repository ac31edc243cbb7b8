// Package gpio provides GPIO output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Level is the electrical level of an output line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == Low {
		return "LOW"
	}
	return "HIGH"
}

// Output drives a single digital output line.
type Output interface {
	// Set drives the line to level. Before Configure it only latches the
	// level that Configure will apply.
	Set(level Level) error

	// Configure switches the line to output mode with pull-up enabled,
	// pull-down disabled and edge detection off, at the last level set.
	Configure() error

	// Level returns the level currently driven (or latched).
	Level() (Level, error)

	// Close releases the line.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinDoor1     = 17
	DefaultPinDoor2     = 27
	DefaultPinIndicator = 22
)

// DefaultChip is the character device that carries the header pins.
const DefaultChip = "gpiochip0"
