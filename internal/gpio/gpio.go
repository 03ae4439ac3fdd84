// Package gpio provides the door sensor input and LED indicator outputs with
// hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the door sensor.
type Reader interface {
	// Read returns the logical door state: true = open.
	// The sensor is pull-up biased, so raw low = closed and raw high = open.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Indicator drives the open/closed LEDs.
type Indicator interface {
	// Show sets each LED. Both false turns the indicator dark.
	Show(open, closed bool) error

	// Close turns the LEDs off and releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip         = "gpiochip0"
	DefaultPinDoor      = 13
	DefaultPinLEDOpen   = 25
	DefaultPinLEDClosed = 26
)
