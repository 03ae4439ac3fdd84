//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the door sensor from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip *gpiocdev.Chip
	door *gpiocdev.Line
}

// NewRealReader requests the door pin as an input with pull-up.
func NewRealReader(chipName string, pin int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// The reed switch shorts the pin to ground when the door is closed.
	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request door pin %d: %w", pin, err)
	}

	return &RealReader{chip: chip, door: line}, nil
}

// Read returns true when the door is open (raw high).
func (r *RealReader) Read() (bool, error) {
	raw, err := r.door.Value()
	if err != nil {
		return false, fmt.Errorf("read door pin: %w", err)
	}
	return raw == 1, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	if r.door != nil {
		if err := r.door.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close door pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RealIndicator drives two LEDs on output lines.
type RealIndicator struct {
	chip   *gpiocdev.Chip
	open   *gpiocdev.Line
	closed *gpiocdev.Line
}

// NewRealIndicator requests both LED pins as outputs, initially low.
func NewRealIndicator(chipName string, pinOpen, pinClosed int) (*RealIndicator, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	openLine, err := chip.RequestLine(pinOpen, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request open LED pin %d: %w", pinOpen, err)
	}

	closedLine, err := chip.RequestLine(pinClosed, gpiocdev.AsOutput(0))
	if err != nil {
		openLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request closed LED pin %d: %w", pinClosed, err)
	}

	return &RealIndicator{chip: chip, open: openLine, closed: closedLine}, nil
}

// Show sets each LED.
func (i *RealIndicator) Show(open, closed bool) error {
	if err := i.open.SetValue(level(open)); err != nil {
		return fmt.Errorf("set open LED: %w", err)
	}
	if err := i.closed.SetValue(level(closed)); err != nil {
		return fmt.Errorf("set closed LED: %w", err)
	}
	return nil
}

// Close turns both LEDs off and releases GPIO resources.
// Lines are reconfigured as inputs first so the pins are not left driven.
func (i *RealIndicator) Close() error {
	var errs []error
	for name, line := range map[string]*gpiocdev.Line{"open": i.open, "closed": i.closed} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear %s LED: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s LED pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s LED pin: %w", name, err))
		}
	}
	if i.chip != nil {
		if err := i.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
