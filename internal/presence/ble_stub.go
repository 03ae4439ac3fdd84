//go:build !linux

package presence

import (
	"errors"
	"time"
)

// BLEScanner is not available on non-Linux platforms.
type BLEScanner struct{}

// NewBLEScanner returns a scanner that always fails on non-Linux platforms.
func NewBLEScanner() *BLEScanner {
	return &BLEScanner{}
}

// Scan is not implemented on non-Linux platforms.
func (s *BLEScanner) Scan(time.Duration) ([]Device, error) {
	return nil, errors.New("presence: bluetooth not supported on this platform (requires Linux)")
}
