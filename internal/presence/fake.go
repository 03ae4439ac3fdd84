package presence

import "time"

// FakeScanner is a test double that returns scripted scan results.
type FakeScanner struct {
	// Devices is returned by every Scan call.
	Devices []Device

	// ScanError, if set, will be returned by Scan.
	ScanError error

	// Calls counts Scan invocations.
	Calls int

	// LastDuration is the duration passed to the last Scan.
	LastDuration time.Duration
}

// Scan records the call and returns the scripted devices.
func (f *FakeScanner) Scan(duration time.Duration) ([]Device, error) {
	f.Calls++
	f.LastDuration = duration
	if f.ScanError != nil {
		return nil, f.ScanError
	}
	return f.Devices, nil
}
