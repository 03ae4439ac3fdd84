//go:build linux

package presence

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// BLEScanner scans with the default BlueZ adapter.
type BLEScanner struct {
	adapter *bluetooth.Adapter
	enabled bool
}

// NewBLEScanner returns a scanner bound to the default adapter.
// The adapter is enabled lazily on the first scan.
func NewBLEScanner() *BLEScanner {
	return &BLEScanner{adapter: bluetooth.DefaultAdapter}
}

// Scan runs an active scan for duration and returns every advertisement seen.
// Results are not retained between calls.
func (s *BLEScanner) Scan(duration time.Duration) ([]Device, error) {
	if !s.enabled {
		if err := s.adapter.Enable(); err != nil {
			return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
		}
		s.enabled = true
	}

	var (
		mu    sync.Mutex
		found []Device
	)

	// Scan blocks until StopScan is called.
	stop := time.AfterFunc(duration, func() {
		_ = s.adapter.StopScan()
	})
	defer stop.Stop()

	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		mu.Lock()
		found = append(found, Device{Name: result.LocalName(), RSSI: int(result.RSSI)})
		mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("bluetooth scan: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}
