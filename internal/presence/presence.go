// Package presence decides whether an authorized BLE token is within range.
// The real scanner uses BlueZ through tinygo.org/x/bluetooth on Linux.
// The fake scanner allows testing without a radio.
package presence

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults for a single scan.
const (
	DefaultScanDuration = 5 * time.Second
	DefaultMinRSSI      = -80
)

// TokenSet is the set of advertised names that authorize suppression.
type TokenSet map[string]struct{}

// NewTokenSet builds a set from names. Empty names are ignored.
func NewTokenSet(names ...string) TokenSet {
	s := make(TokenSet, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Contains reports whether name is in the set. Matching is exact.
func (s TokenSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Device is one advertisement seen during a scan.
type Device struct {
	Name string
	RSSI int
}

// Scanner performs one bounded active scan and returns what it saw.
type Scanner interface {
	Scan(duration time.Duration) ([]Device, error)
}

// Authorized reports whether any device is at or above minRSSI and
// advertises a name in tokens.
func Authorized(devices []Device, tokens TokenSet, minRSSI int) bool {
	for _, d := range devices {
		if d.RSSI < minRSSI {
			continue
		}
		if tokens.Contains(d.Name) {
			return true
		}
	}
	return false
}

// Checker wraps a Scanner with the scan parameters.
type Checker struct {
	scanner  Scanner
	duration time.Duration
	minRSSI  int
	log      zerolog.Logger
}

// NewChecker creates a Checker. A non-positive duration falls back to DefaultScanDuration.
func NewChecker(scanner Scanner, duration time.Duration, minRSSI int, log zerolog.Logger) *Checker {
	if duration <= 0 {
		duration = DefaultScanDuration
	}
	return &Checker{
		scanner:  scanner,
		duration: duration,
		minRSSI:  minRSSI,
		log:      log,
	}
}

// IsAuthorizedTokenPresent blocks for up to the scan duration.
// A scan failure counts as "not present" and is only logged.
func (c *Checker) IsAuthorizedTokenPresent(tokens TokenSet) bool {
	if len(tokens) == 0 || c.scanner == nil {
		return false
	}

	devices, err := c.scanner.Scan(c.duration)
	if err != nil {
		c.log.Warn().Err(err).Msg("presence scan failed")
		return false
	}

	found := Authorized(devices, tokens, c.minRSSI)
	c.log.Debug().Int("devices", len(devices)).Bool("authorized", found).Msg("presence scan complete")
	return found
}
