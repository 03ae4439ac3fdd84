package logic

import "time"

// Gate admits an activity no more often than its interval.
// The first call to Ready always admits.
type Gate struct {
	interval time.Duration
	last     time.Time
	fired    bool
}

// NewGate creates a gate with the given minimum interval.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Due reports whether the activity may run at now without marking it as run.
func (g *Gate) Due(now time.Time) bool {
	if !g.fired {
		return true
	}
	return now.Sub(g.last) >= g.interval
}

// Ready reports whether the activity may run at now and, if so, records now
// as the last run.
func (g *Gate) Ready(now time.Time) bool {
	if !g.Due(now) {
		return false
	}
	g.last = now
	g.fired = true
	return true
}

// Interval returns the configured minimum interval.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
