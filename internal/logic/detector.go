package logic

import "time"

// Detector remembers the door state and classifies each executed poll.
// Polls attempted inside the poll interval are no-ops; there is no other debounce.
type Detector struct {
	gate          *Gate
	state         DoorState
	polled        bool
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDetector creates a detector gated by pollInterval.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(pollInterval time.Duration, startTime time.Time) *Detector {
	return &Detector{
		gate:          NewGate(pollInterval),
		state:         StateUnknown,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Due reports whether a poll at now would execute.
func (d *Detector) Due(now time.Time) bool {
	return d.gate.Due(now)
}

// Poll classifies the reading against the remembered state and remembers it.
// Returns NoChange without touching state when called inside the poll interval.
func (d *Detector) Poll(cur DoorState, now time.Time) Transition {
	if !d.gate.Ready(now) {
		return NoChange
	}
	prev := d.state
	d.state = cur
	d.polled = true
	return Classify(prev, cur)
}

// State returns the remembered door state.
func (d *Detector) State() DoorState {
	return d.state
}

// Polled reports whether at least one poll has executed since start or Reset.
func (d *Detector) Polled() bool {
	return d.polled
}

// Reset forgets the remembered state so the next executed poll re-announces it.
func (d *Detector) Reset() {
	d.state = StateUnknown
	d.polled = false
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil before the first poll, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.polled {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		State:     d.state,
	}
}
