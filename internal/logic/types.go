// Package logic contains the pure door-state logic.
// This package has NO external dependencies (no GPIO, network, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// DoorState represents the logical state of the door.
type DoorState string

const (
	// StateUnknown is the state before the first executed poll, or after Reset.
	StateUnknown DoorState = "UNKNOWN"
	StateOpen    DoorState = "OPEN"
	StateClosed  DoorState = "CLOSED"
)

// StateFromOpen maps a logical sensor reading to a DoorState.
func StateFromOpen(open bool) DoorState {
	if open {
		return StateOpen
	}
	return StateClosed
}

// Transition is derived from a (previous, current) pair of states. It is never stored.
type Transition string

const (
	NoChange        Transition = "NO_CHANGE"
	OpeningDetected Transition = "OPENING"
	ClosingDetected Transition = "CLOSING"
)

// Classify returns the transition between prev and cur.
// Unknown is a wildcard predecessor, so the first executed poll always
// produces exactly one transition.
func Classify(prev, cur DoorState) Transition {
	switch {
	case cur == StateOpen && (prev == StateClosed || prev == StateUnknown):
		return OpeningDetected
	case cur == StateClosed && (prev == StateOpen || prev == StateUnknown):
		return ClosingDetected
	default:
		return NoChange
	}
}

// Event represents a door transition to be published to event sinks.
type Event struct {
	Timestamp  time.Time
	Transition Transition
	State      DoorState
	// Authorized is true when an authorized token suppressed escalation.
	Authorized bool
	// Incident is true when an incident is held after handling the transition.
	Incident bool
}

// Counts tracks door activity since startup.
type Counts struct {
	Openings          int
	Closings          int
	Suppressed        int
	IncidentsCreated  int
	IncidentsResolved int
	NotifyFailures    int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     DoorState
}
