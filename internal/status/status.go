// Package status provides a thread-safe status tracker for the door alerter.
// The run loop writes it; HTTP handlers read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/door-alerter/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Device      string
	PollMs      int64
	HeartbeatMs int64
	Stealth     bool
	Broker      string
	HTTPAddr    string
	Presence    bool
	PagerDuty   bool
	Telegram    bool
	Webhook     bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Door          logic.DoorState
	Polled        bool
	IncidentOpen  bool
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	// RestartReason is the reason reported at boot, if any.
	RestartReason string
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Door:      logic.StateUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets door state, incident flag, and counts.
// Called from the run loop after every executed poll.
func (t *Tracker) Update(door logic.DoorState, polled, incidentOpen bool, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Door = door
	t.snap.Polled = polled
	t.snap.IncidentOpen = incidentOpen
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetRestartReason records the reason reported at boot.
func (t *Tracker) SetRestartReason(reason string) {
	t.mu.Lock()
	t.snap.RestartReason = reason
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
