package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Door          string     `json:"door"`
	Ready         bool       `json:"ready"`
	Incident      bool       `json:"incident_open"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	RestartReason string     `json:"restart_reason,omitempty"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of door activity counts.
type CountsJSON struct {
	Openings          int `json:"openings"`
	Closings          int `json:"closings"`
	Suppressed        int `json:"suppressed"`
	IncidentsCreated  int `json:"incidents_created"`
	IncidentsResolved int `json:"incidents_resolved"`
	NotifyFailures    int `json:"notify_failures"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Device      string `json:"device"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Stealth     bool   `json:"stealth"`
	Broker      string `json:"broker,omitempty"`
	HTTPAddr    string `json:"http_addr"`
	Presence    bool   `json:"presence"`
	PagerDuty   bool   `json:"pagerduty"`
	Telegram    bool   `json:"telegram"`
	Webhook     bool   `json:"webhook"`
}

func buildInner(snap Snapshot) StatusInner {
	door := string(snap.Door)
	if door == "" {
		door = "UNKNOWN"
	}

	c := snap.Counts
	return StatusInner{
		Door:          door,
		Ready:         snap.Polled,
		Incident:      snap.IncidentOpen,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		RestartReason: snap.RestartReason,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Openings:          c.Openings,
			Closings:          c.Closings,
			Suppressed:        c.Suppressed,
			IncidentsCreated:  c.IncidentsCreated,
			IncidentsResolved: c.IncidentsResolved,
			NotifyFailures:    c.NotifyFailures,
		},
		Config: ConfigJSON{
			Device:      snap.Config.Device,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Stealth:     snap.Config.Stealth,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Presence:    snap.Config.Presence,
			PagerDuty:   snap.Config.PagerDuty,
			Telegram:    snap.Config.Telegram,
			Webhook:     snap.Config.Webhook,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
