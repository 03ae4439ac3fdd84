// Package monitor owns the door state and decides which side effects each
// observed transition triggers.
//
// Everything runs on the caller's goroutine. A slow presence scan or channel
// call delays the next poll.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/door-alerter/internal/incident"
	"github.com/sweeney/door-alerter/internal/logic"
	"github.com/sweeney/door-alerter/internal/notify"
	"github.com/sweeney/door-alerter/internal/presence"
)

// Chat notification texts.
const (
	MsgOpened           = "The door-opening event is detected"
	MsgOpenedAuthorized = MsgOpened + " (authorized key fob nearby)"
	MsgClosed           = "The door-closing event is detected"
)

// Indicator drives the open/closed lights.
type Indicator interface {
	Show(open, closed bool) error
}

// Presence decides whether an authorized token is in range.
type Presence interface {
	IsAuthorizedTokenPresent(tokens presence.TokenSet) bool
}

// Chat sends a text notification.
type Chat interface {
	Send(ctx context.Context, text string) notify.Result
}

// Webhook fires the generic webhook.
type Webhook interface {
	Trigger(ctx context.Context) (string, notify.Result)
}

// Incidents opens and closes remote incidents.
type Incidents interface {
	CreateEvent(ctx context.Context, severity incident.Severity, summary, source string) incident.Handle
	Resolve(ctx context.Context, h incident.Handle) bool
	Acknowledge(ctx context.Context, h incident.Handle) bool
}

// Events receives every handled transition.
type Events interface {
	Publish(event logic.Event) error
}

// Deps are the collaborators. A nil field disables that collaborator.
type Deps struct {
	Indicator Indicator
	Presence  Presence
	Chat      Chat
	Webhook   Webhook
	Incidents Incidents
	Events    Events
}

// Config holds the monitor settings.
type Config struct {
	PollInterval time.Duration
	// Stealth keeps the indicator dark when the door opens.
	Stealth  bool
	Tokens   presence.TokenSet
	Severity incident.Severity
	Summary  string
	Source   string
}

// Monitor is the single authority for door state and the held incident.
type Monitor struct {
	cfg      Config
	deps     Deps
	detector *logic.Detector
	// handle is nil when no incident is held.
	handle *incident.Handle
	counts logic.Counts
	log    zerolog.Logger
}

// New creates a Monitor in the Unknown state.
func New(cfg Config, deps Deps, startTime time.Time, log zerolog.Logger) *Monitor {
	if cfg.Severity == "" {
		cfg.Severity = incident.SeverityCritical
	}
	return &Monitor{
		cfg:      cfg,
		deps:     deps,
		detector: logic.NewDetector(cfg.PollInterval, startTime),
		log:      log,
	}
}

// Due reports whether a poll at now would execute.
func (m *Monitor) Due(now time.Time) bool {
	return m.detector.Due(now)
}

// Poll classifies a reading and remembers it. Calls inside the poll
// interval return NoChange and leave the state alone.
func (m *Monitor) Poll(reading logic.DoorState, now time.Time) logic.Transition {
	return m.detector.Poll(reading, now)
}

// Check polls and runs the handler for the resulting transition.
func (m *Monitor) Check(ctx context.Context, reading logic.DoorState, now time.Time) logic.Transition {
	tr := m.Poll(reading, now)
	switch tr {
	case logic.OpeningDetected:
		m.HandleOpening(ctx, now)
	case logic.ClosingDetected:
		m.HandleClosing(ctx, now)
	}
	return tr
}

// HandleOpening notifies, checks presence, and escalates unless an
// authorized token is nearby.
func (m *Monitor) HandleOpening(ctx context.Context, now time.Time) {
	m.counts.Openings++
	m.showIndicator(!m.cfg.Stealth, false)

	authorized := m.presenceCheck()

	text := MsgOpened
	if authorized {
		text = MsgOpenedAuthorized
	}
	m.sendChat(ctx, text)

	if authorized {
		m.counts.Suppressed++
		m.log.Info().Msg("door opened, authorized token present, escalation suppressed")
		m.publish(now, logic.OpeningDetected, authorized)
		return
	}

	m.triggerWebhook(ctx)

	switch {
	case m.deps.Incidents == nil:
	case m.handle != nil && !m.handle.Empty():
		// Re-announced opening, e.g. after a self-test.
		m.log.Info().Str("dedup_key", m.handle.DedupKey).Msg("incident already open, keeping it")
	default:
		h := m.deps.Incidents.CreateEvent(ctx, m.cfg.Severity, m.cfg.Summary, m.cfg.Source)
		m.handle = &h
		if h.Empty() {
			m.log.Warn().Msg("incident create failed, holding empty handle")
		} else {
			m.counts.IncidentsCreated++
			m.log.Info().Str("dedup_key", h.DedupKey).Msg("incident created")
		}
	}

	m.publish(now, logic.OpeningDetected, authorized)
}

// HandleClosing notifies every channel and resolves the held incident, if any.
func (m *Monitor) HandleClosing(ctx context.Context, now time.Time) {
	m.counts.Closings++
	m.showIndicator(false, true)
	m.sendChat(ctx, MsgClosed)
	m.triggerWebhook(ctx)
	m.resolveHeld(ctx)
	m.publish(now, logic.ClosingDetected, false)
}

// resolveHeld resolves and discards the held handle. The handle is
// discarded even when the resolve fails.
func (m *Monitor) resolveHeld(ctx context.Context) {
	if m.handle == nil {
		return
	}
	h := *m.handle
	m.handle = nil

	if m.deps.Incidents == nil {
		return
	}
	if m.deps.Incidents.Resolve(ctx, h) {
		m.counts.IncidentsResolved++
		m.log.Info().Str("dedup_key", h.DedupKey).Msg("incident resolved")
		return
	}
	m.log.Warn().Str("dedup_key", h.DedupKey).Msg("incident resolve failed, handle discarded")
}

// Acknowledge acknowledges the held incident. held reports whether a
// handle was held at all.
func (m *Monitor) Acknowledge(ctx context.Context) (held, ok bool) {
	if m.handle == nil || m.deps.Incidents == nil {
		return false, false
	}
	ok = m.deps.Incidents.Acknowledge(ctx, *m.handle)
	m.log.Info().Str("dedup_key", m.handle.DedupKey).Bool("ok", ok).Msg("incident acknowledge")
	return true, ok
}

// SelfTest fires the webhook once and forgets the door state, so the
// next executed poll re-announces it through every channel.
func (m *Monitor) SelfTest(ctx context.Context) {
	m.log.Info().Msg("self-test")
	m.triggerWebhook(ctx)
	m.Reset()
}

// Reset returns the door state to Unknown. The held incident is kept.
func (m *Monitor) Reset() {
	m.detector.Reset()
}

// State returns the remembered door state.
func (m *Monitor) State() logic.DoorState {
	return m.detector.State()
}

// Polled reports whether a poll has executed since start or Reset.
func (m *Monitor) Polled() bool {
	return m.detector.Polled()
}

// IncidentOpen reports whether an incident handle is held.
func (m *Monitor) IncidentOpen() bool {
	return m.handle != nil
}

// Incident returns a copy of the held handle.
func (m *Monitor) Incident() (incident.Handle, bool) {
	if m.handle == nil {
		return incident.Handle{}, false
	}
	return *m.handle, true
}

// Counts returns activity counters since start.
func (m *Monitor) Counts() logic.Counts {
	return m.counts
}

// CheckHeartbeat returns heartbeat data when interval has elapsed.
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	return m.detector.CheckHeartbeat(now, interval)
}

func (m *Monitor) showIndicator(open, closed bool) {
	if m.deps.Indicator == nil {
		return
	}
	if err := m.deps.Indicator.Show(open, closed); err != nil {
		m.log.Warn().Err(err).Msg("indicator update failed")
	}
}

func (m *Monitor) presenceCheck() bool {
	if m.deps.Presence == nil || len(m.cfg.Tokens) == 0 {
		return false
	}
	return m.deps.Presence.IsAuthorizedTokenPresent(m.cfg.Tokens)
}

func (m *Monitor) sendChat(ctx context.Context, text string) {
	if m.deps.Chat == nil {
		return
	}
	if r := m.deps.Chat.Send(ctx, text); !r.OK() {
		m.counts.NotifyFailures++
		m.log.Warn().Stringer("result", r).Msg("chat notification failed")
	}
}

func (m *Monitor) triggerWebhook(ctx context.Context) {
	if m.deps.Webhook == nil {
		return
	}
	_, r := m.deps.Webhook.Trigger(ctx)
	if !r.OK() {
		m.counts.NotifyFailures++
		m.log.Warn().Stringer("result", r).Msg("webhook failed")
		return
	}
	m.log.Debug().Msg("webhook delivered")
}

func (m *Monitor) publish(now time.Time, tr logic.Transition, authorized bool) {
	if m.deps.Events == nil {
		return
	}
	ev := logic.Event{
		Timestamp:  now,
		Transition: tr,
		State:      m.detector.State(),
		Authorized: authorized,
		Incident:   m.handle != nil,
	}
	if err := m.deps.Events.Publish(ev); err != nil {
		m.log.Warn().Err(err).Msg("event publish failed")
	}
}
