// Package incident opens, acknowledges and resolves incidents through the
// PagerDuty Events API v2. Every call is attempted once; transport and decode
// failures degrade to an empty handle or a false result.
package incident

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PagerDuty/go-pagerduty"
	"github.com/rs/zerolog"
)

// Severity is the PagerDuty payload severity.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ParseSeverity maps a config string to a Severity. Unknown values map to info.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical, true
	case SeverityError:
		return SeverityError, true
	case SeverityWarning:
		return SeverityWarning, true
	case SeverityInfo:
		return SeverityInfo, true
	default:
		return SeverityInfo, false
	}
}

// Event actions.
const (
	ActionTrigger     = "trigger"
	ActionAcknowledge = "acknowledge"
	ActionResolve     = "resolve"
)

// DefaultTimeout bounds a single Events API exchange.
const DefaultTimeout = 10 * time.Second

// Handle identifies one remote incident. A Handle with an empty DedupKey is
// the result of a failed trigger; acknowledge and resolve on it are no-ops.
type Handle struct {
	RoutingKey string
	DedupKey   string
	Severity   Severity
	Summary    string
	Source     string
}

// Empty reports whether the handle has no remote incident behind it.
func (h Handle) Empty() bool {
	return h.DedupKey == ""
}

// Client talks to the Events API with a fixed routing key.
type Client struct {
	routingKey string
	pd         *pagerduty.Client
	log        zerolog.Logger
}

// NewClient creates a Client. An empty endpoint uses PagerDuty's public Events API.
func NewClient(routingKey, endpoint string, timeout time.Duration, log zerolog.Logger) *Client {
	var opts []pagerduty.ClientOptions
	if endpoint != "" {
		opts = append(opts, pagerduty.WithV2EventsAPIEndpoint(strings.TrimSuffix(endpoint, "/")))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pd := pagerduty.NewClient("", opts...)
	pd.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		routingKey: routingKey,
		pd:         pd,
		log:        log,
	}
}

// CreateEvent triggers a new incident. On failure the returned handle has an
// empty DedupKey.
func (c *Client) CreateEvent(ctx context.Context, severity Severity, summary, source string) Handle {
	h := Handle{
		RoutingKey: c.routingKey,
		Severity:   severity,
		Summary:    summary,
		Source:     source,
	}

	resp, err := c.send(ctx, ActionTrigger, h)
	if err != nil {
		c.log.Warn().Err(err).Str("action", ActionTrigger).Msg("incident trigger failed")
		return h
	}
	if resp.DedupKey == "" {
		c.log.Warn().Str("status", resp.Status).Msg("incident trigger response has no dedup key")
		return h
	}

	h.DedupKey = resp.DedupKey
	c.log.Info().Str("dedup_key", h.DedupKey).Str("severity", string(severity)).Msg("incident triggered")
	return h
}

// Resolve resolves the incident behind h. Returns false for an empty handle
// or when the remote does not acknowledge with an OK status.
func (c *Client) Resolve(ctx context.Context, h Handle) bool {
	return c.update(ctx, ActionResolve, h)
}

// Acknowledge acknowledges the incident behind h, with the same contract as Resolve.
func (c *Client) Acknowledge(ctx context.Context, h Handle) bool {
	return c.update(ctx, ActionAcknowledge, h)
}

func (c *Client) update(ctx context.Context, action string, h Handle) bool {
	if h.Empty() {
		return false
	}

	resp, err := c.send(ctx, action, h)
	if err != nil {
		c.log.Warn().Err(err).Str("action", action).Str("dedup_key", h.DedupKey).Msg("incident update failed")
		return false
	}

	ok := statusOK(resp.Status)
	c.log.Info().Str("action", action).Str("dedup_key", h.DedupKey).Str("status", resp.Status).Bool("ok", ok).Msg("incident updated")
	return ok
}

func (c *Client) send(ctx context.Context, action string, h Handle) (*pagerduty.V2EventResponse, error) {
	event := &pagerduty.V2Event{
		RoutingKey: h.RoutingKey,
		Action:     action,
		DedupKey:   h.DedupKey,
		Payload: &pagerduty.V2Payload{
			Summary:  h.Summary,
			Source:   h.Source,
			Severity: string(h.Severity),
		},
	}

	resp, err := c.pd.ManageEventWithContext(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("%s event: %w", action, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s event: empty response", action)
	}
	return resp, nil
}

// statusOK accepts "OK" in any case and also "success", the status the
// Events API v2 documents. The wider match is deliberate: any other status
// is treated as a failed call.
func statusOK(status string) bool {
	return strings.EqualFold(status, "ok") || strings.EqualFold(status, "success")
}
