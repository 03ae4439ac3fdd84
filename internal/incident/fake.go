package incident

import (
	"context"
	"fmt"
)

// FakeClient records incident calls for test assertions.
type FakeClient struct {
	// Created contains every handle returned by CreateEvent.
	Created []Handle

	// Resolved and Acknowledged contain the handles passed in.
	Resolved     []Handle
	Acknowledged []Handle

	// FailCreate makes CreateEvent return an empty-key handle.
	FailCreate bool

	// ResolveResult and AckResult are returned for non-empty handles.
	ResolveResult bool
	AckResult     bool

	// OnCall, if set, is invoked with the action name on every call.
	OnCall func(action string)

	next int
}

// NewFakeClient creates a FakeClient whose updates succeed.
func NewFakeClient() *FakeClient {
	return &FakeClient{ResolveResult: true, AckResult: true}
}

// CreateEvent returns a handle with a sequential dedup key.
func (f *FakeClient) CreateEvent(_ context.Context, severity Severity, summary, source string) Handle {
	if f.OnCall != nil {
		f.OnCall(ActionTrigger)
	}
	h := Handle{RoutingKey: "fake", Severity: severity, Summary: summary, Source: source}
	if !f.FailCreate {
		f.next++
		h.DedupKey = fmt.Sprintf("dedup-%d", f.next)
	}
	f.Created = append(f.Created, h)
	return h
}

// Resolve records the handle. Empty handles return false.
func (f *FakeClient) Resolve(_ context.Context, h Handle) bool {
	if f.OnCall != nil {
		f.OnCall(ActionResolve)
	}
	f.Resolved = append(f.Resolved, h)
	return !h.Empty() && f.ResolveResult
}

// Acknowledge records the handle. Empty handles return false.
func (f *FakeClient) Acknowledge(_ context.Context, h Handle) bool {
	if f.OnCall != nil {
		f.OnCall(ActionAcknowledge)
	}
	f.Acknowledged = append(f.Acknowledged, h)
	return !h.Empty() && f.AckResult
}
