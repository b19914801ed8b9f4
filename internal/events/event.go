// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"ampdialer_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Queue Domain Events
// =============================================================================

// ViewLoaded is published when a lead view is loaded or switched.
type ViewLoaded struct {
	BaseEvent
	Operator string `json:"operator"`
	ViewID   string `json:"viewId"`
	Buffered int    `json:"buffered"`
}

func (e ViewLoaded) EventName() string { return "dialer.queue.view_loaded" }

// QueueAdvanced is published each time the operator moves past a lead.
type QueueAdvanced struct {
	BaseEvent
	Operator  string `json:"operator"`
	ViewID    string `json:"viewId"`
	Index     int    `json:"index"`
	Remaining int    `json:"remaining"`
}

func (e QueueAdvanced) EventName() string { return "dialer.queue.advanced" }

// QueueExhausted is published once a view has no further leads to offer.
type QueueExhausted struct {
	BaseEvent
	Operator string `json:"operator"`
	ViewID   string `json:"viewId"`
}

func (e QueueExhausted) EventName() string { return "dialer.queue.exhausted" }

// =============================================================================
// Call Domain Events
// =============================================================================

// CallPlaced is published when the gateway accepts a dial.
type CallPlaced struct {
	BaseEvent
	Operator    string `json:"operator"`
	CallID      string `json:"callId"`
	LeadID      string `json:"leadId"`
	Destination string `json:"destination"`
}

func (e CallPlaced) EventName() string { return "dialer.call.placed" }

// CallEnded is published after the hang-up confirmation resolves, whether by
// detection or by the timeout fallback.
type CallEnded struct {
	BaseEvent
	Operator   string `json:"operator"`
	CallID     string `json:"callId"`
	LeadID     string `json:"leadId"`
	ConfirmVia string `json:"confirmVia"` // "polled" or "timeout"
	DurationMS int64  `json:"durationMs"`
}

func (e CallEnded) EventName() string { return "dialer.call.ended" }

// SessionInvalidated is published when any collaborator rejects the session.
type SessionInvalidated struct {
	BaseEvent
	Operator string `json:"operator"`
	Source   string `json:"source"` // collaborator that returned 401/403
}

func (e SessionInvalidated) EventName() string { return "dialer.session.invalidated" }
