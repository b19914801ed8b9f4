// Package gateway defines the shapes exchanged with the PBX call gateway.
// The gateway is an opaque remote collaborator; only place-call, hang-up and
// the active-call listing the coordinator polls are modeled here.
package gateway

import (
	"errors"
	"strings"
)

// ErrAlreadyEnded reports that a hang-up targeted a call the switch no longer
// knows about. The coordinator treats this as success: the goal of hang-up is
// a dead call, and the call is dead.
var ErrAlreadyEnded = errors.New("call already ended")

// Call is one entry of the gateway's active-call listing. A single logical
// call shows up with distinct ids per leg, so matching checks all three.
type Call struct {
	OrigCallID string `json:"orig_callid"`
	TermCallID string `json:"term_callid"`
	ByCallID   string `json:"by_callid"`
}

// Matches reports whether this entry belongs to the given call id.
func (c Call) Matches(callID string) bool {
	if callID == "" {
		return false
	}
	return c.OrigCallID == callID || c.TermCallID == callID || c.ByCallID == callID
}

// ActiveCalls is one snapshot of the gateway's active-call listing.
// The endpoint does not always return well-formed JSON; when parsing fails
// the raw body is kept so a substring check can still answer "is it gone".
type ActiveCalls struct {
	Calls  []Call
	Raw    string
	Parsed bool
}

// Contains reports whether the snapshot still lists the given call id.
func (a ActiveCalls) Contains(callID string) bool {
	if callID == "" {
		return false
	}
	if !a.Parsed {
		return strings.Contains(a.Raw, callID)
	}
	for _, c := range a.Calls {
		if c.Matches(callID) {
			return true
		}
	}
	return false
}
