// Package transport defines the dialer module's request and response DTOs.
package transport

import "ampdialer_backend/internal/dialer/service"

// EndCallRequest carries the operator-chosen disposition for the active call.
// All fields are optional; an empty status skips the record status write and
// an empty note skips the note write.
type EndCallRequest struct {
	Status  string `json:"status" validate:"omitempty,max=100"`
	Subject string `json:"subject" validate:"omitempty,max=255"`
	Note    string `json:"note" validate:"omitempty,max=2000"`
}

// DialResponse acknowledges an accepted dial. The call leg is still being set
// up on the switch when this is returned, hence 202.
type DialResponse struct {
	Call service.ActiveCall `json:"call"`
}

// EndCallResponse reports how the call ended: how the hang-up was confirmed
// and which best-effort disposition writes, if any, failed.
type EndCallResponse struct {
	ConfirmVia string   `json:"confirmVia"`
	Failures   []string `json:"failures,omitempty"`
}

// StateResponse is the coordinator's current position in the call lifecycle.
type StateResponse struct {
	State  string              `json:"state"`
	Active *service.ActiveCall `json:"active,omitempty"`
}
