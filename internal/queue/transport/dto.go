// Package transport defines the queue module's request and response DTOs.
package transport

import "ampdialer_backend/internal/queue/service"

// LoadViewRequest selects the lead view to work. An empty view id lets the
// backend resolve one (cached, configured default, then the store's default).
type LoadViewRequest struct {
	ViewID string `json:"viewId" validate:"omitempty,max=128"`
}

// SkipRequest marks the current lead unworkable and advances past it.
type SkipRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// ViewResponse is one selectable lead view.
type ViewResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// ViewsResponse lists the operator's lead views.
type ViewsResponse struct {
	Items []ViewResponse `json:"items"`
}

// QueueStatusResponse is the widget's one-call picture of the queue.
type QueueStatusResponse struct {
	Lead      *service.Lead `json:"lead,omitempty"`
	ViewID    string        `json:"viewId,omitempty"`
	Remaining int           `json:"remaining"`
	Loading   bool          `json:"loading"`
	Finished  bool          `json:"finished"`
}

// SkipResponse reports the advance plus any best-effort writes that failed.
type SkipResponse struct {
	Failures []string            `json:"failures,omitempty"`
	Queue    QueueStatusResponse `json:"queue"`
}
