// Package handler exposes the call session coordinator over HTTP.
package handler

import (
	"net/http"

	"ampdialer_backend/internal/dialer/service"
	"ampdialer_backend/internal/dialer/transport"
	"ampdialer_backend/internal/operator"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/apperr"
	"ampdialer_backend/platform/httpkit"
	"ampdialer_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for dialing and call teardown.
type Handler struct {
	reg *operator.Registry
	val *validator.Validator
}

// New creates a new dialer handler.
func New(reg *operator.Registry, val *validator.Validator) *Handler {
	return &Handler{reg: reg, val: val}
}

// RegisterRoutes mounts the call routes on the given group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/dial", h.Dial)
	g.POST("/end", h.EndCall)
	g.GET("/state", h.State)
}

// Dial places a call to the queue's current lead. The widget routes a 422
// (unreachable destination) to the skip endpoint rather than retrying.
func (h *Handler) Dial(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}
	rt := h.reg.For(sess)

	lead, ok := rt.Queue.CurrentLead()
	if !ok {
		httpkit.HandleError(c, apperr.NotFound("no current lead to dial"))
		return
	}

	call, err := rt.Coordinator.Dial(c.Request.Context(), sess, lead)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.Accepted(c, transport.DialResponse{Call: call})
}

// EndCall hangs up the active call, waits for the gateway to confirm the
// disconnect, and records the disposition. Partial disposition failures come
// back in the 200 body; only a failed hang-up is an error.
func (h *Handler) EndCall(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}

	var req transport.EndCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	rt := h.reg.For(sess)
	report, err := rt.Coordinator.EndCall(c.Request.Context(), sess, service.Disposition{
		Status:  req.Status,
		Subject: req.Subject,
		Note:    req.Note,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.EndCallResponse{
		ConfirmVia: report.ConfirmVia,
		Failures:   report.Failures,
	})
}

// State reports the lifecycle state and the active call, if any.
func (h *Handler) State(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}
	rt := h.reg.For(sess)

	resp := transport.StateResponse{State: rt.Coordinator.State().String()}
	if call, ok := rt.Coordinator.Active(); ok {
		resp.Active = &call
	}
	httpkit.OK(c, resp)
}
