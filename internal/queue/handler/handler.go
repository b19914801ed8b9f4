// Package handler exposes the lead queue over HTTP.
package handler

import (
	"net/http"

	"ampdialer_backend/internal/operator"
	"ampdialer_backend/internal/queue/service"
	"ampdialer_backend/internal/queue/transport"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/httpkit"
	"ampdialer_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the lead queue.
type Handler struct {
	reg *operator.Registry
	val *validator.Validator
}

// New creates a new queue handler.
func New(reg *operator.Registry, val *validator.Validator) *Handler {
	return &Handler{reg: reg, val: val}
}

// RegisterRoutes mounts the queue routes on the given group.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/views", h.ListViews)
	g.POST("/view", h.LoadView)
	g.GET("/current", h.Current)
	g.POST("/advance", h.Advance)
	g.POST("/skip", h.Skip)
}

func (h *Handler) ListViews(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}
	rt := h.reg.For(sess)

	views, err := rt.Queue.Views(c.Request.Context(), sess)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	resp := transport.ViewsResponse{Items: make([]transport.ViewResponse, 0, len(views))}
	for _, v := range views {
		resp.Items = append(resp.Items, transport.ViewResponse{ID: v.ID, Name: v.Name, Default: v.Default})
	}
	httpkit.OK(c, resp)
}

func (h *Handler) LoadView(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}

	var req transport.LoadViewRequest
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
	if err := rt.Queue.LoadView(c.Request.Context(), sess, req.ViewID); err != nil {
		httpkit.HandleError(c, err)
		return
	}

	// A loaded view is what makes the coordinator dialable.
	rt.Coordinator.Ready()

	httpkit.OK(c, queueStatus(rt.Queue))
}

func (h *Handler) Current(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}
	httpkit.OK(c, queueStatus(h.reg.For(sess).Queue))
}

func (h *Handler) Advance(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}
	rt := h.reg.For(sess)
	rt.Queue.Advance(c.Request.Context(), sess)
	httpkit.OK(c, queueStatus(rt.Queue))
}

func (h *Handler) Skip(c *gin.Context) {
	sess, ok := session.MustFromContext(c)
	if !ok {
		return
	}

	var req transport.SkipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	rt := h.reg.For(sess)
	failures := rt.Queue.Skip(c.Request.Context(), sess, req.Reason)
	httpkit.OK(c, transport.SkipResponse{
		Failures: failures,
		Queue:    queueStatus(rt.Queue),
	})
}

func queueStatus(q *service.Queue) transport.QueueStatusResponse {
	resp := transport.QueueStatusResponse{
		ViewID:    q.ViewID(),
		Remaining: q.Remaining(),
		Loading:   q.Loading(),
		Finished:  q.Finished(),
	}
	if lead, ok := q.CurrentLead(); ok {
		resp.Lead = &lead
	}
	return resp
}
