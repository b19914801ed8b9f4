// Package queue provides the lead queue bounded context module.
package queue

import (
	apphttp "ampdialer_backend/internal/http"
	"ampdialer_backend/internal/operator"
	"ampdialer_backend/internal/queue/handler"
	"ampdialer_backend/platform/validator"
)

// Module is the lead queue module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the queue module on top of the shared operator registry.
func NewModule(reg *operator.Registry, val *validator.Validator) *Module {
	return &Module{handler: handler.New(reg, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "queue"
}

// RegisterRoutes mounts queue routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/queue"))
}

var _ apphttp.Module = (*Module)(nil)
