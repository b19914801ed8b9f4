// Package dialer provides the call session bounded context module.
package dialer

import (
	"ampdialer_backend/internal/dialer/handler"
	apphttp "ampdialer_backend/internal/http"
	"ampdialer_backend/internal/operator"
	"ampdialer_backend/platform/validator"
)

// Module is the call session module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the dialer module on top of the shared operator registry.
func NewModule(reg *operator.Registry, val *validator.Validator) *Module {
	return &Module{handler: handler.New(reg, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dialer"
}

// RegisterRoutes mounts call routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/call"))
}

var _ apphttp.Module = (*Module)(nil)
