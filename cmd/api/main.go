package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ampdialer_backend/internal/audit"
	crmclient "ampdialer_backend/internal/crm/client"
	"ampdialer_backend/internal/dialer"
	"ampdialer_backend/internal/events"
	gatewayclient "ampdialer_backend/internal/gateway/client"
	apphttp "ampdialer_backend/internal/http"
	"ampdialer_backend/internal/http/router"
	"ampdialer_backend/internal/operator"
	"ampdialer_backend/internal/queue"
	"ampdialer_backend/platform/config"
	"ampdialer_backend/platform/logger"
	"ampdialer_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Audit recorder subscribes to queue and call events (not HTTP-facing)
	auditRecorder := audit.NewRecorder(log)
	auditRecorder.RegisterHandlers(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Collaborator clients: the CRM lead store and the PBX call gateway.
	// Both are stateless; all per-operator state lives in the registry.
	leadStore := crmclient.New(cfg, log)
	callGateway := gatewayclient.New(cfg, log)
	log.Info("collaborator clients initialized",
		"crmBaseURL", cfg.GetCRMBaseURL(),
		"gatewayBaseURL", cfg.GetGatewayBaseURL(),
	)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	registry := operator.NewRegistry(leadStore, callGateway, cfg, eventBus, log)

	queueModule := queue.NewModule(registry, val)
	dialerModule := dialer.NewModule(registry, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Modules: []apphttp.Module{
			queueModule,
			dialerModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
