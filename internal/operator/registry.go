// Package operator tracks per-operator runtime state. Every operator identity
// (uid@domain) gets its own queue and call coordinator so two agents sharing a
// backend never see each other's buffer or active call.
package operator

import (
	"sync"

	dialerservice "ampdialer_backend/internal/dialer/service"
	"ampdialer_backend/internal/events"
	queueservice "ampdialer_backend/internal/queue/service"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/config"
	"ampdialer_backend/platform/logger"
)

// Runtime bundles the stateful services owned by one operator.
type Runtime struct {
	Queue       *queueservice.Queue
	Coordinator *dialerservice.Coordinator
}

// Store is the registry's port onto the lead store; it covers both the queue's
// reads and the coordinator's disposition writes.
type Store interface {
	queueservice.LeadStore
	queueservice.RecordWriter
	dialerservice.DispositionStore
}

// RuntimeConfig combines the config interfaces a runtime needs.
type RuntimeConfig interface {
	config.QueueConfig
	config.CallConfig
}

// Registry hands out the runtime for an operator, creating it on first use.
// Runtimes are never evicted; the population is bounded by the number of
// agents on the PBX domain.
type Registry struct {
	store Store
	gw    dialerservice.Gateway
	cfg   RuntimeConfig
	bus   events.Bus
	log   *logger.Logger

	mu       sync.Mutex
	runtimes map[string]*Runtime
}

// NewRegistry creates an empty registry.
func NewRegistry(store Store, gw dialerservice.Gateway, cfg RuntimeConfig, bus events.Bus, log *logger.Logger) *Registry {
	return &Registry{
		store:    store,
		gw:       gw,
		cfg:      cfg,
		bus:      bus,
		log:      log,
		runtimes: make(map[string]*Runtime),
	}
}

// For returns the runtime for the session's operator, creating it on demand.
func (r *Registry) For(sess session.Session) *Runtime {
	key := sess.Operator()

	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.runtimes[key]; ok {
		return rt
	}

	rt := &Runtime{
		Queue:       queueservice.New(r.store, r.store, r.cfg, r.bus, r.log, key),
		Coordinator: dialerservice.NewCoordinator(r.gw, r.store, r.cfg, r.bus, r.log, key),
	}
	r.runtimes[key] = rt
	r.log.Info("operator runtime created", "operator", key)
	return rt
}

// Len reports the number of live runtimes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runtimes)
}
