// Package audit consumes the dialer's domain events and keeps a per-operator
// activity trail: calls placed and ended, leads worked, views loaded, session
// invalidations. It is the read side of the event bus; publishers never know
// it exists.
package audit

import (
	"context"
	"sync"

	"ampdialer_backend/internal/events"
	"ampdialer_backend/platform/logger"
)

// Activity is the running tally for one operator.
type Activity struct {
	ViewsLoaded         int
	LeadsAdvanced       int
	QueuesExhausted     int
	CallsPlaced         int
	CallsEnded          int
	TimeoutConfirms     int
	SessionsInvalidated int
}

// Recorder subscribes to queue and call events and aggregates them in memory.
type Recorder struct {
	log *logger.Logger

	mu       sync.Mutex
	activity map[string]*Activity
}

// NewRecorder creates an empty recorder.
func NewRecorder(log *logger.Logger) *Recorder {
	return &Recorder{
		log:      log,
		activity: make(map[string]*Activity),
	}
}

// RegisterHandlers subscribes the recorder to every event the dialer publishes.
func (r *Recorder) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ViewLoaded{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ViewLoaded)
		if !ok {
			return nil
		}
		r.touch(e.Operator, func(a *Activity) { a.ViewsLoaded++ })
		return nil
	}))

	bus.Subscribe(events.QueueAdvanced{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.QueueAdvanced)
		if !ok {
			return nil
		}
		r.touch(e.Operator, func(a *Activity) { a.LeadsAdvanced++ })
		return nil
	}))

	bus.Subscribe(events.QueueExhausted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.QueueExhausted)
		if !ok {
			return nil
		}
		r.touch(e.Operator, func(a *Activity) { a.QueuesExhausted++ })
		r.log.QueueEvent("exhausted", e.ViewID, 0, 0)
		return nil
	}))

	bus.Subscribe(events.CallPlaced{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.CallPlaced)
		if !ok {
			return nil
		}
		r.touch(e.Operator, func(a *Activity) { a.CallsPlaced++ })
		return nil
	}))

	bus.Subscribe(events.CallEnded{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.CallEnded)
		if !ok {
			return nil
		}
		r.touch(e.Operator, func(a *Activity) {
			a.CallsEnded++
			if e.ConfirmVia == "timeout" {
				a.TimeoutConfirms++
			}
		})
		r.log.Info("call audit",
			"operator", e.Operator,
			"call_id", e.CallID,
			"lead_id", e.LeadID,
			"confirm_via", e.ConfirmVia,
			"duration_ms", e.DurationMS,
		)
		return nil
	}))

	bus.Subscribe(events.SessionInvalidated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.SessionInvalidated)
		if !ok {
			return nil
		}
		r.touch(e.Operator, func(a *Activity) { a.SessionsInvalidated++ })
		r.log.Warn("session invalidated", "operator", e.Operator, "source", e.Source)
		return nil
	}))
}

// ActivityFor returns a copy of the operator's tally.
func (r *Recorder) ActivityFor(operator string) Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.activity[operator]; ok {
		return *a
	}
	return Activity{}
}

func (r *Recorder) touch(operator string, update func(*Activity)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activity[operator]
	if !ok {
		a = &Activity{}
		r.activity[operator] = a
	}
	update(a)
}
