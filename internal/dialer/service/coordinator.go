// Package service implements the call session coordinator: it drives one
// outbound call from dial request through confirmed termination, and gates
// disposition logging and queue advancement on a verified hang-up.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ampdialer_backend/internal/crm"
	"ampdialer_backend/internal/events"
	"ampdialer_backend/internal/gateway"
	queueservice "ampdialer_backend/internal/queue/service"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/apperr"
	"ampdialer_backend/platform/config"
	"ampdialer_backend/platform/logger"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// Gateway is the coordinator's port onto the call gateway collaborator.
type Gateway interface {
	PlaceCall(ctx context.Context, sess session.Session, digits string) (string, error)
	HangUp(ctx context.Context, sess session.Session, callID string) error
	ListActiveCalls(ctx context.Context, sess session.Session) (gateway.ActiveCalls, error)
}

// DispositionStore covers the record writes performed after a call ends.
type DispositionStore interface {
	UpdateStatus(ctx context.Context, sess session.Session, upd crm.StatusUpdate) error
	CreateNote(ctx context.Context, sess session.Session, note crm.Note) error
	CreateCallLog(ctx context.Context, sess session.Session, cl crm.CallLog) error
}

// ActiveCall is the record of the one in-flight telephony session.
// At most one exists per operator at any time.
type ActiveCall struct {
	CallID      string    `json:"callId"`
	LeadID      string    `json:"leadId"`
	LeadName    string    `json:"leadName"`
	Destination string    `json:"destination"`
	StartedAt   time.Time `json:"startedAt"`
}

// Disposition is the operator-chosen outcome recorded after a call.
type Disposition struct {
	Status  string
	Subject string
	Note    string
}

// Confirmation values for how the hang-up was verified.
const (
	ConfirmPolled  = "polled"
	ConfirmTimeout = "timeout"
)

// EndReport describes how endCall resolved. Failures lists the disposition
// writes that failed; a non-empty list is reported to the operator but does
// not block queue advancement.
type EndReport struct {
	ConfirmVia string   `json:"confirmVia"`
	Failures   []string `json:"failures,omitempty"`
}

// errStillActive keeps the confirmation poll going while the gateway still
// lists the call.
var errStillActive = errors.New("call still listed as active")

// Coordinator owns one operator's call lifecycle.
type Coordinator struct {
	gw       Gateway
	store    DispositionStore
	bus      events.Bus
	log      *logger.Logger
	operator string

	pollInterval time.Duration
	pollTimeout  time.Duration

	machine *Machine

	mu     sync.Mutex
	active *ActiveCall
	ending bool
}

// NewCoordinator creates a coordinator for one operator, starting idle.
func NewCoordinator(gw Gateway, store DispositionStore, cfg config.CallConfig, bus events.Bus, log *logger.Logger, operator string) *Coordinator {
	return &Coordinator{
		gw:           gw,
		store:        store,
		bus:          bus,
		log:          log,
		operator:     operator,
		pollInterval: cfg.GetHangupPollInterval(),
		pollTimeout:  cfg.GetHangupPollTimeout(),
		machine:      NewMachine(),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return c.machine.State()
}

// Active returns the in-flight call, if any.
func (c *Coordinator) Active() (ActiveCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ActiveCall{}, false
	}
	return *c.active, true
}

// Ready moves an idle coordinator to ready. Called once a view is loaded or
// after a re-auth recovered the session.
func (c *Coordinator) Ready() {
	if c.machine.State() == StateIdle {
		_ = c.machine.Transition(StateReady)
	}
}

// Dial places a call to the lead. It fails fast, without contacting the
// gateway, when the lead has no dialable phone or the session is unusable;
// callers route those to the skip path rather than retrying.
func (c *Coordinator) Dial(ctx context.Context, sess session.Session, lead queueservice.Lead) (ActiveCall, error) {
	if lead.Phone == "" {
		return ActiveCall{}, apperr.Validation("lead has no dialable phone number")
	}
	if err := sess.Validate(); err != nil {
		return ActiveCall{}, err
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ActiveCall{}, apperr.Conflict("a call is already in progress")
	}
	c.mu.Unlock()

	c.Ready()
	if err := c.machine.Transition(StateDialing); err != nil {
		return ActiveCall{}, err
	}

	callID, err := c.gw.PlaceCall(ctx, sess, lead.Phone)
	if err != nil {
		switch apperr.GetKind(err) {
		case apperr.KindUnauthorized:
			c.invalidate(ctx, "call_gateway")
			return ActiveCall{}, err
		case apperr.KindUnreachable:
			_ = c.machine.Transition(StateReady)
			return ActiveCall{}, err
		default:
			_ = c.machine.Transition(StateReady)
			return ActiveCall{}, apperr.Wrap(apperr.KindUpstream, "dial failed", err)
		}
	}

	call := ActiveCall{
		CallID:      callID,
		LeadID:      lead.ID,
		LeadName:    lead.Name,
		Destination: lead.Phone,
		StartedAt:   time.Now(),
	}

	c.mu.Lock()
	c.active = &call
	c.mu.Unlock()
	_ = c.machine.Transition(StateConnected)

	c.log.CallEvent("placed", call.CallID, call.Destination)
	c.bus.Publish(ctx, events.CallPlaced{
		BaseEvent:   events.NewBaseEvent(),
		Operator:    c.operator,
		CallID:      call.CallID,
		LeadID:      call.LeadID,
		Destination: call.Destination,
	})
	return call, nil
}

// EndCall tears down the active call and records its outcome, strictly in
// order: hang up, confirm the call is gone (or time out trying), then persist
// the disposition. A hang-up failure other than "already ended" aborts the
// whole operation with the ActiveCall intact so the operator can retry.
func (c *Coordinator) EndCall(ctx context.Context, sess session.Session, disp Disposition) (EndReport, error) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return EndReport{}, apperr.Validation("no active call to end")
	}
	if c.ending {
		c.mu.Unlock()
		return EndReport{}, apperr.Conflict("end-call already in progress for this call")
	}
	c.ending = true
	call := *c.active
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.ending = false
		c.mu.Unlock()
	}()

	// Step 1: hang up. "Already ended" counts as success; the goal is a dead
	// call and the call is dead. Anything else leaves the call in place.
	if err := c.gw.HangUp(ctx, sess, call.CallID); err != nil && !errors.Is(err, gateway.ErrAlreadyEnded) {
		if apperr.Is(err, apperr.KindUnauthorized) {
			c.invalidate(ctx, "call_gateway")
			return EndReport{}, err
		}
		c.log.Error("hangup failed", "call_id", call.CallID, "error", err)
		return EndReport{}, apperr.Wrap(apperr.KindUpstream, "hangup failed", err)
	}

	// Step 2: the disconnect response is not authoritative; only the
	// active-call listing is. Poll until the call id disappears or the
	// deadline passes. The timeout path is a designed degradation, not an
	// error: a flaky status endpoint must not stall the operator.
	confirmVia := c.confirmDisconnect(ctx, sess, call.CallID)

	_ = c.machine.Transition(StateDispositioning)

	// Step 3: disposition writes, only after step 2 resolved. Independent and
	// best-effort; no atomicity across the three.
	report := EndReport{ConfirmVia: confirmVia}
	report.Failures = c.saveDisposition(ctx, sess, call, disp)

	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
	_ = c.machine.Transition(StateReady)

	c.log.CallEvent("ended", call.CallID, call.Destination)
	c.bus.Publish(ctx, events.CallEnded{
		BaseEvent:  events.NewBaseEvent(),
		Operator:   c.operator,
		CallID:     call.CallID,
		LeadID:     call.LeadID,
		ConfirmVia: confirmVia,
		DurationMS: time.Since(call.StartedAt).Milliseconds(),
	})
	return report, nil
}

func (c *Coordinator) confirmDisconnect(ctx context.Context, sess session.Session, callID string) string {
	backoff := retry.WithMaxDuration(c.pollTimeout, retry.NewConstant(c.pollInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		snapshot, err := c.gw.ListActiveCalls(ctx, sess)
		if err != nil {
			// A failing status endpoint degrades to the timeout fallback.
			c.log.Warn("active-call poll failed", "call_id", callID, "error", err)
			return retry.RetryableError(err)
		}
		if snapshot.Contains(callID) {
			return retry.RetryableError(errStillActive)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("hangup confirmation timed out; proceeding", "call_id", callID)
		return ConfirmTimeout
	}
	return ConfirmPolled
}

func (c *Coordinator) saveDisposition(ctx context.Context, sess session.Session, call ActiveCall, disp Disposition) []string {
	subject := disp.Subject
	if subject == "" {
		subject = "Call with " + call.LeadName
	}

	type write struct {
		name string
		run  func(context.Context) error
	}

	writes := []write{
		{"call_log", func(ctx context.Context) error {
			return c.store.CreateCallLog(ctx, sess, crm.CallLog{
				LeadID:       call.LeadID,
				Subject:      subject,
				StartedAtISO: call.StartedAt.Format(time.RFC3339),
				DurationHHMM: durationHHMM(time.Since(call.StartedAt)),
				Result:       disp.Status,
			})
		}},
	}
	if disp.Note != "" {
		writes = append(writes, write{"note", func(ctx context.Context) error {
			return c.store.CreateNote(ctx, sess, crm.Note{
				LeadID:  call.LeadID,
				Title:   subject,
				Content: disp.Note,
			})
		}})
	}
	if disp.Status != "" {
		writes = append(writes, write{"status", func(ctx context.Context) error {
			return c.store.UpdateStatus(ctx, sess, crm.StatusUpdate{
				LeadID: call.LeadID,
				Status: disp.Status,
			})
		}})
	}

	var (
		mu       sync.Mutex
		failures []string
		g        errgroup.Group
	)
	for _, w := range writes {
		w := w
		g.Go(func() error {
			if err := w.run(ctx); err != nil {
				c.log.Error("disposition write failed", "write", w.name, "lead_id", call.LeadID, "error", err)
				mu.Lock()
				failures = append(failures, w.name)
				mu.Unlock()
			}
			// Failures are collected, not propagated; every write must run.
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

func (c *Coordinator) invalidate(ctx context.Context, source string) {
	c.mu.Lock()
	c.active = nil
	c.mu.Unlock()
	c.machine.ForceIdle()
	c.bus.Publish(ctx, events.SessionInvalidated{
		BaseEvent: events.NewBaseEvent(),
		Operator:  c.operator,
		Source:    source,
	})
}

func durationHHMM(d time.Duration) string {
	totalMinutes := int(d.Round(time.Minute) / time.Minute)
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}
