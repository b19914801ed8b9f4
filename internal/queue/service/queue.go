// Package service implements the lead queue: one "current" lead backed by a
// forward buffer that is refilled from the lead store without blocking the
// operator.
package service

import (
	"context"
	"strings"
	"sync"

	"ampdialer_backend/internal/crm"
	"ampdialer_backend/internal/events"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/apperr"
	"ampdialer_backend/platform/config"
	"ampdialer_backend/platform/logger"
	"ampdialer_backend/platform/phone"
)

// LeadStore is the queue's port onto the lead store collaborator.
type LeadStore interface {
	ListViews(ctx context.Context, sess session.Session) ([]crm.View, error)
	ListRecords(ctx context.Context, sess session.Session, viewID string, perPage int, sel crm.PageSelector) (crm.RecordPage, error)
}

// RecordWriter covers the record mutations the auto-skip path needs.
type RecordWriter interface {
	UpdateStatus(ctx context.Context, sess session.Session, upd crm.StatusUpdate) error
	CreateNote(ctx context.Context, sess session.Session, note crm.Note) error
}

// Lead is an immutable snapshot of a callable contact, normalized at fetch
// time. The queue never re-fetches an individual lead after listing it.
type Lead struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"` // digits only, >= 10 digits
	Company string `json:"company"`
	Status  string `json:"status"`
	Email   string `json:"email,omitempty"`
}

type paginationMode int

const (
	modeUnknown paginationMode = iota
	modePage
	modeToken
)

// cursor tracks pagination progress for the active view. Once a mode is
// chosen it never switches for the lifetime of that view.
type cursor struct {
	viewID  string
	mode    paginationMode
	page    int
	token   string
	hasMore bool
}

func (c cursor) selector() crm.PageSelector {
	if c.mode == modeToken {
		return crm.PageSelector{PageToken: c.token}
	}
	return crm.PageSelector{Page: c.page}
}

const (
	skipStatus    = "Junk Lead"
	skipNoteTitle = "Dialer Error"
)

// Queue owns one operator's lead buffer and cursor. All state lives on the
// struct; the background prefetch is the only concurrent writer, guarded by mu.
type Queue struct {
	store    LeadStore
	writer   RecordWriter
	bus      events.Bus
	log      *logger.Logger
	operator string

	pageSize      int
	lowWater      int
	defaultViewID string

	mu           sync.Mutex
	leads        []Lead
	index        int
	cur          cursor
	gen          int // bumped on every reset; stale fetches are discarded
	loading      bool
	prefetching  bool
	cachedViewID string

	prefetchWG sync.WaitGroup
}

// New creates a queue for one operator.
func New(store LeadStore, writer RecordWriter, cfg config.QueueConfig, bus events.Bus, log *logger.Logger, operator string) *Queue {
	return &Queue{
		store:         store,
		writer:        writer,
		bus:           bus,
		log:           log,
		operator:      operator,
		pageSize:      cfg.GetQueuePageSize(),
		lowWater:      cfg.GetQueueLowWater(),
		defaultViewID: cfg.GetDefaultViewID(),
	}
}

// Views lists the lead views available to the operator.
func (q *Queue) Views(ctx context.Context, sess session.Session) ([]crm.View, error) {
	return q.store.ListViews(ctx, sess)
}

// LoadView resets the cursor and buffer and fetches the first page for the
// view. An empty viewID walks the resolution order: cached view from this
// session, configured default, then the store's default view. When nothing
// resolves the queue stays empty and a configuration error is returned; the
// UI shows "no current lead" rather than an exception.
func (q *Queue) LoadView(ctx context.Context, sess session.Session, viewID string) error {
	resolved, err := q.resolveViewID(ctx, sess, viewID)
	if err != nil {
		q.reset(cursor{hasMore: false})
		return err
	}

	q.reset(cursor{viewID: resolved, page: 1, hasMore: true})

	if err := q.fetchPage(ctx, sess); err != nil {
		return err
	}

	q.mu.Lock()
	q.cachedViewID = resolved
	buffered := len(q.leads)
	q.mu.Unlock()

	q.log.QueueEvent("view_loaded", resolved, buffered, 0)
	q.bus.Publish(ctx, events.ViewLoaded{
		BaseEvent: events.NewBaseEvent(),
		Operator:  q.operator,
		ViewID:    resolved,
		Buffered:  buffered,
	})
	return nil
}

// SwitchView discards all buffer and cursor state and loads the new view.
func (q *Queue) SwitchView(ctx context.Context, sess session.Session, viewID string) error {
	return q.LoadView(ctx, sess, viewID)
}

func (q *Queue) resolveViewID(ctx context.Context, sess session.Session, viewID string) (string, error) {
	if viewID != "" {
		return viewID, nil
	}

	q.mu.Lock()
	cached := q.cachedViewID
	q.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	if q.defaultViewID != "" {
		return q.defaultViewID, nil
	}

	views, err := q.store.ListViews(ctx, sess)
	if err != nil {
		return "", err
	}
	for _, v := range views {
		if v.Default {
			return v.ID, nil
		}
	}
	if len(views) > 0 {
		return views[0].ID, nil
	}
	return "", apperr.Configuration("no lead view could be resolved")
}

func (q *Queue) reset(c cursor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.leads = nil
	q.index = 0
	q.cur = c
	q.gen++
	q.loading = false
	q.prefetching = false
}

// fetchPage requests up to pageSize records for the active view, normalizes
// them, filters out anything without a dialable phone, and appends the rest
// to the buffer. A failed fetch marks the view exhausted rather than retrying
// against a broken upstream; already-buffered leads are kept.
func (q *Queue) fetchPage(ctx context.Context, sess session.Session) error {
	q.mu.Lock()
	if !q.cur.hasMore {
		q.mu.Unlock()
		return nil
	}
	gen := q.gen
	viewID := q.cur.viewID
	sel := q.cur.selector()
	q.loading = true
	q.mu.Unlock()

	page, err := q.store.ListRecords(ctx, sess, viewID, q.pageSize, sel)

	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.gen {
		// View switched while the fetch was in flight; result belongs to a
		// cursor that no longer exists.
		return nil
	}
	q.loading = false

	if err != nil {
		q.cur.hasMore = false
		q.log.Error("lead page fetch failed", "view_id", viewID, "error", err)
		return err
	}

	for _, r := range page.Records {
		lead, ok := normalizeRecord(r)
		if ok {
			q.leads = append(q.leads, lead)
		}
	}

	more := page.More
	if !page.MoreKnown {
		// Heuristic: a full page implies more may exist. This can over- or
		// under-fetch by one page when a view ends exactly on a boundary.
		more = len(page.Records) == q.pageSize
	}

	if !more {
		q.cur.hasMore = false
		return nil
	}

	switch {
	case page.NextPageToken != "":
		q.cur.mode = modeToken
		q.cur.token = page.NextPageToken
	case q.cur.mode == modeToken:
		// Token mode is sticky for the view; with more records but no new
		// token there is no way to address the next page. Stop here.
		q.cur.hasMore = false
	default:
		q.cur.mode = modePage
		q.cur.page++
	}
	return nil
}

// CurrentLead returns the lead at the current index. A false result while
// Loading() is true means the prefetch has not caught up yet, not that the
// queue is finished.
func (q *Queue) CurrentLead() (Lead, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index >= len(q.leads) {
		return Lead{}, false
	}
	return q.leads[q.index], true
}

// Advance moves past the current lead. The index only moves forward; a passed
// lead is never revisited. When the unconsumed buffer drops below the
// low-water mark and more records exist, a background prefetch is started;
// advancing never waits on it.
func (q *Queue) Advance(ctx context.Context, sess session.Session) {
	q.mu.Lock()
	q.index++
	remaining := len(q.leads) - q.index
	if remaining < 0 {
		remaining = 0
	}
	needFetch := remaining < q.lowWater && q.cur.hasMore && !q.prefetching
	if needFetch {
		q.prefetching = true
		q.prefetchWG.Add(1)
	}
	viewID := q.cur.viewID
	index := q.index
	finished := !q.loading && q.index >= len(q.leads) && !q.cur.hasMore
	q.mu.Unlock()

	q.bus.Publish(ctx, events.QueueAdvanced{
		BaseEvent: events.NewBaseEvent(),
		Operator:  q.operator,
		ViewID:    viewID,
		Index:     index,
		Remaining: remaining,
	})
	if finished {
		q.bus.Publish(ctx, events.QueueExhausted{
			BaseEvent: events.NewBaseEvent(),
			Operator:  q.operator,
			ViewID:    viewID,
		})
	}

	if needFetch {
		bg := context.WithoutCancel(ctx)
		go func() {
			defer q.prefetchWG.Done()
			_ = q.fetchPage(bg, sess) // failure already logged and marks the view exhausted
			q.mu.Lock()
			q.prefetching = false
			q.mu.Unlock()
		}()
	}
}

// Skip marks the current lead as junk with an explanatory note and advances.
// Both writes are best-effort: a write failure is reported but never strands
// the operator on a dead lead.
func (q *Queue) Skip(ctx context.Context, sess session.Session, reason string) (failures []string) {
	lead, ok := q.CurrentLead()
	if !ok {
		return nil
	}

	if err := q.writer.UpdateStatus(ctx, sess, crm.StatusUpdate{LeadID: lead.ID, Status: skipStatus}); err != nil {
		q.log.Error("skip status update failed", "lead_id", lead.ID, "error", err)
		failures = append(failures, "status")
	}
	note := crm.Note{
		LeadID:  lead.ID,
		Title:   skipNoteTitle,
		Content: "Auto-skipped by dialer. Reason: " + reason,
	}
	if err := q.writer.CreateNote(ctx, sess, note); err != nil {
		q.log.Error("skip note failed", "lead_id", lead.ID, "error", err)
		failures = append(failures, "note")
	}

	q.Advance(ctx, sess)
	return failures
}

// Remaining returns the number of unconsumed buffered leads.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	remaining := len(q.leads) - q.index
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Loading reports whether a page fetch is in flight.
func (q *Queue) Loading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loading
}

// Finished reports the terminal queue state: nothing buffered, nothing
// loading, nothing more upstream. Idempotent once reached for a view.
func (q *Queue) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.loading && q.index >= len(q.leads) && !q.cur.hasMore
}

// ViewID returns the active view id, empty when no view is loaded.
func (q *Queue) ViewID() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cur.viewID
}

func normalizeRecord(r crm.Record) (Lead, bool) {
	digits := phone.Digits(r.Phone)
	if !phone.Callable(digits) {
		return Lead{}, false
	}

	name := strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
	if name == "" {
		name = r.FullName
	}
	if name == "" {
		name = "Unknown"
	}

	return Lead{
		ID:      r.ID,
		Name:    name,
		Phone:   digits,
		Company: r.Company,
		Status:  r.LeadStatus,
		Email:   r.Email,
	}, true
}
