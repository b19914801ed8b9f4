package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ampdialer_backend/internal/crm"
	"ampdialer_backend/internal/events"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/apperr"
	"ampdialer_backend/platform/config"
	"ampdialer_backend/platform/logger"
)

type listCall struct {
	viewID  string
	perPage int
	sel     crm.PageSelector
}

type fakeStore struct {
	mu    sync.Mutex
	views []crm.View

	pages []crm.RecordPage
	errs  []error // parallel to pages; nil entry means success
	calls []listCall

	statusUpdates []crm.StatusUpdate
	notes         []crm.Note
	statusErr     error
	noteErr       error
}

func (f *fakeStore) ListViews(ctx context.Context, sess session.Session) ([]crm.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views, nil
}

func (f *fakeStore) ListRecords(ctx context.Context, sess session.Session, viewID string, perPage int, sel crm.PageSelector) (crm.RecordPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.calls)
	f.calls = append(f.calls, listCall{viewID: viewID, perPage: perPage, sel: sel})

	if n < len(f.errs) && f.errs[n] != nil {
		return crm.RecordPage{}, f.errs[n]
	}
	if n < len(f.pages) {
		return f.pages[n], nil
	}
	return crm.RecordPage{MoreKnown: true, More: false}, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, sess session.Session, upd crm.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusUpdates = append(f.statusUpdates, upd)
	return f.statusErr
}

func (f *fakeStore) CreateNote(ctx context.Context, sess session.Session, note crm.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note)
	return f.noteErr
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStore) callAt(i int) listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func testSession() session.Session {
	return session.Session{AccessToken: "tok", UID: "104", Domain: "acme.example.com"}
}

func newTestQueue(store *fakeStore, pageSize, lowWater int, defaultViewID string) *Queue {
	log := logger.New("test")
	cfg := &config.Config{QueuePageSize: pageSize, QueueLowWater: lowWater, DefaultViewID: defaultViewID}
	return New(store, store, cfg, events.NewInMemoryBus(log), log, "104@acme.example.com")
}

func records(start, count int) []crm.Record {
	out := make([]crm.Record, 0, count)
	for i := 0; i < count; i++ {
		n := start + i
		out = append(out, crm.Record{
			ID:        fmt.Sprintf("lead-%03d", n),
			FirstName: "Lead",
			LastName:  fmt.Sprintf("Number%03d", n),
			Phone:     fmt.Sprintf("212555%04d", n),
		})
	}
	return out
}

func TestLoadViewFiltersUndialableLeads(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{{
		Records: []crm.Record{
			{ID: "a", FirstName: "Ada", Phone: "(212) 555-0001"},
			{ID: "b", FirstName: "Bob", Phone: "555"},
			{ID: "c", FirstName: "Cat", Phone: ""},
			{ID: "d", FirstName: "Dan", Phone: "+1 212-555-0002"},
		},
		MoreKnown: true,
	}}}
	q := newTestQueue(store, 10, 2, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}

	if got := q.Remaining(); got != 2 {
		t.Fatalf("expected 2 dialable leads buffered, got %d", got)
	}
	lead, ok := q.CurrentLead()
	if !ok {
		t.Fatal("expected a current lead")
	}
	if lead.ID != "a" || lead.Phone != "2125550001" {
		t.Fatalf("unexpected current lead: %+v", lead)
	}
}

func TestLoadViewNormalizesNames(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{{
		Records: []crm.Record{
			{ID: "a", FirstName: "Ada", LastName: "Lovelace", Phone: "2125550001"},
			{ID: "b", FullName: "Grace Hopper", Phone: "2125550002"},
			{ID: "c", Phone: "2125550003"},
		},
		MoreKnown: true,
	}}}
	q := newTestQueue(store, 10, 2, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}

	want := []string{"Ada Lovelace", "Grace Hopper", "Unknown"}
	for i, name := range want {
		lead, ok := q.CurrentLead()
		if !ok {
			t.Fatalf("missing lead at position %d", i)
		}
		if lead.Name != name {
			t.Fatalf("lead %d: expected name %q, got %q", i, name, lead.Name)
		}
		q.Advance(context.Background(), testSession())
	}
}

func TestAdvanceNeverRevisits(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{{Records: records(1, 3), MoreKnown: true}}}
	q := newTestQueue(store, 10, 2, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}

	first, _ := q.CurrentLead()
	q.Advance(context.Background(), testSession())
	second, ok := q.CurrentLead()
	if !ok || second.ID == first.ID {
		t.Fatalf("expected a new lead after advance, got %+v", second)
	}

	q.Advance(context.Background(), testSession())
	q.Advance(context.Background(), testSession())
	if _, ok := q.CurrentLead(); ok {
		t.Fatal("expected no current lead past the end of the buffer")
	}
	if !q.Finished() {
		t.Fatal("expected finished queue")
	}

	// Terminal state is idempotent: advancing past the end changes nothing.
	q.Advance(context.Background(), testSession())
	if !q.Finished() {
		t.Fatal("expected queue to stay finished")
	}
	if _, ok := q.CurrentLead(); ok {
		t.Fatal("expected no lead to reappear")
	}
}

func TestLowWaterTriggersBackgroundPrefetch(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{
		{Records: records(1, 6), MoreKnown: true, More: true},
		{Records: records(7, 6), MoreKnown: true, More: false},
	}}
	q := newTestQueue(store, 6, 3, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}
	if store.callCount() != 1 {
		t.Fatalf("expected 1 fetch after load, got %d", store.callCount())
	}

	// remaining 5, then 4, then 3: all at or above the low-water mark.
	q.Advance(context.Background(), testSession())
	q.Advance(context.Background(), testSession())
	q.Advance(context.Background(), testSession())
	if store.callCount() != 1 {
		t.Fatalf("prefetch fired early: %d fetches", store.callCount())
	}

	// remaining drops to 2 (< 3): prefetch fires.
	q.Advance(context.Background(), testSession())
	q.prefetchWG.Wait()
	if store.callCount() != 2 {
		t.Fatalf("expected prefetch, got %d fetches", store.callCount())
	}

	if got := store.callAt(1).sel.Page; got != 2 {
		t.Fatalf("expected page 2 on the second fetch, got %d", got)
	}
	if q.Remaining() != 8 {
		t.Fatalf("expected 8 leads after prefetch, got %d", q.Remaining())
	}
}

func TestTokenModeIsStickyPerView(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{
		{Records: records(1, 4), MoreKnown: true, More: true, NextPageToken: "tok-1"},
		{Records: records(5, 4), MoreKnown: true, More: true}, // more, but no token
	}}
	q := newTestQueue(store, 4, 3, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}

	q.Advance(context.Background(), testSession())
	q.Advance(context.Background(), testSession())
	q.prefetchWG.Wait()

	if store.callCount() != 2 {
		t.Fatalf("expected 2 fetches, got %d", store.callCount())
	}
	second := store.callAt(1)
	if second.sel.PageToken != "tok-1" {
		t.Fatalf("expected token continuation, got %+v", second.sel)
	}
	if second.sel.Page != 0 {
		t.Fatalf("token mode must not carry a page number, got %d", second.sel.Page)
	}

	// More records reported but no token to address them: the view ends here
	// rather than falling back to page numbers.
	if q.cur.hasMore {
		t.Fatal("expected hasMore=false when token mode has no continuation token")
	}
}

func TestFullPageHeuristicWithoutInfoBlock(t *testing.T) {
	q := newTestQueue(&fakeStore{}, 3, 1, "")

	// Full page, no info block: assume more may exist.
	q.reset(cursor{viewID: "v", page: 1, hasMore: true})
	q.store = &fakeStore{pages: []crm.RecordPage{{Records: records(1, 3)}}}
	if err := q.fetchPage(context.Background(), testSession()); err != nil {
		t.Fatalf("fetchPage: %v", err)
	}
	if !q.cur.hasMore || q.cur.page != 2 {
		t.Fatalf("full page should keep paging: %+v", q.cur)
	}

	// Short page, no info block: the view is done.
	q.reset(cursor{viewID: "v", page: 1, hasMore: true})
	q.store = &fakeStore{pages: []crm.RecordPage{{Records: records(1, 2)}}}
	if err := q.fetchPage(context.Background(), testSession()); err != nil {
		t.Fatalf("fetchPage: %v", err)
	}
	if q.cur.hasMore {
		t.Fatalf("short page should end the view: %+v", q.cur)
	}
}

func TestFailedFetchKeepsBufferAndEndsView(t *testing.T) {
	store := &fakeStore{
		pages: []crm.RecordPage{
			{Records: records(1, 4), MoreKnown: true, More: true},
			{},
		},
		errs: []error{nil, errors.New("boom")},
	}
	q := newTestQueue(store, 4, 3, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}

	q.Advance(context.Background(), testSession())
	q.Advance(context.Background(), testSession())
	q.prefetchWG.Wait()

	// The failed prefetch must not discard what the operator can still work.
	if got := q.Remaining(); got != 2 {
		t.Fatalf("expected remaining buffer intact, got %d", got)
	}
	if q.cur.hasMore {
		t.Fatal("failed fetch must mark the view exhausted")
	}

	q.Advance(context.Background(), testSession())
	q.Advance(context.Background(), testSession())
	if !q.Finished() {
		t.Fatal("expected finished after draining the surviving buffer")
	}
}

func TestViewResolutionOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit id wins", func(t *testing.T) {
		store := &fakeStore{pages: []crm.RecordPage{{MoreKnown: true}}}
		q := newTestQueue(store, 4, 1, "cfg-view")
		if err := q.LoadView(ctx, testSession(), "explicit"); err != nil {
			t.Fatalf("LoadView: %v", err)
		}
		if store.callAt(0).viewID != "explicit" {
			t.Fatalf("expected explicit view, got %q", store.callAt(0).viewID)
		}
	})

	t.Run("configured default", func(t *testing.T) {
		store := &fakeStore{pages: []crm.RecordPage{{MoreKnown: true}}}
		q := newTestQueue(store, 4, 1, "cfg-view")
		if err := q.LoadView(ctx, testSession(), ""); err != nil {
			t.Fatalf("LoadView: %v", err)
		}
		if store.callAt(0).viewID != "cfg-view" {
			t.Fatalf("expected configured view, got %q", store.callAt(0).viewID)
		}
	})

	t.Run("store default flag", func(t *testing.T) {
		store := &fakeStore{
			views: []crm.View{{ID: "v1"}, {ID: "v2", Default: true}},
			pages: []crm.RecordPage{{MoreKnown: true}},
		}
		q := newTestQueue(store, 4, 1, "")
		if err := q.LoadView(ctx, testSession(), ""); err != nil {
			t.Fatalf("LoadView: %v", err)
		}
		if store.callAt(0).viewID != "v2" {
			t.Fatalf("expected store default view, got %q", store.callAt(0).viewID)
		}
	})

	t.Run("first view fallback", func(t *testing.T) {
		store := &fakeStore{
			views: []crm.View{{ID: "v1"}, {ID: "v2"}},
			pages: []crm.RecordPage{{MoreKnown: true}},
		}
		q := newTestQueue(store, 4, 1, "")
		if err := q.LoadView(ctx, testSession(), ""); err != nil {
			t.Fatalf("LoadView: %v", err)
		}
		if store.callAt(0).viewID != "v1" {
			t.Fatalf("expected first view, got %q", store.callAt(0).viewID)
		}
	})

	t.Run("nothing resolvable", func(t *testing.T) {
		q := newTestQueue(&fakeStore{}, 4, 1, "")
		err := q.LoadView(ctx, testSession(), "")
		if !apperr.Is(err, apperr.KindConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
		if _, ok := q.CurrentLead(); ok {
			t.Fatal("expected empty queue when no view resolves")
		}
	})
}

func TestLoadViewCachesResolvedView(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{
		{Records: records(1, 2), MoreKnown: true},
		{Records: records(1, 2), MoreKnown: true},
	}}
	q := newTestQueue(store, 4, 1, "")

	if err := q.LoadView(context.Background(), testSession(), "picked"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}
	// A later empty-id load sticks with the view chosen for this session.
	if err := q.LoadView(context.Background(), testSession(), ""); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if store.callAt(1).viewID != "picked" {
		t.Fatalf("expected cached view id, got %q", store.callAt(1).viewID)
	}
}

func TestSwitchViewReplacesBuffer(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{
		{Records: records(1, 3), MoreKnown: true},
		{Records: records(50, 2), MoreKnown: true},
	}}
	q := newTestQueue(store, 4, 1, "")

	if err := q.LoadView(context.Background(), testSession(), "view-a"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}
	q.Advance(context.Background(), testSession())

	if err := q.SwitchView(context.Background(), testSession(), "view-b"); err != nil {
		t.Fatalf("SwitchView: %v", err)
	}

	lead, ok := q.CurrentLead()
	if !ok || lead.ID != "lead-050" {
		t.Fatalf("expected first lead of the new view, got %+v", lead)
	}
	if q.Remaining() != 2 {
		t.Fatalf("expected old buffer discarded, remaining %d", q.Remaining())
	}
}

func TestSkipMarksJunkAndAdvances(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{{Records: records(1, 2), MoreKnown: true}}}
	q := newTestQueue(store, 4, 1, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}
	first, _ := q.CurrentLead()

	failures := q.Skip(context.Background(), testSession(), "Invalid phone number")
	if len(failures) != 0 {
		t.Fatalf("expected clean skip, got failures %v", failures)
	}

	if len(store.statusUpdates) != 1 || store.statusUpdates[0].Status != skipStatus {
		t.Fatalf("unexpected status updates: %+v", store.statusUpdates)
	}
	if store.statusUpdates[0].LeadID != first.ID {
		t.Fatalf("status update targeted %q, expected %q", store.statusUpdates[0].LeadID, first.ID)
	}
	if len(store.notes) != 1 || store.notes[0].Title != skipNoteTitle {
		t.Fatalf("unexpected notes: %+v", store.notes)
	}

	next, ok := q.CurrentLead()
	if !ok || next.ID == first.ID {
		t.Fatalf("expected skip to advance, got %+v", next)
	}
}

func TestSkipWriteFailuresStillAdvance(t *testing.T) {
	store := &fakeStore{
		pages:     []crm.RecordPage{{Records: records(1, 2), MoreKnown: true}},
		statusErr: errors.New("status write down"),
		noteErr:   errors.New("note write down"),
	}
	q := newTestQueue(store, 4, 1, "")

	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}
	first, _ := q.CurrentLead()

	failures := q.Skip(context.Background(), testSession(), "Invalid phone number")
	if len(failures) != 2 {
		t.Fatalf("expected both writes reported failed, got %v", failures)
	}

	next, ok := q.CurrentLead()
	if !ok || next.ID == first.ID {
		t.Fatal("write failures must never strand the operator on a dead lead")
	}
}

func TestSkipOnEmptyQueueIsNoop(t *testing.T) {
	store := &fakeStore{pages: []crm.RecordPage{{MoreKnown: true}}}
	q := newTestQueue(store, 4, 1, "")
	if err := q.LoadView(context.Background(), testSession(), "view-1"); err != nil {
		t.Fatalf("LoadView: %v", err)
	}

	if failures := q.Skip(context.Background(), testSession(), "nothing here"); failures != nil {
		t.Fatalf("expected noop skip, got %v", failures)
	}
	if len(store.statusUpdates) != 0 || len(store.notes) != 0 {
		t.Fatal("skip on empty queue must not write anything")
	}
}
