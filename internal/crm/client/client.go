// Package client provides the HTTP client for the lead store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"ampdialer_backend/internal/crm"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/apperr"
	"ampdialer_backend/platform/config"
	"ampdialer_backend/platform/logger"
)

const (
	viewsPath   = "/crm/v8/settings/custom_views"
	leadsPath   = "/crm/v8/Leads"
	notesPath   = "/crm/v8/Notes"
	callsPath   = "/crm/v8/Calls"
	leadsModule = "Leads"
)

// Client handles lead store requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	leadFields string
	log        *logger.Logger
}

// New creates a new lead store client.
func New(cfg config.CRMConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetCRMTimeout()},
		baseURL:    cfg.GetCRMBaseURL(),
		leadFields: cfg.GetLeadFields(),
		log:        log,
	}
}

type viewsResponse struct {
	CustomViews []struct {
		ID           string `json:"id"`
		DisplayValue string `json:"display_value"`
		DefaultView  bool   `json:"default"`
	} `json:"custom_views"`
}

// ListViews fetches the server-defined lead views.
func (c *Client) ListViews(ctx context.Context, sess session.Session) ([]crm.View, error) {
	params := url.Values{}
	params.Set("module", leadsModule)

	body, err := c.get(ctx, sess, viewsPath, params, "list views")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var payload viewsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "lead store returned an unexpected views payload", err)
	}

	views := make([]crm.View, 0, len(payload.CustomViews))
	for _, v := range payload.CustomViews {
		views = append(views, crm.View{ID: v.ID, Name: v.DisplayValue, Default: v.DefaultView})
	}
	return views, nil
}

type recordsResponse struct {
	Data []crm.Record `json:"data"`
	Info *struct {
		MoreRecords   bool   `json:"more_records"`
		NextPageToken string `json:"next_page_token"`
	} `json:"info"`
}

// ListRecords fetches one page of a view. The selector carries either a page
// number or a continuation token; the store's info block decides which mode
// subsequent fetches use.
func (c *Client) ListRecords(ctx context.Context, sess session.Session, viewID string, perPage int, sel crm.PageSelector) (crm.RecordPage, error) {
	params := url.Values{}
	params.Set("cvid", viewID)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("fields", c.leadFields)

	if sel.PageToken != "" {
		params.Set("page_token", sel.PageToken)
	} else {
		page := sel.Page
		if page < 1 {
			page = 1
		}
		params.Set("page", strconv.Itoa(page))
	}

	body, err := c.get(ctx, sess, leadsPath, params, "list records")
	if err != nil {
		return crm.RecordPage{}, err
	}

	// An empty body means the view has no (further) records.
	if len(body) == 0 {
		return crm.RecordPage{MoreKnown: true, More: false}, nil
	}

	var payload recordsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return crm.RecordPage{}, apperr.Wrap(apperr.KindUpstream, "lead store returned an unexpected records payload", err)
	}

	page := crm.RecordPage{Records: payload.Data}
	if payload.Info != nil {
		page.MoreKnown = true
		page.More = payload.Info.MoreRecords
		page.NextPageToken = payload.Info.NextPageToken
	}
	return page, nil
}

// UpdateStatus changes a lead's status label.
func (c *Client) UpdateStatus(ctx context.Context, sess session.Session, upd crm.StatusUpdate) error {
	payload := map[string]any{
		"data": []map[string]any{{
			"id":          upd.LeadID,
			"Lead_Status": upd.Status,
		}},
	}
	return c.write(ctx, sess, http.MethodPut, leadsPath, payload, "update status")
}

// CreateNote attaches a free-text note to a lead.
func (c *Client) CreateNote(ctx context.Context, sess session.Session, note crm.Note) error {
	payload := map[string]any{
		"data": []map[string]any{{
			"Parent_Id":    note.LeadID,
			"Note_Title":   note.Title,
			"Note_Content": note.Content,
			"$se_module":   leadsModule,
		}},
	}
	return c.write(ctx, sess, http.MethodPost, notesPath, payload, "create note")
}

// CreateCallLog records a completed outbound call against a lead.
//
// Call-log schemas differ per org: the status field has shipped under at least
// two API names, and some orgs reject it entirely. The documented fallback
// list below is tried in order; the caller only learns success or failure.
func (c *Client) CreateCallLog(ctx context.Context, sess session.Session, cl crm.CallLog) error {
	base := map[string]any{
		"Subject":         cl.Subject,
		"Call_Type":       "Outbound",
		"$se_module":      leadsModule,
		"What_Id":         cl.LeadID,
		"Call_Start_Time": cl.StartedAtISO,
		"Call_Duration":   cl.DurationHHMM,
	}

	variants := []map[string]any{
		{"Outbound_Call_Status": "Completed", "Call_Result": cl.Result},
		{"Outgoing_Call_Status": "Completed", "Call_Result": cl.Result},
		{},
	}

	var lastErr error
	for i, extra := range variants {
		record := make(map[string]any, len(base)+len(extra))
		for k, v := range base {
			record[k] = v
		}
		for k, v := range extra {
			record[k] = v
		}

		payload := map[string]any{"data": []map[string]any{record}}
		err := c.write(ctx, sess, http.MethodPost, callsPath, payload, "create call log")
		if err == nil {
			if i > 0 {
				c.log.Debug("call log accepted by fallback shape", "attempt", i+1, "lead_id", cl.LeadID)
			}
			return nil
		}
		if apperr.Is(err, apperr.KindUnauthorized) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) get(ctx context.Context, sess session.Session, path string, params url.Values, op string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to build lead store request", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	req.Header.Set("Accept", "application/json")

	return c.do(req, op)
}

func (c *Client) write(ctx context.Context, sess session.Session, method, path string, payload any, op string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to encode lead store payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to build lead store request", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	_, err = c.do(req, op)
	return err
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.UpstreamError("lead_store", op, err)
		return nil, apperr.Wrap(apperr.KindUpstream, "lead store request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.UpstreamError("lead_store", op, err)
		return nil, apperr.Wrap(apperr.KindUpstream, "lead store response read failed", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperr.Unauthorized("lead store rejected the session").WithOp(op)
	default:
		c.log.Error("lead store request error", "operation", op, "status", resp.StatusCode)
		return nil, apperr.Upstream(fmt.Sprintf("lead store status %d", resp.StatusCode)).WithOp(op)
	}
}
