// Package client provides the HTTP client for the PBX call gateway.
//
// The gateway speaks a form-encoded v1 API addressed by object/action query
// parameters. Destination formatting is vendor glue and deliberately owned
// here, not by the coordinator.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"ampdialer_backend/internal/gateway"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/apperr"
	"ampdialer_backend/platform/config"
	"ampdialer_backend/platform/logger"
	"ampdialer_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	callPath     = "/pbx/v1/"
	actionCall   = "call"
	actionHangup = "disconnect"
	actionRead   = "read"
	callIDPrefix = "amp-"
)

// alreadyEndedRe matches the gateway's ambiguous refusals for calls that
// ended on the remote side before the hang-up arrived.
var alreadyEndedRe = regexp.MustCompile(`(?i)not\s*found|no\s*active\s*call|already\s*ended|invalid\s*call`)

// Client handles call gateway requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

// New creates a new call gateway client.
func New(cfg config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.GetGatewayTimeout()},
		baseURL:    cfg.GetGatewayBaseURL(),
		log:        log,
	}
}

// PlaceCall asks the gateway to originate a call from the operator's device to
// the destination digits. The call id is generated client-side and returned on
// success; the gateway echoes it in its active-call listing.
func (c *Client) PlaceCall(ctx context.Context, sess session.Session, digits string) (string, error) {
	callID := callIDPrefix + uuid.NewString()

	form := url.Values{}
	form.Set("callid", callID)
	form.Set("uid", sess.UID+"@"+sess.Domain)
	form.Set("destination", formatDestination(digits, sess.Domain))

	status, _, err := c.post(ctx, sess, actionCall, form)
	if err != nil {
		return "", err
	}

	switch {
	case status >= 200 && status < 300:
		return callID, nil
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return "", apperr.Unreachable("gateway rejected the destination").WithOp("place call")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "", apperr.Unauthorized("gateway rejected the session").WithOp("place call")
	default:
		c.log.Error("gateway dial error", "status", status)
		return "", apperr.Upstream(fmt.Sprintf("gateway status %d", status)).WithOp("place call")
	}
}

// HangUp asks the gateway to disconnect a call. gateway.ErrAlreadyEnded is
// returned when the switch reports the call as gone already; callers treat
// that as success.
func (c *Client) HangUp(ctx context.Context, sess session.Session, callID string) error {
	form := url.Values{}
	form.Set("uid", sess.UID+"@"+sess.Domain)
	form.Set("callid", callID)

	status, body, err := c.post(ctx, sess, actionHangup, form)
	if err != nil {
		return err
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound || alreadyEndedRe.MatchString(string(body)):
		return gateway.ErrAlreadyEnded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Unauthorized("gateway rejected the session").WithOp("hang up")
	default:
		c.log.Error("gateway hangup error", "status", status)
		return apperr.Upstream(fmt.Sprintf("gateway status %d", status)).WithOp("hang up")
	}
}

// ListActiveCalls fetches the calls currently active for the operator.
// A malformed listing is preserved raw so callers can still match a call id.
func (c *Client) ListActiveCalls(ctx context.Context, sess session.Session) (gateway.ActiveCalls, error) {
	form := url.Values{}
	form.Set("uid", sess.UID+"@"+sess.Domain)

	status, body, err := c.post(ctx, sess, actionRead, form)
	if err != nil {
		return gateway.ActiveCalls{}, err
	}

	switch {
	case status >= 200 && status < 300:
		var calls []gateway.Call
		if json.Unmarshal(body, &calls) == nil {
			return gateway.ActiveCalls{Calls: calls, Parsed: true}, nil
		}
		return gateway.ActiveCalls{Raw: string(body)}, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return gateway.ActiveCalls{}, apperr.Unauthorized("gateway rejected the session").WithOp("list active calls")
	default:
		c.log.Error("gateway active-calls error", "status", status)
		return gateway.ActiveCalls{}, apperr.Upstream(fmt.Sprintf("gateway status %d", status)).WithOp("list active calls")
	}
}

func (c *Client) post(ctx context.Context, sess session.Session, action string, form url.Values) (int, []byte, error) {
	params := url.Values{}
	params.Set("object", "call")
	params.Set("action", action)
	params.Set("format", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, callPath, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.KindInternal, "failed to build gateway request", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.UpstreamError("call_gateway", action, err)
		return 0, nil, apperr.Wrap(apperr.KindUpstream, "gateway request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.UpstreamError("call_gateway", action, err)
		return 0, nil, apperr.Wrap(apperr.KindUpstream, "gateway response read failed", err)
	}

	return resp.StatusCode, body, nil
}

// formatDestination builds the SIP URI the gateway expects. The prefix digits
// and URI shape changed release-to-release upstream; this is the current one.
func formatDestination(digits, domain string) string {
	return "sip:" + phone.DialDigits(digits) + "@" + domain
}
