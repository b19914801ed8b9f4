package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ampdialer_backend/internal/gateway"
	"ampdialer_backend/internal/session"
	"ampdialer_backend/platform/apperr"
	"ampdialer_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGatewayConfig struct {
	baseURL string
}

func (c testGatewayConfig) GetGatewayBaseURL() string        { return c.baseURL }
func (c testGatewayConfig) GetGatewayTimeout() time.Duration { return 2 * time.Second }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(testGatewayConfig{baseURL: srv.URL}, logger.New("test"))
}

func testSession() session.Session {
	return session.Session{AccessToken: "tok-abc", UID: "104", Domain: "acme.example.com"}
}

func TestPlaceCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/pbx/v1/", r.URL.Path)
		assert.Equal(t, "call", q.Get("object"))
		assert.Equal(t, "call", q.Get("action"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "104@acme.example.com", r.PostForm.Get("uid"))
		assert.Equal(t, "sip:12125550001@acme.example.com", r.PostForm.Get("destination"))
		assert.True(t, strings.HasPrefix(r.PostForm.Get("callid"), "amp-"))

		io.WriteString(w, `{"status":"ok"}`)
	})

	callID, err := c.PlaceCall(context.Background(), testSession(), "2125550001")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(callID, "amp-"))
}

func TestPlaceCallRejectedDestination(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := c.PlaceCall(context.Background(), testSession(), "2125550001")
		assert.True(t, apperr.Is(err, apperr.KindUnreachable), "status %d", status)
	}
}

func TestPlaceCallRejectedSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := c.PlaceCall(context.Background(), testSession(), "2125550001")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestHangUp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "disconnect", q.Get("action"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "amp-123", r.PostForm.Get("callid"))

		io.WriteString(w, `{"status":"ok"}`)
	})

	require.NoError(t, c.HangUp(context.Background(), testSession(), "amp-123"))
}

func TestHangUpAlreadyEnded(t *testing.T) {
	t.Run("404", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		err := c.HangUp(context.Background(), testSession(), "amp-123")
		assert.ErrorIs(t, err, gateway.ErrAlreadyEnded)
	})

	t.Run("refusal text", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":"No active call found for callid"}`)
		})
		err := c.HangUp(context.Background(), testSession(), "amp-123")
		assert.ErrorIs(t, err, gateway.ErrAlreadyEnded)
	})
}

func TestHangUpFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":"switch unavailable"}`)
	})
	err := c.HangUp(context.Background(), testSession(), "amp-123")
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestListActiveCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "read", r.URL.Query().Get("action"))
		io.WriteString(w, `[
			{"orig_callid":"amp-123","term_callid":"term-9","by_callid":""},
			{"orig_callid":"other","term_callid":"","by_callid":"amp-456"}
		]`)
	})

	calls, err := c.ListActiveCalls(context.Background(), testSession())
	require.NoError(t, err)
	assert.True(t, calls.Parsed)

	// A call matches on any of its leg ids.
	assert.True(t, calls.Contains("amp-123"))
	assert.True(t, calls.Contains("term-9"))
	assert.True(t, calls.Contains("amp-456"))
	assert.False(t, calls.Contains("amp-789"))
	assert.False(t, calls.Contains(""))
}

func TestListActiveCallsRawFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Some gateway builds wrap the listing in non-JSON chrome.
		io.WriteString(w, `calls: orig_callid=amp-123 state=active`)
	})

	calls, err := c.ListActiveCalls(context.Background(), testSession())
	require.NoError(t, err)
	assert.False(t, calls.Parsed)
	assert.True(t, calls.Contains("amp-123"))
	assert.False(t, calls.Contains("amp-456"))
}

func TestFormatDestination(t *testing.T) {
	assert.Equal(t, "sip:12125550001@acme.example.com", formatDestination("2125550001", "acme.example.com"))
	assert.Equal(t, "sip:12125550001@acme.example.com", formatDestination("12125550001", "acme.example.com"))
	// Digits that fail to parse ride through untouched.
	assert.Equal(t, "sip:000@acme.example.com", formatDestination("000", "acme.example.com"))
}
