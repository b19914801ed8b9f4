// Package session carries the operator's borrowed telephony session.
// The core never acquires or refreshes credentials itself; the UI shell owns
// the token and the backend only inspects and forwards it.
package session

import (
	"time"

	"ampdialer_backend/platform/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// Session identifies one operator against both collaborators.
// It is borrowed read-only; a 401/403 from any collaborator invalidates it
// wholesale and forces the coordinator back to IDLE.
type Session struct {
	AccessToken string
	UID         string // PBX user, e.g. "104"
	Domain      string // PBX domain, e.g. "acme.example.com"
	ExpiresAt   time.Time // zero when the token carries no readable expiry
}

// Operator returns the uid@domain identity used to key per-operator state.
func (s Session) Operator() string {
	return s.UID + "@" + s.Domain
}

// Validate checks the session carries everything a collaborator call needs.
func (s Session) Validate() error {
	switch {
	case s.AccessToken == "":
		return apperr.Validation("session is missing an access token")
	case s.UID == "":
		return apperr.Validation("session is missing a user id")
	case s.Domain == "":
		return apperr.Validation("session is missing a domain")
	}
	if s.Expired(time.Now()) {
		return apperr.Unauthorized("session has expired")
	}
	return nil
}

// Expired reports whether the session's token expiry, when known, has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// New builds a session from raw credentials, reading the token's expiry
// claim when the token happens to be a JWT. Vendor tokens are opaque by
// contract, so a token that is not a JWT simply has no local expiry and is
// only invalidated by upstream 401/403 responses.
func New(accessToken, uid, domain string) Session {
	return Session{
		AccessToken: accessToken,
		UID:         uid,
		Domain:      domain,
		ExpiresAt:   expiryFromToken(accessToken),
	}
}

func expiryFromToken(token string) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
