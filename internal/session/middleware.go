package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// ContextSessionKey is the gin context key for the operator session.
	ContextSessionKey = "dialerSession"

	headerUID    = "X-Uid"
	headerDomain = "X-Domain"

	errMissingToken    = "missing token"
	errMissingIdentity = "missing uid or domain"
	errExpiredToken    = "session expired"
)

// Middleware extracts the operator session from the request.
// The widget forwards the vendor bearer token plus its PBX identity headers
// on every call; there is nothing to verify locally beyond shape and expiry.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, errMissingToken)
			return
		}

		uid := strings.TrimSpace(c.GetHeader(headerUID))
		domain := strings.TrimSpace(c.GetHeader(headerDomain))
		if uid == "" || domain == "" {
			abortUnauthorized(c, errMissingIdentity)
			return
		}

		sess := New(rawToken, uid, domain)
		if sess.Expired(time.Now()) {
			abortUnauthorized(c, errExpiredToken)
			return
		}

		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

// FromContext extracts the Session from a gin context.
func FromContext(c *gin.Context) (Session, bool) {
	v, ok := c.Get(ContextSessionKey)
	if !ok {
		return Session{}, false
	}
	sess, ok := v.(Session)
	return sess, ok
}

// MustFromContext extracts the Session or aborts with 401.
func MustFromContext(c *gin.Context) (Session, bool) {
	sess, ok := FromContext(c)
	if !ok {
		abortUnauthorized(c, errMissingToken)
		return Session{}, false
	}
	return sess, true
}

func extractBearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
