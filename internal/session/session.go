// Package session reads the authenticated caller's session from a request. Sessions are issued by the
// external auth service as signed tokens; this package only verifies them.
package session

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/security"
)

const bearerPrefix = "bearer "

// Session is the authenticated caller. TenantID is the tenant claim the token was issued for.
type Session struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId"`
}

// Provider returns the current session of r. A request without a valid session yields (nil, nil).
type Provider interface {
	Current(r *http.Request) (*Session, error)
}

// Validator verifies a session token.
type Validator interface {
	Validate(token string) (*security.SessionClaims, error)
}

// TokenProvider reads the session token from the Authorization Bearer header, falling back to a cookie.
type TokenProvider struct {
	tokens Validator
	cookie string
	logger *zap.Logger
}

// NewTokenProvider returns a Provider backed by signed session tokens. cookie may be empty to accept only
// the Authorization header.
func NewTokenProvider(tokens Validator, cookie string, logger *zap.Logger) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{tokens: tokens, cookie: cookie, logger: logger}
}

// Current validates the presented token. Missing and invalid tokens both mean "no session".
func (p *TokenProvider) Current(r *http.Request) (*Session, error) {
	token := p.extract(r)
	if token == "" {
		return nil, nil
	}
	claims, err := p.tokens.Validate(token)
	if err != nil {
		p.logger.Debug("session token rejected", zap.String("path", r.URL.Path), zap.Error(err))
		return nil, nil
	}
	return &Session{
		UserID:    claims.Subject,
		UserEmail: claims.Email,
		Role:      claims.Role,
		TenantID:  claims.TenantID,
	}, nil
}

func (p *TokenProvider) extract(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); len(v) > len(bearerPrefix) &&
		strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(v[len(bearerPrefix):])
	}
	if p.cookie == "" {
		return ""
	}
	if c, err := r.Cookie(p.cookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// Static is a Provider that returns a fixed session. Used by tests.
type Static struct {
	Session *Session
	Err     error
}

// Current returns the fixed session.
func (s Static) Current(*http.Request) (*Session, error) {
	return s.Session, s.Err
}
