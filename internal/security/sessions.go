package security

import (
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a session token is malformed, expired, or signed for another issuer/audience.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are the claims of a dashboard session token. TenantID is the tenant the session was issued for.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

// SessionTokens validates (and, with a private key, issues) RS256/ES256 session tokens.
type SessionTokens struct {
	signer   crypto.Signer
	pub      crypto.PublicKey
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionTokens returns a validator for pub. signer may be nil when the process only verifies tokens.
func NewSessionTokens(signer crypto.Signer, pub crypto.PublicKey, issuer, audience string, ttl time.Duration) *SessionTokens {
	if pub == nil && signer != nil {
		pub = signer.Public()
	}
	return &SessionTokens{
		signer:   signer,
		pub:      pub,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue signs a session token for the given identity.
func (s *SessionTokens) Issue(userID, email, role, tenantID string) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, ErrInvalidKey
	}
	var method jwt.SigningMethod
	switch KeyAlg(s.signer.Public()) {
	case "RS256":
		method = jwt.SigningMethodRS256
	case "ES256":
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidKey
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:    email,
		Role:     role,
		TenantID: tenantID,
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(s.signer)
	return token, expiresAt, err
}

// Validate checks signature, expiry, issuer and audience and returns the claims.
// A token without subject or tenant claim is invalid.
func (s *SessionTokens) Validate(token string) (*SessionClaims, error) {
	if s.pub == nil {
		return nil, ErrInvalidKey
	}
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.pub, nil },
		jwt.WithValidMethods([]string{KeyAlg(s.pub)}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
