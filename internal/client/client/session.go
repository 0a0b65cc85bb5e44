package client

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is what the client keeps after a successful login.
type Session struct {
	Token     string
	UserID    string
	Role      string
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// newSession reads subject, role and expiry from token. The signature is
// not checked here; only the services hold the key.
func newSession(token string) (*Session, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrMalformedToken)
	}

	s := &Session{Token: token, UserID: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Expired reports whether the session's token has passed its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
