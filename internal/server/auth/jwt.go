// Package auth mints and verifies the HS256 session tokens shared by all
// streamflow services.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the registered claims (sub, iat, exp, jti) plus the role
// the subject held at issuance. The role claim is informational; services
// authorize with the role resolved from the identity store.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Token is a freshly issued session token and the values it was signed with.
type Token struct {
	Value     string
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs session tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a token for subject valid for the issuer's TTL.
func (i *Issuer) Issue(subject string, r role.Role) (*Token, error) {
	now := i.now().Truncate(time.Second)
	exp := now.Add(i.ttl)
	id := uuid.NewString()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: r.String(),
	})

	value, err := t.SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	return &Token{Value: value, ID: id, Subject: subject, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verifier checks token signature and lifetime. Every component that
// accepts a token goes through the same Verify, so expired tokens are
// rejected identically by interceptors and by logout.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// Verify parses and validates tokenString. Every failure wraps
// common.ErrInvalidToken; expiry additionally wraps common.ErrTokenExpired.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// HashToken returns the ledger key of a token: hex SHA-256 of the exact
// token string. Raw tokens are never persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
