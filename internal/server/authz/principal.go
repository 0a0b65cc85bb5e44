// Package authz authenticates and authorizes calls to the streamflow
// services. Each call runs the same pipeline: bearer extraction, token
// verification, revocation check, identity resolution and the method's
// rule. The result is an immutable Principal handed to the handler.
package authz

import (
	"context"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/role"
)

// Principal is the authenticated caller of one request. Role is the role
// resolved from the identity store at call time, not the token claim.
type Principal struct {
	Subject   string
	Role      role.Role
	TokenID   string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsPrivileged reports whether the caller holds the privileged role.
func (p *Principal) IsPrivileged() bool {
	return p != nil && p.Role.IsPrivileged()
}

// CanActOn reports whether the caller may act on subject id: itself, or
// any subject when privileged.
func (p *Principal) CanActOn(id string) bool {
	return p != nil && (p.Subject == id || p.IsPrivileged())
}

type principalKey struct{}

// NewContext returns a child of ctx carrying p.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached by the interceptor
// or middleware. Anonymous calls have none.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
