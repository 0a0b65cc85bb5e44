package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/dmitrijs2005/streamflow/internal/server/auth"
	"github.com/dmitrijs2005/streamflow/internal/server/metrics"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

const defaultRevocationTimeout = time.Second

// RevocationChecker answers whether a token hash is in the revocation
// ledger. It is consulted on every authenticated call.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// IdentityResolver returns the current identity of a subject, including
// soft-deleted ones, or common.ErrorNotFound.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, id string) (*models.User, error)
}

// Request is the transport-independent view of a call.
type Request struct {
	// Authorization is the raw authorization header or metadata value.
	Authorization string
	// Target is the subject the call acts on, used by RuleSelfOrAdmin.
	Target string
	// RequestedRole is the role a registration asks for.
	RequestedRole string
}

type Authorizer struct {
	verifier          *auth.Verifier
	revocations       RevocationChecker
	identities        IdentityResolver
	revocationTimeout time.Duration
	logger            logging.Logger
	metrics           metrics.Recorder
}

type Option func(*Authorizer)

// WithRevocationTimeout bounds each revocation lookup. A lookup that
// times out rejects the call.
func WithRevocationTimeout(d time.Duration) Option {
	return func(a *Authorizer) {
		if d > 0 {
			a.revocationTimeout = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(a *Authorizer) { a.logger = l.With("module", "authz") }
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(a *Authorizer) { a.metrics = rec }
}

func NewAuthorizer(v *auth.Verifier, rc RevocationChecker, ir IdentityResolver, opts ...Option) *Authorizer {
	a := &Authorizer{
		verifier:          v,
		revocations:       rc,
		identities:        ir,
		revocationTimeout: defaultRevocationTimeout,
		logger:            logging.Discard(),
		metrics:           metrics.Nop{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// decision is the terminal state of one pipeline run.
type decision struct {
	principal *Principal
	stage     Stage
	outcome   string
	err       error
}

func allow(p *Principal, outcome string) decision {
	return decision{principal: p, stage: StageAuthorized, outcome: outcome}
}

func deny(p *Principal, stage Stage, outcome string, err error) decision {
	return decision{principal: p, stage: stage, outcome: outcome, err: err}
}

// Authorize runs the pipeline for rule. The returned principal is nil for
// public calls and anonymous registrations. Errors wrap one of
// common.ErrUnauthenticated, common.ErrPermissionDenied,
// common.ErrorNotFound or common.ErrUnavailable.
func (a *Authorizer) Authorize(ctx context.Context, rule Rule, req Request) (*Principal, error) {
	d := a.decide(ctx, rule, req)
	a.metrics.RecordAuthDecision(d.outcome)

	if d.err != nil {
		args := []any{"rule", rule.String(), "stage", d.stage.String(), "outcome", d.outcome}
		if d.principal != nil {
			args = append(args, "subject", d.principal.Subject)
		}
		a.logger.Warn(ctx, "call rejected", args...)
		return nil, d.err
	}
	return d.principal, nil
}

// Authenticate runs the pipeline up to identity resolution, without
// applying any rule.
func (a *Authorizer) Authenticate(ctx context.Context, authorization string) (*Principal, error) {
	return a.Authorize(ctx, RuleAuthenticated, Request{Authorization: authorization})
}

func (a *Authorizer) decide(ctx context.Context, rule Rule, req Request) decision {
	switch rule {
	case RulePublic:
		return allow(nil, "public")
	case RuleRegistration:
		return a.decideRegistration(ctx, req)
	}

	d := a.authenticate(ctx, req.Authorization)
	if d.err != nil {
		return d
	}
	p := d.principal

	switch rule {
	case RuleAuthenticated:
		return allow(p, "authorized")
	case RuleSelfOrAdmin:
		if p.CanActOn(req.Target) {
			return allow(p, "authorized")
		}
	case RuleAdminOnly:
		if p.IsPrivileged() {
			return allow(p, "authorized")
		}
	}
	return deny(p, StageDenied, "permission_denied", common.ErrPermissionDenied)
}

// decideRegistration admits anonymous creation of non-privileged
// identities. Privileged roles need a valid bearer whose resolved role is
// itself privileged.
func (a *Authorizer) decideRegistration(ctx context.Context, req Request) decision {
	privileged := requestsPrivilege(req.RequestedRole)

	if strings.TrimSpace(req.Authorization) == "" {
		if privileged {
			return deny(nil, StageUnauthenticated, "anonymous_privileged", common.ErrUnauthenticated)
		}
		return allow(nil, "anonymous")
	}

	d := a.authenticate(ctx, req.Authorization)
	if d.err != nil {
		return d
	}
	if privileged && !d.principal.IsPrivileged() {
		return deny(d.principal, StageDenied, "permission_denied", common.ErrPermissionDenied)
	}
	return allow(d.principal, "authorized")
}

func (a *Authorizer) authenticate(ctx context.Context, authorization string) decision {
	if strings.TrimSpace(authorization) == "" {
		return deny(nil, StageUnauthenticated, "missing_token", common.ErrUnauthenticated)
	}

	token, ok := ParseBearer(authorization)
	if !ok {
		return deny(nil, StageTokenPresented, "malformed_header", common.ErrUnauthenticated)
	}

	claims, err := a.verifier.Verify(token)
	if err != nil {
		outcome := "invalid_token"
		if errors.Is(err, common.ErrTokenExpired) {
			outcome = "expired_token"
		}
		return deny(nil, StageTokenPresented, outcome, fmt.Errorf("%w: %w", common.ErrUnauthenticated, err))
	}

	hash := auth.HashToken(token)

	revoked, err := a.isRevoked(ctx, hash)
	if err != nil {
		a.logger.Error(ctx, "revocation check failed", "subject", claims.Subject, "error", err)
		return deny(nil, StageTokenValidated, "revocation_unavailable",
			fmt.Errorf("%w: revocation check: %v", common.ErrUnauthenticated, err))
	}
	if revoked {
		return deny(nil, StageTokenValidated, "revoked", fmt.Errorf("%w: %w", common.ErrUnauthenticated, common.ErrRevoked))
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	user, err := a.identities.ResolveIdentity(ctx, claims.Subject)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return deny(nil, StageTokenValidated, "unknown_subject", common.ErrUnauthenticated)
	case err != nil:
		a.logger.Error(ctx, "identity lookup failed", "subject", claims.Subject, "error", err)
		return deny(nil, StageTokenValidated, "identity_unavailable",
			fmt.Errorf("%w: identity lookup: %v", common.ErrUnavailable, err))
	case user.IsDeleted():
		// Deleted after the token was issued: the subject existed for this
		// token, so report it as gone rather than as a bad credential.
		if !user.DeletedAt.Before(issuedAt) {
			return deny(nil, StageTokenValidated, "deleted_subject", common.ErrorNotFound)
		}
		return deny(nil, StageTokenValidated, "unknown_subject", common.ErrUnauthenticated)
	}

	p := &Principal{
		Subject:   user.ID,
		Role:      user.Role,
		TokenID:   claims.ID,
		TokenHash: hash,
		IssuedAt:  issuedAt,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return decision{principal: p, stage: StageIdentityResolved}
}

func (a *Authorizer) isRevoked(ctx context.Context, hash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.revocationTimeout)
	defer cancel()

	type result struct {
		revoked bool
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := a.revocations.IsRevoked(ctx, hash)
		ch <- result{r, err}
	}()

	select {
	case r := <-ch:
		return r.revoked, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// ParseBearer extracts the token of an "Authorization: Bearer <token>"
// value. The scheme is matched case-insensitively.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requestsPrivilege(roleName string) bool {
	r, err := role.Parse(roleName)
	return err == nil && r.IsPrivileged()
}
