package authz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/dmitrijs2005/streamflow/internal/server/auth"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/stretchr/testify/require"
)

var secret = []byte("authz-test-secret")

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
	err     error
	delay   time.Duration
	calls   int
}

func (f *fakeRevocations) IsRevoked(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	f.calls++
	delay, err, revoked := f.delay, f.err, f.revoked[hash]
	f.mu.Unlock()

	if delay > 0 {
		// deliberately ignores ctx, like a stuck peer
		time.Sleep(delay)
	}
	return revoked, err
}

type fakeIdentities struct {
	users map[string]*models.User
	err   error
}

func (f *fakeIdentities) ResolveIdentity(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

type fixture struct {
	authz       *Authorizer
	revocations *fakeRevocations
	identities  *fakeIdentities
	issuer      *auth.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		revocations: &fakeRevocations{revoked: map[string]bool{}},
		identities: &fakeIdentities{users: map[string]*models.User{
			"u-free":  {ID: "u-free", Email: "free@example.com", Role: role.Free, Version: 1},
			"u-other": {ID: "u-other", Email: "other@example.com", Role: role.Premium, Version: 1},
			"u-admin": {ID: "u-admin", Email: "admin@example.com", Role: role.Admin, Version: 1},
		}},
		issuer: auth.NewIssuer(secret, time.Hour),
	}
	f.authz = NewAuthorizer(auth.NewVerifier(secret), f.revocations, f.identities, WithRevocationTimeout(50*time.Millisecond))
	return f
}

// bearer issues a token for subject carrying the subject's stored role.
func (f *fixture) bearer(t *testing.T, subject string) string {
	t.Helper()
	r := role.Free
	if u, ok := f.identities.users[subject]; ok {
		r = u.Role
	}
	tok, err := f.issuer.Issue(subject, r)
	require.NoError(t, err)
	return "Bearer " + tok.Value
}
