package client

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	tok := issue(t, "u-9", role.Admin)

	s, err := newSession(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-9", s.UserID)
	assert.Equal(t, "admin", s.Role)
	assert.False(t, s.Expired(tok.IssuedAt))
	assert.True(t, s.Expired(tok.ExpiresAt))
}

func TestNewSession_Malformed(t *testing.T) {
	_, err := newSession("not-a-jwt")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestSession_NoExpiry(t *testing.T) {
	s := &Session{}
	assert.False(t, s.Expired(time.Now()))
}
