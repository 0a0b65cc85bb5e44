package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	users, err := fs.Glob(Users(), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_users.sql", "00002_identity_outbox.sql"}, users)

	auth, err := fs.Glob(Auth(), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_revoked_tokens.sql", "00002_identity_replicas.sql"}, auth)
}
