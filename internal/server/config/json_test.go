package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"grpc_addr":             "127.0.0.1:9000",
		"database_dsn":          "postgres://db",
		"secret_key":            "my_secret_key",
		"token_ttl":             "15m",
		"amqp_url":              "amqp://rabbit",
		"exchange":              "identities",
		"replica_queue":         "auth.replica",
		"users_grpc_addr":       "users:50051",
		"revocation_timeout":    int64(500 * time.Millisecond),
		"outbox_poll_interval":  "250ms",
		"peer_timeout":          "2s",
		"publish_timeout":       "3s",
		"trusted_proxies":       []string{"10.0.0.0/8"},
		"login_rate_per_minute": 5.5,
		"login_burst":           3,
	})

	t.Run("overlays present keys", func(t *testing.T) {
		cfg := defaults(ServiceAuth)
		require.NoError(t, parseJSON(cfg, []string{"-c", path}))

		want := defaults(ServiceAuth)
		want.GRPCAddr = "127.0.0.1:9000"
		want.DatabaseDSN = "postgres://db"
		want.SecretKey = "my_secret_key"
		want.TokenTTL = 15 * time.Minute
		want.AMQPURL = "amqp://rabbit"
		want.Exchange = "identities"
		want.ReplicaQueue = "auth.replica"
		want.UsersGRPCAddr = "users:50051"
		want.RevocationTimeout = 500 * time.Millisecond
		want.OutboxPollInterval = 250 * time.Millisecond
		want.PeerTimeout = 2 * time.Second
		want.PublishTimeout = 3 * time.Second
		want.TrustedProxies = []string{"10.0.0.0/8"}
		want.LoginRatePerMinute = 5.5
		want.LoginBurst = 3

		assert.Empty(t, cmp.Diff(want, cfg))
	})

	t.Run("no config flag leaves config unchanged", func(t *testing.T) {
		cfg := defaults(ServiceUsers)
		require.NoError(t, parseJSON(cfg, []string{"-s", "x"}))
		assert.Empty(t, cmp.Diff(defaults(ServiceUsers), cfg))
	})
}
