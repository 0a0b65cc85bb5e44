package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{
				"-g", "127.0.0.1:9090", "-w", ":9091", "-d", "db", "-s", "secret", "-t", "90m",
				"-m", "amqp://mq", "-a", "auth:1", "-u", "users:2", "-l", "warn",
			},
			mutate: func(c *Config) {
				c.GRPCAddr = "127.0.0.1:9090"
				c.HTTPAddr = ":9091"
				c.DatabaseDSN = "db"
				c.SecretKey = "secret"
				c.TokenTTL = 90 * time.Minute
				c.AMQPURL = "amqp://mq"
				c.AuthGRPCAddr = "auth:1"
				c.UsersGRPCAddr = "users:2"
				c.LogLevel = "warn"
			},
		},
		{
			name:   "unknown flags are ignored",
			args:   []string{"-x", "1", "-c", "file.json", "-g", ":1"},
			mutate: func(c *Config) { c.GRPCAddr = ":1" },
		},
		{
			name:    "bad duration",
			args:    []string{"-t", "later"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults(ServiceUsers)
			err := parseFlags(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := defaults(ServiceUsers)
			tt.mutate(want)
			assert.Empty(t, cmp.Diff(want, cfg))
		})
	}
}
