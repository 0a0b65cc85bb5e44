package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/streamflow/internal/flagx"
	"github.com/dmitrijs2005/streamflow/internal/timex"
)

// JSONConfig is the file representation of Config. Durations may be
// written as "90s" or as integer nanoseconds. Absent keys leave the
// defaults in place.
type JSONConfig struct {
	GRPCAddr           string         `json:"grpc_addr"`
	HTTPAddr           string         `json:"http_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	TokenTTL           timex.Duration `json:"token_ttl"`
	AMQPURL            string         `json:"amqp_url"`
	Exchange           string         `json:"exchange"`
	ReplicaQueue       string         `json:"replica_queue"`
	AuthGRPCAddr       string         `json:"auth_grpc_addr"`
	UsersGRPCAddr      string         `json:"users_grpc_addr"`
	RevocationTimeout  timex.Duration `json:"revocation_timeout"`
	PeerTimeout        timex.Duration `json:"peer_timeout"`
	PublishTimeout     timex.Duration `json:"publish_timeout"`
	OutboxPollInterval timex.Duration `json:"outbox_poll_interval"`
	OutboxBatchSize    int            `json:"outbox_batch_size"`
	PruneInterval      timex.Duration `json:"prune_interval"`
	LoginRatePerMinute float64        `json:"login_rate_per_minute"`
	LoginBurst         int            `json:"login_burst"`
	TrustedProxies     []string       `json:"trusted_proxies"`
	LogLevel           string         `json:"log_level"`
}

// parseJSON loads the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var c JSONConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.apply(cfg)
	return nil
}

func (c *JSONConfig) apply(cfg *Config) {
	setString(&cfg.GRPCAddr, c.GRPCAddr)
	setString(&cfg.HTTPAddr, c.HTTPAddr)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.SecretKey, c.SecretKey)
	setString(&cfg.AMQPURL, c.AMQPURL)
	setString(&cfg.Exchange, c.Exchange)
	setString(&cfg.ReplicaQueue, c.ReplicaQueue)
	setString(&cfg.AuthGRPCAddr, c.AuthGRPCAddr)
	setString(&cfg.UsersGRPCAddr, c.UsersGRPCAddr)
	setString(&cfg.LogLevel, c.LogLevel)

	if c.TokenTTL.Duration != 0 {
		cfg.TokenTTL = c.TokenTTL.Duration
	}
	if c.RevocationTimeout.Duration != 0 {
		cfg.RevocationTimeout = c.RevocationTimeout.Duration
	}
	if c.PeerTimeout.Duration != 0 {
		cfg.PeerTimeout = c.PeerTimeout.Duration
	}
	if c.PublishTimeout.Duration != 0 {
		cfg.PublishTimeout = c.PublishTimeout.Duration
	}
	if c.TrustedProxies != nil {
		cfg.TrustedProxies = c.TrustedProxies
	}
	if c.OutboxPollInterval.Duration != 0 {
		cfg.OutboxPollInterval = c.OutboxPollInterval.Duration
	}
	if c.PruneInterval.Duration != 0 {
		cfg.PruneInterval = c.PruneInterval.Duration
	}
	if c.OutboxBatchSize != 0 {
		cfg.OutboxBatchSize = c.OutboxBatchSize
	}
	if c.LoginRatePerMinute != 0 {
		cfg.LoginRatePerMinute = c.LoginRatePerMinute
	}
	if c.LoginBurst != 0 {
		cfg.LoginBurst = c.LoginBurst
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
