package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/streamflow/internal/flagx"
	"github.com/dmitrijs2005/streamflow/internal/timex"
)

// JSONConfig is a DTO used exclusively for JSON unmarshalling.
type JSONConfig struct {
	AuthURL   string         `json:"auth_url"`
	UsersAddr string         `json:"users_addr"`
	Timeout   timex.Duration `json:"timeout"`
}

// parseJSON overlays cfg with the file named by -c/-config. Keys missing
// from the file keep their current values.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if jc.AuthURL != "" {
		cfg.AuthURL = jc.AuthURL
	}
	if jc.UsersAddr != "" {
		cfg.UsersAddr = jc.UsersAddr
	}
	if jc.Timeout.Duration != 0 {
		cfg.Timeout = jc.Timeout.Duration
	}
	return nil
}
