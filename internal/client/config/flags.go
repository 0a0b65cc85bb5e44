package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/streamflow/internal/flagx"
)

// parseFlags populates Config from -a, -u and -t. Other arguments are
// filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-u", "-t"})

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)

	fs.StringVar(&cfg.AuthURL, "a", cfg.AuthURL, "auth service base URL")
	fs.StringVar(&cfg.UsersAddr, "u", cfg.UsersAddr, "users service gRPC address")
	fs.DurationVar(&cfg.Timeout, "t", cfg.Timeout, "request timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
