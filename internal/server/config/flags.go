package config

import (
	"flag"
	"fmt"

	"github.com/dmitrijs2005/streamflow/internal/flagx"
)

// parseFlags overlays the short command-line flags:
//
//	-g string     gRPC bind address
//	-w string     HTTP bind address
//	-d string     PostgreSQL DSN
//	-s string     token signing secret
//	-t duration   token lifetime, e.g. 60m
//	-m string     AMQP URL
//	-a string     auth service gRPC address (dialled by users)
//	-u string     users service gRPC address (dialled by auth)
//	-l string     log level
//
// Other arguments are ignored so that -c/-config can share the list.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-g", "-w", "-d", "-s", "-t", "-m", "-a", "-u", "-l"})

	fs := flag.NewFlagSet("streamflow", flag.ContinueOnError)

	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "gRPC address and port")
	fs.StringVar(&cfg.HTTPAddr, "w", cfg.HTTPAddr, "HTTP address and port")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "token signing secret")
	fs.DurationVar(&cfg.TokenTTL, "t", cfg.TokenTTL, "token lifetime")
	fs.StringVar(&cfg.AMQPURL, "m", cfg.AMQPURL, "AMQP URL")
	fs.StringVar(&cfg.AuthGRPCAddr, "a", cfg.AuthGRPCAddr, "auth service gRPC address")
	fs.StringVar(&cfg.UsersGRPCAddr, "u", cfg.UsersGRPCAddr, "users service gRPC address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
