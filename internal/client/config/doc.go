// Package config loads runtime configuration for authctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     base URL of the auth service HTTP API
//	-u string     address:port of the users service gRPC endpoint
//	-t duration   per-request timeout
//
// # JSON schema
//
//	{
//	  "auth_url": "http://127.0.0.1:8080",
//	  "users_addr": "127.0.0.1:50051",
//	  "timeout": "10s"
//	}
package config
