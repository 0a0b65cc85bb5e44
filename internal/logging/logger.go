// Package logging defines the structured-logging interface shared by the
// streamflow services and an implementation backed by log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger. Arguments after msg are
// key/value pairs:
//
//	log.Info(ctx, "token revoked", "subject", sub)
//
// Values under credential-like keys are masked by the JSON logger, but
// callers still log subjects and token hashes rather than tokens.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
