// Package logging defines the structured-logging interface used across the
// project and its slog implementation.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are key/value pairs:
//
//	log.Info(ctx, "session unlocked", "user", name)
//
// Passphrases, master secrets and derived passwords must never be passed as
// values.
type Logger interface {
	// Debug logs diagnostics such as site info keys and dropped results.
	Debug(ctx context.Context, msg string, args ...any)

	Info(ctx context.Context, msg string, args ...any)

	// Warn logs unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
