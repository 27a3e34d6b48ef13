package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output.
// Equivalent to log.NewNop(); provided here so test packages do not
// need an extra import for the common case.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
