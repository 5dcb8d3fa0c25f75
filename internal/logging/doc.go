// Package logging assembles structured slog loggers and formatting helpers used
// across deodexer.
//
// It owns the console and JSON handlers, the per-run log file that mirrors
// console output as JSON, and context helpers that tag log lines with the run
// ID, worker index, and source file. WarnWithContext and ErrorWithContext keep
// WARN/ERROR lines carrying event_type and error_hint. NewNop provides a
// no-op logger for tests and for constructors handed a nil logger.
package logging
