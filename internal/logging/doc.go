// Package logging assembles structured slog loggers and formatting helpers used
// across uploadr.
//
// It owns the console/JSON handlers, the per-run append-only log file, and
// context-aware helpers that tag log lines with run IDs, pass numbers, albums
// and file paths. WarnWithContext and ErrorWithContext enforce the event_type
// and error_hint fields every warning or error must carry. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
