// Package history persists finished runs and their per-file outcomes.
//
// The default backend is an embedded SQLite database; a postgres:// DSN
// selects PostgreSQL instead. Both share one schema applied through
// embedded, ordered migrations.
package history
