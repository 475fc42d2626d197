// Package postgres provides a PostgreSQL implementation of store.Store
// using pgx/v5.
//
// Question scripts, answer logs, and extracted data live in JSONB
// columns; conversation writes are fenced with a version-conditioned
// UPDATE and workflow counters use SQL-side increments, so concurrent
// engine instances behave correctly without table locks. A partial
// unique index enforces the one-open-conversation-per-thread invariant
// at the schema level.
package postgres
