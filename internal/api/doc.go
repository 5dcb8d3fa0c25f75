// Package api defines wire-format types and the live HTTP status server for a
// running batch.
//
// # Key Types
//
// RunStatus: run identity, scheduler state, and summary counts.
//
// ResultView: transport form of one job.Result.
//
// # Routes
//
//	GET  /v1/run             current run status
//	GET  /v1/run/results     finished files, optional ?status= filter
//	GET  /v1/run/cancelled   files that never started
//	POST /v1/run/cancel      request cooperative cancellation
//	GET  /healthz            liveness
//
// DTOs use camelCase JSON tags. Durations are reported in milliseconds and
// timestamps use RFC3339 with milliseconds.
package api
