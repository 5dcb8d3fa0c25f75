// Package results accumulates per-file outcomes for a run.
//
// The Aggregator is append-only: each discovered file may contribute exactly
// one job.Result or one cancellation. Duplicates and files outside the
// discovered set are rejected and kept as contract violations instead of
// being merged. Summary values are always derived from the recorded set.
package results
