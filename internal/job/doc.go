// Package job defines the value types shared by every stage of a deodex run.
//
// A SourceFile is produced once by discovery and never changes. A Spec holds
// the per-run tool parameters and is shared read-only by all workers. A
// Result is created exactly once per processed file by the worker that ran
// it and is owned by the aggregator afterwards.
//
// The package also carries the discovery error taxonomy (NotFoundError,
// AccessError) and the output naming rules so the invoker, the skip-existing
// policy, and reporting all agree on where an artifact lives.
package job
