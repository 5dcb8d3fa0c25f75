// Package scheduler drives bounded-parallel tool invocations for a run.
//
// A fixed pool of workers pulls files from a shared queue; each worker
// finishes its current file before taking the next, so at most W files are
// Running at once. Cancellation stops dispatch at the next queue pull and
// marks every untouched file Cancelled. A run-level fault (output root gone,
// disk full) aborts dispatch the same way while in-flight files drain.
//
// Run state machine:
//
//	Idle -> Validating -> Scheduling -> Draining -> Completed | Aborted
//
// File state machine:
//
//	Pending -> Running -> Succeeded | Failed
//	Pending -> Cancelled
package scheduler
