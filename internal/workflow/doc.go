// Package workflow orchestrates one deodex run end to end.
//
// Runner.Run discovers eligible files, gates on preflight findings, takes an
// exclusive lock on the output directory, drives the scheduler, and hands the
// finished result set to the report, history, and notification collaborators.
// The returned Outcome carries everything the CLI needs to render a summary
// and pick an exit code.
//
// Exit codes:
//
//	0  every discovered file succeeded
//	1  at least one file failed or was cancelled
//	2  the run could not start (missing input, fatal preflight finding, lock held)
//	3  the run was aborted by a run-level fault
package workflow
