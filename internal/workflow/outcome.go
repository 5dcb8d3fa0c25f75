package workflow

import (
	"context"

	"deodexer/internal/history"
	"deodexer/internal/job"
	"deodexer/internal/preflight"
	"deodexer/internal/results"
	"deodexer/internal/scheduler"
)

// Process exit codes for a run.
const (
	ExitSuccess     = 0
	ExitFilesFailed = 1
	ExitNotStarted  = 2
	ExitAborted     = 3
)

// Outcome is the end state of Runner.Run.
type Outcome struct {
	RunID           string
	State           scheduler.RunState
	Preflight       preflight.Report
	Discovered      []job.SourceFile
	DiscoveryErrors []error
	Summary         results.Summary
	Results         []job.Result
	Cancelled       []job.SourceFile
	Fault           error
	Interrupted     bool
	ReportPaths     []string
}

// Blocked reports whether preflight prevented scheduling.
func (o Outcome) Blocked() bool {
	return o.Preflight.HasFatal()
}

// ExitCode maps the outcome of a run that started onto the process exit
// code. Callers use ExitNotStarted when Run returns an error.
func (o Outcome) ExitCode() int {
	switch {
	case o.Blocked():
		return ExitNotStarted
	case o.State == scheduler.RunAborted:
		return ExitAborted
	case o.Summary.AllSucceeded():
		return ExitSuccess
	default:
		return ExitFilesFailed
	}
}

// HistoryStore records runs. *history.Store satisfies it.
type HistoryStore interface {
	BeginRun(ctx context.Context, run history.Run) error
	FinishRun(ctx context.Context, run history.Run, results []job.Result, cancelled []job.SourceFile) error
}
