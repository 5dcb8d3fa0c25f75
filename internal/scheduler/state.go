package scheduler

import "deodexer/internal/job"

// RunState is the global state of a scheduler run.
type RunState string

const (
	RunIdle       RunState = "idle"
	RunValidating RunState = "validating"
	RunScheduling RunState = "scheduling"
	RunDraining   RunState = "draining"
	RunCompleted  RunState = "completed"
	RunAborted    RunState = "aborted"
)

// Terminal reports whether the run has finished.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunAborted
}

// FileState tracks one file through a run.
type FileState string

const (
	FilePending   FileState = "pending"
	FileRunning   FileState = "running"
	FileSucceeded FileState = "succeeded"
	FileFailed    FileState = "failed"
	FileCancelled FileState = "cancelled"
)

// Terminal reports whether the file has an outcome.
func (s FileState) Terminal() bool {
	return s == FileSucceeded || s == FileFailed || s == FileCancelled
}

func stateForResult(res job.Result) FileState {
	if res.Status.Succeeded() {
		return FileSucceeded
	}
	return FileFailed
}
