package history

import (
	"time"

	"deodexer/internal/job"
)

// StatusCancelled marks file rows for files that never started.
const StatusCancelled = "cancelled"

// Run is one recorded scheduler run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	State      string
	InputDir   string
	OutputDir  string
	APILevel   int
	Workers    int
	Total      int
	Succeeded  int
	Failed     int
	Cancelled  int
	WallTime   time.Duration
	Fault      string
}

// Finished reports whether the run has a recorded end.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// FileRecord is one file row of a run.
type FileRecord struct {
	Path        string
	Status      string
	ExitCode    int
	Elapsed     time.Duration
	Size        int64
	OutputPath  string
	Diagnostics string
}

func recordFromResult(res job.Result) FileRecord {
	return FileRecord{
		Path:        res.File.Path,
		Status:      string(res.Status),
		ExitCode:    res.ExitCode,
		Elapsed:     res.Elapsed,
		Size:        res.File.Size,
		OutputPath:  res.OutputPath,
		Diagnostics: res.Diagnostics,
	}
}
