package api

import (
	"time"

	"deodexer/internal/job"
	"deodexer/internal/results"
)

// FromSummary converts a results.Summary for transport.
func FromSummary(s results.Summary) SummaryView {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, n := range s.ByStatus {
		byStatus[string(status)] = n
	}
	return SummaryView{
		Total:       s.Total,
		Completed:   s.Completed,
		Succeeded:   s.Succeeded,
		Failed:      s.Failed,
		Cancelled:   s.Cancelled,
		Pending:     s.Pending,
		ByStatus:    byStatus,
		SuccessRate: s.SuccessRate,
		WallTimeMS:  s.WallTime.Milliseconds(),
		AverageMS:   s.AverageElapsed.Milliseconds(),
		Throughput:  s.Throughput,
		TotalBytes:  s.TotalBytes,
	}
}

// FromResult converts a job.Result for transport.
func FromResult(res job.Result) ResultView {
	return ResultView{
		Path:        res.File.Path,
		Status:      string(res.Status),
		ExitCode:    res.ExitCode,
		ElapsedMS:   res.Elapsed.Milliseconds(),
		StartedAt:   formatTime(res.StartedAt),
		FinishedAt:  formatTime(res.FinishedAt),
		OutputPath:  res.OutputPath,
		Diagnostics: res.Diagnostics,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
