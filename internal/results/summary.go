package results

import (
	"time"

	"deodexer/internal/job"
)

// Summary is the run-level view over recorded results.
type Summary struct {
	Total       int                `json:"total" yaml:"total"`
	Completed   int                `json:"completed" yaml:"completed"`
	Succeeded   int                `json:"succeeded" yaml:"succeeded"`
	Failed      int                `json:"failed" yaml:"failed"`
	Cancelled   int                `json:"cancelled" yaml:"cancelled"`
	Pending     int                `json:"pending" yaml:"pending"`
	ByStatus    map[job.Status]int `json:"by_status" yaml:"by_status"`
	SuccessRate float64            `json:"success_rate" yaml:"success_rate"`
	// WallTime spans from the run start to its finish (or now while running).
	WallTime time.Duration `json:"wall_time" yaml:"wall_time"`
	// ToolTime is the sum of per-file elapsed times.
	ToolTime       time.Duration `json:"tool_time" yaml:"tool_time"`
	AverageElapsed time.Duration `json:"average_elapsed" yaml:"average_elapsed"`
	// Throughput is completed files per second of wall time.
	Throughput float64 `json:"throughput" yaml:"throughput"`
	TotalBytes int64   `json:"total_bytes" yaml:"total_bytes"`
}

// AllSucceeded reports whether every discovered file reached Success.
func (s Summary) AllSucceeded() bool {
	return s.Total == s.Succeeded
}

// Summarize derives a Summary from a result set. total is the number of
// discovered files; wall is the elapsed run time.
func Summarize(total int, results []job.Result, cancelled int, wall time.Duration) Summary {
	s := Summary{
		Total:     total,
		Completed: len(results),
		Cancelled: cancelled,
		WallTime:  wall,
		ByStatus:  make(map[job.Status]int, len(job.Statuses)),
	}
	for _, status := range job.Statuses {
		s.ByStatus[status] = 0
	}
	for _, res := range results {
		s.ByStatus[res.Status]++
		s.ToolTime += res.Elapsed
		s.TotalBytes += res.File.Size
		if res.Status.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	s.Pending = max(total-s.Completed-s.Cancelled, 0)
	if s.Completed > 0 {
		s.AverageElapsed = s.ToolTime / time.Duration(s.Completed)
		s.SuccessRate = float64(s.Succeeded) / float64(s.Completed) * 100
	}
	if wall > 0 {
		s.Throughput = float64(s.Completed) / wall.Seconds()
	}
	return s
}
