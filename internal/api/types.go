package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RunStatus summarizes the current run.
type RunStatus struct {
	RunID   string      `json:"runId"`
	State   string      `json:"state"`
	Summary SummaryView `json:"summary"`
}

// SummaryView is the transport form of results.Summary.
type SummaryView struct {
	Total       int            `json:"total"`
	Completed   int            `json:"completed"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Cancelled   int            `json:"cancelled"`
	Pending     int            `json:"pending"`
	ByStatus    map[string]int `json:"byStatus"`
	SuccessRate float64        `json:"successRate"`
	WallTimeMS  int64          `json:"wallTimeMs"`
	AverageMS   int64          `json:"averageMs"`
	Throughput  float64        `json:"throughput"`
	TotalBytes  int64          `json:"totalBytes"`
}

// ResultView describes one finished file.
type ResultView struct {
	Path        string `json:"path"`
	Status      string `json:"status"`
	ExitCode    int    `json:"exitCode"`
	ElapsedMS   int64  `json:"elapsedMs"`
	StartedAt   string `json:"startedAt,omitempty"`
	FinishedAt  string `json:"finishedAt,omitempty"`
	OutputPath  string `json:"outputPath,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// ResultListResponse wraps finished files.
type ResultListResponse struct {
	Items []ResultView `json:"items"`
}

// CancelledListResponse lists files that were never started.
type CancelledListResponse struct {
	Items []string `json:"items"`
}

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	RunID     string `json:"runId"`
	Requested bool   `json:"requested"`
}

// ErrorResponse is returned for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
