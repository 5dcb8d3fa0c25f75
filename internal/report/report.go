package report

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"deodexer/internal/job"
	"deodexer/internal/results"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

const bytesPerMB = 1024 * 1024

// Document is the serialized form of a run.
type Document struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	State       string       `json:"state" yaml:"state"`
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	Fault       string       `json:"fault,omitempty" yaml:"fault,omitempty"`
	Summary     Summary      `json:"summary" yaml:"summary"`
	Results     []FileEntry  `json:"results" yaml:"results"`
	Cancelled   []string     `json:"cancelled" yaml:"cancelled"`
	Errors      []ErrorEntry `json:"errors" yaml:"errors"`
}

// Summary carries run totals with durations in seconds.
type Summary struct {
	TotalFiles      int            `json:"total_files" yaml:"total_files"`
	Successful      int            `json:"successful" yaml:"successful"`
	Failed          int            `json:"failed" yaml:"failed"`
	Cancelled       int            `json:"cancelled" yaml:"cancelled"`
	ByStatus        map[string]int `json:"by_status" yaml:"by_status"`
	SuccessRate     float64        `json:"success_rate" yaml:"success_rate"`
	WallTime        float64        `json:"wall_time" yaml:"wall_time"`
	TotalDuration   float64        `json:"total_duration" yaml:"total_duration"`
	AverageDuration float64        `json:"average_duration" yaml:"average_duration"`
	Throughput      float64        `json:"throughput" yaml:"throughput"`
	TotalSizeMB     float64        `json:"total_size_mb" yaml:"total_size_mb"`
}

// FileEntry is one processed file.
type FileEntry struct {
	File        string  `json:"file" yaml:"file"`
	Status      string  `json:"status" yaml:"status"`
	OutputPath  string  `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	Duration    float64 `json:"duration" yaml:"duration"`
	ExitCode    int     `json:"exit_code" yaml:"exit_code"`
	Size        int64   `json:"size" yaml:"size"`
	SHA256      string  `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Diagnostics string  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// ErrorEntry is one non-successful file.
type ErrorEntry struct {
	File   string `json:"file" yaml:"file"`
	Status string `json:"status" yaml:"status"`
	Error  string `json:"error" yaml:"error"`
}

// Input is what a run hands to the report collaborator.
type Input struct {
	RunID     string
	State     string
	Fault     error
	Summary   results.Summary
	Results   []job.Result
	Cancelled []job.SourceFile
}

// Build converts a finished run into a Document. Entries are ordered by path.
func Build(in Input, now time.Time) Document {
	doc := Document{
		RunID:       in.RunID,
		State:       in.State,
		GeneratedAt: now.UTC(),
		Summary:     buildSummary(in.Summary),
		Results:     make([]FileEntry, 0, len(in.Results)),
		Cancelled:   make([]string, 0, len(in.Cancelled)),
		Errors:      []ErrorEntry{},
	}
	if in.Fault != nil {
		doc.Fault = in.Fault.Error()
	}

	sorted := slices.Clone(in.Results)
	slices.SortFunc(sorted, func(a, b job.Result) int { return cmp.Compare(a.File.Path, b.File.Path) })
	for _, res := range sorted {
		doc.Results = append(doc.Results, FileEntry{
			File:        res.File.Path,
			Status:      string(res.Status),
			OutputPath:  res.OutputPath,
			Duration:    res.Elapsed.Seconds(),
			ExitCode:    res.ExitCode,
			Size:        res.File.Size,
			SHA256:      res.File.SHA256,
			Diagnostics: res.Diagnostics,
		})
		if !res.Status.Succeeded() {
			doc.Errors = append(doc.Errors, ErrorEntry{
				File:   res.File.Path,
				Status: string(res.Status),
				Error:  firstLine(res.Diagnostics),
			})
		}
	}
	for _, f := range in.Cancelled {
		doc.Cancelled = append(doc.Cancelled, f.Path)
	}
	slices.Sort(doc.Cancelled)
	return doc
}

func buildSummary(s results.Summary) Summary {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, n := range s.ByStatus {
		byStatus[string(status)] = n
	}
	return Summary{
		TotalFiles:      s.Total,
		Successful:      s.Succeeded,
		Failed:          s.Failed,
		Cancelled:       s.Cancelled,
		ByStatus:        byStatus,
		SuccessRate:     s.SuccessRate,
		WallTime:        s.WallTime.Seconds(),
		TotalDuration:   s.ToolTime.Seconds(),
		AverageDuration: s.AverageElapsed.Seconds(),
		Throughput:      s.Throughput,
		TotalSizeMB:     float64(s.TotalBytes) / bytesPerMB,
	}
}

// FileName returns the report file name for format at time now.
func FileName(format string, now time.Time) string {
	return fmt.Sprintf("deodex_report_%s.%s", now.Format("20060102_150405"), format)
}

// NormalizeFormat maps aliases onto supported format names.
func NormalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
