package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"deodexer/internal/job"
	"deodexer/internal/results"
	"deodexer/internal/scheduler"
	"deodexer/internal/workflow"
)

const maxFailureRows = 25

func renderOutcome(w io.Writer, out workflow.Outcome, colorize bool) {
	lines := renderSectionHeader("Run "+out.RunID, colorize)
	lines = append(lines, renderStatusLine("State", stateKind(out), string(out.State), colorize))
	if out.Fault != nil {
		lines = append(lines, renderStatusLine("Fault", statusError, out.Fault.Error(), colorize))
	}
	if out.Interrupted {
		lines = append(lines, renderStatusLine("Interrupted", statusWarn, "dispatch stopped early", colorize))
	}
	lines = append(lines, summaryLines(out.Summary, colorize)...)
	for _, path := range out.ReportPaths {
		lines = append(lines, renderStatusLine("Report", statusInfo, path, colorize))
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}

	if len(out.Summary.ByStatus) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Status", "Files"}, statusRows(out.Summary), []columnAlignment{alignLeft, alignRight}))
	}
	if rows := failureRows(out.Results); len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"File", "Status", "Exit", "Detail"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
		if extra := countFailures(out.Results) - len(rows); extra > 0 {
			fmt.Fprintf(w, "... and %d more failures (see the report)\n", extra)
		}
	}
}

func stateKind(out workflow.Outcome) statusKind {
	switch {
	case out.State == scheduler.RunAborted:
		return statusError
	case out.Summary.AllSucceeded():
		return statusOK
	default:
		return statusWarn
	}
}

func summaryLines(s results.Summary, colorize bool) []string {
	kind := statusOK
	if s.Failed > 0 || s.Cancelled > 0 {
		kind = statusWarn
	}
	return []string{
		renderStatusLine("Files", statusInfo, fmt.Sprintf("%d discovered, %s", s.Total, humanBytes(s.TotalBytes)), colorize),
		renderStatusLine("Succeeded", kind, fmt.Sprintf("%d (%.1f%%)", s.Succeeded, s.SuccessRate), colorize),
		renderStatusLine("Failed", failKind(s.Failed), strconv.Itoa(s.Failed), colorize),
		renderStatusLine("Cancelled", failKind(s.Cancelled), strconv.Itoa(s.Cancelled), colorize),
		renderStatusLine("Wall time", statusInfo, formatDuration(s.WallTime), colorize),
		renderStatusLine("Average per file", statusInfo, formatDuration(s.AverageElapsed), colorize),
		renderStatusLine("Throughput", statusInfo, fmt.Sprintf("%.2f files/s", s.Throughput), colorize),
	}
}

func failKind(n int) statusKind {
	if n > 0 {
		return statusWarn
	}
	return statusOK
}

func statusRows(s results.Summary) [][]string {
	rows := make([][]string, 0, len(job.Statuses)+1)
	for _, status := range job.Statuses {
		if n := s.ByStatus[status]; n > 0 {
			rows = append(rows, []string{statusLabel(string(status)), strconv.Itoa(n)})
		}
	}
	if s.Cancelled > 0 {
		rows = append(rows, []string{statusLabel("cancelled"), strconv.Itoa(s.Cancelled)})
	}
	return rows
}

func failureRows(list []job.Result) [][]string {
	var rows [][]string
	for _, res := range list {
		if res.Status.Succeeded() {
			continue
		}
		if len(rows) == maxFailureRows {
			break
		}
		rows = append(rows, []string{
			truncate(res.File.RelPath, 48),
			statusLabel(string(res.Status)),
			strconv.Itoa(res.ExitCode),
			truncate(firstLine(res.Diagnostics), 60),
		})
	}
	return rows
}

func countFailures(list []job.Result) int {
	n := 0
	for _, res := range list {
		if !res.Status.Succeeded() {
			n++
		}
	}
	return n
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

func humanBytes(n int64) string {
	return humanize.Bytes(uint64(max(n, 0)))
}

func displayPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
		return rel
	}
	return path
}
