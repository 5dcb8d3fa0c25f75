package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"deodexer/internal/job"
	"deodexer/internal/results"
)

func sampleInput() Input {
	ok := job.Result{
		File:       job.SourceFile{Path: "/in/b.odex", Size: 2 * bytesPerMB},
		Status:     job.StatusSuccess,
		Elapsed:    2 * time.Second,
		OutputPath: "/out/b",
	}
	bad := job.Result{
		File:        job.SourceFile{Path: "/in/a.odex", Size: bytesPerMB},
		Status:      job.StatusTimeout,
		Elapsed:     4 * time.Second,
		ExitCode:    -1,
		Diagnostics: "timed out after 1s\nstderr: slow",
	}
	res := []job.Result{ok, bad}
	cancelled := []job.SourceFile{{Path: "/in/c.odex"}}
	return Input{
		RunID:     "run-1",
		State:     "completed",
		Fault:     errors.New("run aborted: disk full"),
		Summary:   results.Summarize(3, res, len(cancelled), 5*time.Second),
		Results:   res,
		Cancelled: cancelled,
	}
}

func TestBuildDocument(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	doc := Build(sampleInput(), now)

	if doc.Summary.TotalFiles != 3 || doc.Summary.Successful != 1 || doc.Summary.Failed != 1 || doc.Summary.Cancelled != 1 {
		t.Fatalf("unexpected summary %+v", doc.Summary)
	}
	if doc.Summary.TotalSizeMB != 3 {
		t.Fatalf("total size = %v", doc.Summary.TotalSizeMB)
	}
	if doc.Summary.AverageDuration != 3 {
		t.Fatalf("average duration = %v", doc.Summary.AverageDuration)
	}
	if doc.Results[0].File != "/in/a.odex" {
		t.Fatalf("results not sorted: %+v", doc.Results)
	}
	if len(doc.Errors) != 1 || doc.Errors[0].Error != "timed out after 1s" {
		t.Fatalf("unexpected errors %+v", doc.Errors)
	}
	if doc.Fault == "" || doc.Summary.ByStatus["timeout"] != 1 {
		t.Fatalf("fault or status breakdown missing: %+v", doc)
	}
}

func TestEncodeFormats(t *testing.T) {
	doc := Build(sampleInput(), time.Now())

	var js bytes.Buffer
	if err := Encode(&js, doc, "json"); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["run_id"] != "run-1" {
		t.Fatalf("unexpected run id %v", decoded["run_id"])
	}

	var ym bytes.Buffer
	if err := Encode(&ym, doc, "yml"); err != nil {
		t.Fatal(err)
	}
	var fromYAML Document
	if err := yaml.Unmarshal(ym.Bytes(), &fromYAML); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if fromYAML.Summary.TotalFiles != 3 {
		t.Fatalf("yaml summary = %+v", fromYAML.Summary)
	}

	var cs bytes.Buffer
	if err := Encode(&cs, doc, "csv"); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&cs).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[1][1] != "timeout" || rows[1][5] != "timed out after 1s" {
		t.Fatalf("unexpected csv row %v", rows[1])
	}
	if rows[3][1] != "cancelled" {
		t.Fatalf("expected cancelled row, got %v", rows[3])
	}

	if err := Encode(&cs, doc, "xml"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	doc := Build(sampleInput(), now)

	paths, err := WriteAll(dir, doc, []string{"json", "csv"})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %v", paths)
	}
	want := filepath.Join(dir, "deodex_report_20260304_050607.json")
	if paths[0] != want {
		t.Fatalf("path = %q, want %q", paths[0], want)
	}
	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "file,status,duration") {
		t.Fatalf("unexpected csv header: %q", string(data))
	}
}
