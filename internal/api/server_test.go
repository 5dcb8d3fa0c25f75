package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deodexer/internal/job"
	"deodexer/internal/results"
)

type fakeRun struct {
	snap      results.Snapshot
	cancelled bool
}

func (f *fakeRun) ID() string {
	return "run-42"
}

func (f *fakeRun) State() string {
	return "scheduling"
}

func (f *fakeRun) Snapshot() results.Snapshot {
	return f.snap
}

func (f *fakeRun) Cancel() bool {
	was := f.cancelled
	f.cancelled = true
	return !was
}

type fakeProvider struct{ run Run }

func (p fakeProvider) Current() Run { return p.run }

func newFakeRun() *fakeRun {
	files := []job.SourceFile{{Path: "/in/a.odex"}, {Path: "/in/b.odex"}, {Path: "/in/c.odex"}}
	agg := results.New(files)
	_ = agg.Add(job.Result{File: files[0], Status: job.StatusSuccess, Elapsed: 1500 * time.Millisecond})
	_ = agg.Add(job.Result{File: files[1], Status: job.StatusTimeout, ExitCode: -1})
	_ = agg.AddCancelled(files[2])
	return &fakeRun{snap: agg.Snapshot()}
}

func do(t *testing.T, h http.Handler, method, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestRunStatus(t *testing.T) {
	srv := NewServer("127.0.0.1:0", fakeProvider{run: newFakeRun()}, nil)
	var status RunStatus
	if code := do(t, srv.Handler(), http.MethodGet, "/v1/run", &status); code != http.StatusOK {
		t.Fatalf("unexpected code %d", code)
	}
	if status.RunID != "run-42" || status.Summary.Total != 3 || status.Summary.Cancelled != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Summary.ByStatus["timeout"] != 1 {
		t.Fatalf("missing status breakdown: %+v", status.Summary.ByStatus)
	}
}

func TestResultsFilter(t *testing.T) {
	srv := NewServer("", fakeProvider{run: newFakeRun()}, nil)

	var all ResultListResponse
	do(t, srv.Handler(), http.MethodGet, "/v1/run/results", &all)
	if len(all.Items) != 2 {
		t.Fatalf("expected 2 results, got %d", len(all.Items))
	}
	if all.Items[0].ElapsedMS != 1500 {
		t.Fatalf("unexpected elapsed %d", all.Items[0].ElapsedMS)
	}

	var timeouts ResultListResponse
	do(t, srv.Handler(), http.MethodGet, "/v1/run/results?status=timeout", &timeouts)
	if len(timeouts.Items) != 1 || timeouts.Items[0].Path != "/in/b.odex" {
		t.Fatalf("unexpected filtered results %+v", timeouts.Items)
	}

	var errResp ErrorResponse
	if code := do(t, srv.Handler(), http.MethodGet, "/v1/run/results?status=bogus", &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestCancelledAndCancel(t *testing.T) {
	run := newFakeRun()
	srv := NewServer("", fakeProvider{run: run}, nil)

	var cancelled CancelledListResponse
	do(t, srv.Handler(), http.MethodGet, "/v1/run/cancelled", &cancelled)
	if len(cancelled.Items) != 1 || cancelled.Items[0] != "/in/c.odex" {
		t.Fatalf("unexpected cancelled %+v", cancelled.Items)
	}

	var resp CancelResponse
	if code := do(t, srv.Handler(), http.MethodPost, "/v1/run/cancel", &resp); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if !resp.Requested || !run.cancelled {
		t.Fatal("cancel was not forwarded to the run")
	}
	if code := do(t, srv.Handler(), http.MethodGet, "/v1/run/cancel", nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", code)
	}
}

func TestNoRunInProgress(t *testing.T) {
	srv := NewServer("", fakeProvider{}, nil)
	var errResp ErrorResponse
	if code := do(t, srv.Handler(), http.MethodGet, "/v1/run", &errResp); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code := do(t, srv.Handler(), http.MethodGet, "/healthz", nil); code != http.StatusOK {
		t.Fatalf("health should be ok, got %d", code)
	}
}
