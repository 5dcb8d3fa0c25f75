package results

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"deodexer/internal/job"
)

func files(n int) []job.SourceFile {
	out := make([]job.SourceFile, n)
	for i := range out {
		out[i] = job.SourceFile{Path: fmt.Sprintf("/in/%03d.odex", i), Size: 10}
	}
	return out
}

func TestAggregatorConcurrentAdds(t *testing.T) {
	input := files(200)
	agg := New(input)

	var wg sync.WaitGroup
	for i, f := range input {
		wg.Add(1)
		go func(i int, f job.SourceFile) {
			defer wg.Done()
			status := job.StatusSuccess
			if i%4 == 0 {
				status = job.StatusTimeout
			}
			if err := agg.Add(job.Result{File: f, Status: status, Elapsed: time.Second}); err != nil {
				t.Errorf("add %s: %v", f.Path, err)
			}
		}(i, f)
	}
	wg.Wait()

	s := agg.Summary()
	if s.Total != 200 || s.Completed != 200 || s.Pending != 0 {
		t.Fatalf("unexpected totals %+v", s)
	}
	if s.ByStatus[job.StatusTimeout] != 50 || s.Succeeded != 150 || s.Failed != 50 {
		t.Fatalf("unexpected breakdown %+v", s.ByStatus)
	}
	if s.AverageElapsed != time.Second {
		t.Fatalf("average = %s", s.AverageElapsed)
	}
	if s.TotalBytes != 2000 {
		t.Fatalf("total bytes = %d", s.TotalBytes)
	}
	if !agg.Done() {
		t.Fatal("expected aggregator to be done")
	}
}

func TestAggregatorRejectsDuplicates(t *testing.T) {
	input := files(2)
	agg := New(input)

	if err := agg.Add(job.Result{File: input[0], Status: job.StatusSuccess}); err != nil {
		t.Fatal(err)
	}
	err := agg.Add(job.Result{File: input[0], Status: job.StatusToolFailure})
	if !errors.Is(err, ErrDuplicateResult) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := agg.AddCancelled(input[0]); !errors.Is(err, ErrDuplicateResult) {
		t.Fatalf("expected duplicate error for cancel, got %v", err)
	}

	snap := agg.Snapshot()
	if len(snap.Results) != 1 || snap.Results[0].Status != job.StatusSuccess {
		t.Fatalf("original result must be kept, got %+v", snap.Results)
	}
	if len(agg.Violations()) != 2 {
		t.Fatalf("expected 2 violations, got %v", agg.Violations())
	}
}

func TestAggregatorRejectsPhantoms(t *testing.T) {
	agg := New(files(1))
	err := agg.Add(job.Result{File: job.SourceFile{Path: "/elsewhere/x.odex"}, Status: job.StatusSuccess})
	if !errors.Is(err, ErrUnknownFile) {
		t.Fatalf("expected unknown file error, got %v", err)
	}
	if s := agg.Summary(); s.Completed != 0 || s.Pending != 1 {
		t.Fatalf("phantom must not count, got %+v", s)
	}
}

func TestAggregatorCancelledAndPending(t *testing.T) {
	input := files(4)
	agg := New(input)
	_ = agg.Add(job.Result{File: input[2], Status: job.StatusSuccess})
	_ = agg.AddCancelled(input[3])

	s := agg.Summary()
	if s.Completed != 1 || s.Cancelled != 1 || s.Pending != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.AllSucceeded() {
		t.Fatal("run with cancelled files must not count as all succeeded")
	}
	pending := agg.Pending()
	if len(pending) != 2 || pending[0].Path != input[0].Path || pending[1].Path != input[1].Path {
		t.Fatalf("unexpected pending %+v", pending)
	}
}

func TestSnapshotIsSortedAndDetached(t *testing.T) {
	input := files(3)
	agg := New(input)
	_ = agg.Add(job.Result{File: input[2], Status: job.StatusSuccess})
	_ = agg.Add(job.Result{File: input[0], Status: job.StatusSuccess})

	snap := agg.Snapshot()
	if snap.Results[0].File.Path != input[0].Path {
		t.Fatalf("snapshot not sorted: %v", snap.Results)
	}
	snap.Results[0].Status = job.StatusIOFailure
	if agg.Summary().ByStatus[job.StatusIOFailure] != 0 {
		t.Fatal("snapshot mutation leaked into aggregator")
	}
}

func TestSummaryWallTimeAndThroughput(t *testing.T) {
	input := files(2)
	agg := New(input)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	agg.Start(start)
	_ = agg.Add(job.Result{File: input[0], Status: job.StatusSuccess})
	_ = agg.Add(job.Result{File: input[1], Status: job.StatusToolFailure})
	agg.Finish(start.Add(4 * time.Second))

	s := agg.Summary()
	if s.WallTime != 4*time.Second {
		t.Fatalf("wall time = %s", s.WallTime)
	}
	if s.Throughput != 0.5 {
		t.Fatalf("throughput = %v", s.Throughput)
	}
	if s.SuccessRate != 50 {
		t.Fatalf("success rate = %v", s.SuccessRate)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(0, nil, 0, 0)
	if !s.AllSucceeded() || s.SuccessRate != 0 || s.Throughput != 0 {
		t.Fatalf("unexpected empty summary %+v", s)
	}
	for _, status := range job.Statuses {
		if _, ok := s.ByStatus[status]; !ok {
			t.Fatalf("missing status %s", status)
		}
	}
}
