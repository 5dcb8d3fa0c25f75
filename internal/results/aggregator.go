package results

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"deodexer/internal/job"
)

var (
	// ErrDuplicateResult marks a second outcome for the same file.
	ErrDuplicateResult = errors.New("duplicate result")
	// ErrUnknownFile marks an outcome for a file outside the discovered set.
	ErrUnknownFile = errors.New("unknown file")
)

// Snapshot is a point-in-time copy of the aggregator state.
type Snapshot struct {
	Summary   Summary          `json:"summary" yaml:"summary"`
	Results   []job.Result     `json:"results" yaml:"results"`
	Cancelled []job.SourceFile `json:"cancelled" yaml:"cancelled"`
}

// Aggregator collects results from concurrent workers.
type Aggregator struct {
	mu         sync.RWMutex
	files      map[string]job.SourceFile
	total      int
	recorded   map[string]struct{}
	results    []job.Result
	cancelled  []job.SourceFile
	violations []error
	started    time.Time
	finished   time.Time
	now        func() time.Time
}

// New creates an aggregator expecting exactly the given files.
func New(files []job.SourceFile) *Aggregator {
	index := make(map[string]job.SourceFile, len(files))
	for _, f := range files {
		index[f.ID()] = f
	}
	return &Aggregator{
		files:    index,
		total:    len(index),
		recorded: make(map[string]struct{}, len(index)),
		results:  make([]job.Result, 0, len(index)),
		now:      time.Now,
	}
}

// Start marks the beginning of the run for wall-time accounting.
func (a *Aggregator) Start(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = at
}

// Finish marks the end of the run.
func (a *Aggregator) Finish(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = at
}

// Add records a completed result. A result for an unknown file or a file
// that already has an outcome is rejected, recorded as a violation, and the
// existing entry is left untouched.
func (a *Aggregator) Add(res job.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.admit(res.File); err != nil {
		return err
	}
	a.results = append(a.results, res)
	return nil
}

// AddCancelled records a file that was never started.
func (a *Aggregator) AddCancelled(file job.SourceFile) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.admit(file); err != nil {
		return err
	}
	a.cancelled = append(a.cancelled, file)
	return nil
}

func (a *Aggregator) admit(file job.SourceFile) error {
	id := file.ID()
	if _, ok := a.files[id]; !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownFile, id)
		a.violations = append(a.violations, err)
		return err
	}
	if _, ok := a.recorded[id]; ok {
		err := fmt.Errorf("%w: %s", ErrDuplicateResult, id)
		a.violations = append(a.violations, err)
		return err
	}
	a.recorded[id] = struct{}{}
	return nil
}

// Done reports whether every expected file has an outcome.
func (a *Aggregator) Done() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.recorded) == a.total
}

// Summary derives the current run summary.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Summarize(a.total, a.results, len(a.cancelled), a.wallLocked())
}

// Snapshot copies the current state. Results are ordered by source path so
// repeated snapshots of the same set compare equal.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	results := slices.Clone(a.results)
	cancelled := slices.Clone(a.cancelled)
	summary := Summarize(a.total, a.results, len(a.cancelled), a.wallLocked())
	a.mu.RUnlock()

	slices.SortFunc(results, func(x, y job.Result) int { return strings.Compare(x.File.Path, y.File.Path) })
	slices.SortFunc(cancelled, func(x, y job.SourceFile) int { return strings.Compare(x.Path, y.Path) })
	return Snapshot{Summary: summary, Results: results, Cancelled: cancelled}
}

// Pending returns the expected files that have no outcome yet, in path order.
func (a *Aggregator) Pending() []job.SourceFile {
	a.mu.RLock()
	out := make([]job.SourceFile, 0, a.total-len(a.recorded))
	for id, f := range a.files {
		if _, ok := a.recorded[id]; !ok {
			out = append(out, f)
		}
	}
	a.mu.RUnlock()
	slices.SortFunc(out, func(x, y job.SourceFile) int { return strings.Compare(x.Path, y.Path) })
	return out
}

// Violations returns every rejected Add or AddCancelled call.
func (a *Aggregator) Violations() []error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.violations)
}

func (a *Aggregator) wallLocked() time.Duration {
	if a.started.IsZero() {
		return 0
	}
	end := a.finished
	if end.IsZero() {
		end = a.now()
	}
	return end.Sub(a.started)
}
