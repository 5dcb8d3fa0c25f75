package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"deodexer/internal/job"
	"deodexer/internal/logging"
	"deodexer/internal/results"
)

// ErrAlreadyStarted is returned when Run is called on a used scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// ErrInvalidRun is returned when the run arguments fail validation.
var ErrInvalidRun = errors.New("invalid run")

// Invoker processes exactly one file and always returns a result.
type Invoker interface {
	Invoke(ctx context.Context, spec job.Spec, file job.SourceFile) job.Result
}

// Event reports one file reaching a terminal state. Result is nil for
// cancelled files. Completed counts files with an outcome so far and
// increases by one with every event of a run.
type Event struct {
	File      job.SourceFile
	State     FileState
	Result    *job.Result
	Completed int
	Total     int
}

// ProgressFunc receives events sequentially from a single goroutine.
type ProgressFunc func(Event)

// Options configures a scheduler.
type Options struct {
	Workers int
	// TerminateInFlight forwards cancellation to running tool calls instead of
	// letting them finish.
	TerminateInFlight bool
	Progress          ProgressFunc
	FaultCheck        FaultCheck
}

// Outcome is the structured end state of a run.
type Outcome struct {
	State     RunState
	Summary   results.Summary
	Results   []job.Result
	Cancelled []job.SourceFile
	// Fault is set when the run was Aborted.
	Fault error
	// Interrupted is true when the caller cancelled the run.
	Interrupted bool
}

// Scheduler runs one batch of files through a bounded worker pool.
type Scheduler struct {
	inv    Invoker
	opts   Options
	logger *slog.Logger

	mu      sync.RWMutex
	state   RunState
	files   map[string]FileState
	agg     *results.Aggregator
	cancel  context.CancelFunc
	fault   error
	running int
	peak    int
}

// New constructs a scheduler around inv.
func New(inv Invoker, opts Options, logger *slog.Logger) *Scheduler {
	if opts.FaultCheck == nil {
		opts.FaultCheck = DetectFault
	}
	return &Scheduler{
		inv:    inv,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "scheduler"),
		state:  RunIdle,
	}
}

// Run schedules files against spec and blocks until every file has a result
// or a cancellation. File-level failures never surface as errors; the
// returned error is non-nil only when the run could not start.
func (s *Scheduler) Run(ctx context.Context, files []job.SourceFile, spec job.Spec) (Outcome, error) {
	s.mu.Lock()
	if s.state != RunIdle {
		s.mu.Unlock()
		return Outcome{}, ErrAlreadyStarted
	}
	s.state = RunValidating
	s.mu.Unlock()

	if err := validateRun(files, spec, s.opts.Workers); err != nil {
		s.setState(RunAborted)
		return Outcome{State: RunAborted}, err
	}

	spec = spec.Clone()
	agg := results.New(files)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	states := make(map[string]FileState, len(files))
	for _, f := range files {
		states[f.ID()] = FilePending
	}
	s.mu.Lock()
	s.agg = agg
	s.files = states
	s.cancel = cancel
	s.state = RunScheduling
	s.mu.Unlock()

	started := time.Now()
	agg.Start(started)
	workers := min(s.opts.Workers, max(len(files), 1))
	s.logger.Info("run scheduling",
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
		logging.Bool("terminate_in_flight", s.opts.TerminateInFlight),
	)

	clashes := outputClashes(files, spec)
	dispatch := slices.Clone(files)
	if len(clashes) > 0 {
		dispatch = slices.DeleteFunc(dispatch, func(f job.SourceFile) bool {
			_, ok := clashes[f.ID()]
			return ok
		})
	}

	queue := newWorkQueue(dispatch)
	stopDispatch := context.AfterFunc(runCtx, queue.halt)
	defer stopDispatch()

	invokeCtx := context.WithoutCancel(runCtx)
	if s.opts.TerminateInFlight {
		invokeCtx = runCtx
	}

	events := make(chan Event, len(files))
	collected := make(chan struct{})
	go s.collect(events, len(files), collected)

	for _, f := range files {
		c, ok := clashes[f.ID()]
		if !ok {
			continue
		}
		res := clashResult(f, c, time.Now())
		logging.WarnWithContext(s.logger, "file held back; output path clashes with another file", "output_clash",
			logging.SourceFile(f.Path),
			logging.String("output", c.output),
			logging.String("other", c.owner.Path),
			logging.String(logging.FieldErrorHint, "rename one of the inputs or run them into separate output directories"),
			logging.String(logging.FieldImpact, "file not deodexed"),
		)
		if err := agg.Add(res); err != nil {
			s.logger.Error("clash record rejected", logging.Error(err), logging.SourceFile(f.Path))
			continue
		}
		s.setFileState(f, stateForResult(res))
		events <- Event{File: f, State: stateForResult(res), Result: &res}
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for id := 1; id <= workers; id++ {
		go func(id int) {
			defer wg.Done()
			s.work(runCtx, invokeCtx, id, queue, spec, agg, events)
		}(id)
	}
	wg.Wait()

	for _, f := range queue.remaining() {
		if err := agg.AddCancelled(f); err != nil {
			s.logger.Error("cancel record rejected", logging.Error(err), logging.SourceFile(f.Path))
			continue
		}
		s.setFileState(f, FileCancelled)
		events <- Event{File: f, State: FileCancelled}
	}
	close(events)
	<-collected
	agg.Finish(time.Now())

	final := RunCompleted
	fault := s.Fault()
	if fault != nil {
		final = RunAborted
	}
	s.setState(final)

	snap := agg.Snapshot()
	out := Outcome{
		State:       final,
		Summary:     snap.Summary,
		Results:     snap.Results,
		Cancelled:   snap.Cancelled,
		Fault:       fault,
		Interrupted: runCtx.Err() != nil,
	}
	s.logger.Info("run finished",
		logging.String("state", string(final)),
		logging.Int("succeeded", out.Summary.Succeeded),
		logging.Int("failed", out.Summary.Failed),
		logging.Int("cancelled", out.Summary.Cancelled),
		logging.Duration("wall_time", out.Summary.WallTime),
	)
	return out, nil
}

func (s *Scheduler) work(runCtx, invokeCtx context.Context, id int, q *workQueue, spec job.Spec, agg *results.Aggregator, events chan<- Event) {
	workerCtx := logging.WithWorker(invokeCtx, id)
	logger := logging.WithContext(workerCtx, s.logger)
	guard := func() error {
		if err := runCtx.Err(); err != nil {
			return err
		}
		return checkOutputRoot(spec)
	}

	for {
		file, ok, err := q.take(guard)
		if err != nil && errors.Is(err, ErrFault) {
			s.abort(q, err)
		}
		if !ok {
			s.enterDraining()
			logger.Debug("worker idle")
			return
		}

		s.setFileState(file, FileRunning)
		res := s.inv.Invoke(logging.WithSourceFile(workerCtx, file.Path), spec, file)
		if res.File.ID() != file.ID() {
			res.File = file
		}
		s.setFileState(file, stateForResult(res))
		if err := agg.Add(res); err != nil {
			logging.ErrorWithContext(logger, "result rejected", "result_rejected",
				logging.Error(err),
				logging.SourceFile(file.Path),
			)
			continue
		}
		events <- Event{File: file, State: stateForResult(res), Result: &res}

		if err := s.opts.FaultCheck(spec, res); err != nil {
			s.abort(q, err)
		}
	}
}

// collect delivers events to the progress callback in arrival order.
func (s *Scheduler) collect(events <-chan Event, total int, done chan<- struct{}) {
	defer close(done)
	completed := 0
	for ev := range events {
		completed++
		ev.Completed = completed
		ev.Total = total
		if s.opts.Progress != nil {
			s.opts.Progress(ev)
		}
	}
}

func (s *Scheduler) abort(q *workQueue, err error) {
	q.halt()
	s.mu.Lock()
	first := s.fault == nil
	if first {
		s.fault = err
	}
	s.mu.Unlock()
	if first {
		logging.ErrorWithContext(s.logger, "run aborted; draining in-flight files", "run_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restore the output directory or free disk space, then re-run"),
		)
	}
}

func (s *Scheduler) enterDraining() {
	s.mu.Lock()
	if s.state == RunScheduling {
		s.state = RunDraining
	}
	s.mu.Unlock()
}

func (s *Scheduler) setState(state RunState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setFileState(file job.SourceFile, state FileState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.files[file.ID()]
	s.files[file.ID()] = state
	if state == FileRunning {
		s.running++
		s.peak = max(s.peak, s.running)
	} else if prev == FileRunning {
		s.running--
	}
}

// Cancel requests cancellation of the current run. It reports whether a run
// was in progress.
func (s *Scheduler) Cancel() bool {
	s.mu.RLock()
	cancel := s.cancel
	state := s.state
	s.mu.RUnlock()
	if cancel == nil || state.Terminal() {
		return false
	}
	cancel()
	return true
}

// State returns the current run state.
func (s *Scheduler) State() RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Fault returns the error that aborted the run, if any.
func (s *Scheduler) Fault() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fault
}

// FileStates returns a copy of the per-file states keyed by path.
func (s *Scheduler) FileStates() map[string]FileState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]FileState, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Running returns the number of files currently in flight and the highest
// number observed during the run.
func (s *Scheduler) Running() (current, peak int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running, s.peak
}

// Snapshot returns the live aggregate. It is empty before Run starts.
func (s *Scheduler) Snapshot() results.Snapshot {
	s.mu.RLock()
	agg := s.agg
	s.mu.RUnlock()
	if agg == nil {
		return results.Snapshot{Summary: results.Summarize(0, nil, 0, 0)}
	}
	return agg.Snapshot()
}

func validateRun(files []job.SourceFile, spec job.Spec, workers int) error {
	var problems []string
	if workers < 1 {
		problems = append(problems, fmt.Sprintf("workers must be positive, got %d", workers))
	}
	if strings.TrimSpace(spec.ToolPath) == "" {
		problems = append(problems, "tool path is empty")
	}
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if _, ok := seen[f.ID()]; ok {
			problems = append(problems, fmt.Sprintf("file listed twice: %s", f.ID()))
			continue
		}
		seen[f.ID()] = struct{}{}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRun, strings.Join(problems, "; "))
	}
	return nil
}
