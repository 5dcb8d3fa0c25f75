package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deodexer/internal/api"
	"deodexer/internal/config"
	"deodexer/internal/deps"
	"deodexer/internal/history"
	"deodexer/internal/invoker"
	"deodexer/internal/locator"
	"deodexer/internal/logging"
	"deodexer/internal/notifications"
	"deodexer/internal/preflight"
	"deodexer/internal/report"
	"deodexer/internal/results"
	"deodexer/internal/scheduler"
	"deodexer/internal/staging"
)

// Option customizes a Runner.
type Option func(*Runner)

// WithInvoker replaces the process-spawning invoker.
func WithInvoker(inv scheduler.Invoker) Option {
	return func(r *Runner) { r.invoker = inv }
}

// WithNotifier replaces the notification service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(r *Runner) { r.notifier = svc }
}

// WithHistory records runs in store instead of opening the configured DSN.
func WithHistory(store HistoryStore) Option {
	return func(r *Runner) { r.store = store }
}

// WithProgress receives every scheduler event after the runner's own
// bookkeeping.
func WithProgress(fn scheduler.ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithProber replaces the runtime version prober used by preflight.
func WithProber(p deps.RuntimeProber) Option {
	return func(r *Runner) { r.prober = p }
}

// WithClock overrides the time source for report names and history rows.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes deodex runs for one configuration. A Runner may run
// several batches sequentially; the output lock rejects concurrent ones.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	invoker  scheduler.Invoker
	notifier notifications.Service
	store    HistoryStore
	progress scheduler.ProgressFunc
	prober   deps.RuntimeProber
	now      func() time.Time

	mu      sync.RWMutex
	current *runHandle
}

// NewRunner constructs a Runner for cfg.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.invoker == nil {
		r.invoker = invoker.New(logger)
	}
	return r
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Current returns the active run for the status API, or nil when idle.
func (r *Runner) Current() api.Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil
	}
	return r.current
}

// Cancel requests cancellation of the active run.
func (r *Runner) Cancel() bool {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h == nil {
		return false
	}
	return h.Cancel()
}

// Run performs discovery, preflight, scheduling, and reporting for one batch.
// A non-nil error means the run could not start; Outcome still carries what
// was learned before the failure, including preflight findings.
func (r *Runner) Run(ctx context.Context, runID string) (Outcome, error) {
	if strings.TrimSpace(runID) == "" {
		runID = NewRunID()
	}
	out := Outcome{RunID: runID, State: scheduler.RunIdle}
	if err := r.cfg.ValidateRun(); err != nil {
		return out, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	spec := r.cfg.JobSpec()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	handle := newRunHandle(runID, cancel)
	r.setCurrent(handle)
	defer r.clearCurrent(handle)

	notifier, closeNotifier := r.notifications(logger)
	defer closeNotifier()

	handle.setPhase("discovering")
	loc := locator.New(locator.Options{
		Extensions: r.cfg.Tool.Extensions,
		MaxDepth:   r.cfg.Workflow.MaxDepth,
		Inspect:    true,
		Now:        r.now,
	}, logger)
	files, diagnostics, err := loc.Collect(runCtx, spec.InputRoot)
	out.Discovered = files
	out.DiscoveryErrors = diagnostics
	if err != nil {
		r.publish(ctx, notifier, notifications.EventRunFailed, notifications.Payload{"run_id": runID, "error": err.Error()})
		return out, fmt.Errorf("discover input files: %w", err)
	}
	for _, diag := range diagnostics {
		logging.WarnWithContext(logger, "input path skipped", "discovery_access",
			logging.Error(diag),
			logging.String(logging.FieldImpact, "files below this path are not processed"),
			logging.String(logging.FieldErrorHint, "check permissions on the input tree"),
		)
	}
	logger.Info("discovery complete",
		logging.Int("files", len(files)),
		logging.Int("skipped_paths", len(diagnostics)),
		logging.String("input", spec.InputRoot),
	)

	handle.setPhase("preflight")
	validator := preflight.NewValidator(preflight.Options{
		MinAPILevel: r.cfg.Tool.MinAPILevel,
		MaxAPILevel: r.cfg.Tool.MaxAPILevel,
		Prober:      r.prober,
	}, logger)
	out.Preflight = validator.Validate(runCtx, spec)
	if out.Preflight.HasFatal() {
		msgs := make([]string, 0, len(out.Preflight.Fatal()))
		for _, f := range out.Preflight.Fatal() {
			msgs = append(msgs, f.String())
		}
		r.publish(ctx, notifier, notifications.EventRunFailed, notifications.Payload{
			"run_id": runID,
			"error":  "preflight: " + strings.Join(msgs, "; "),
		})
		return out, nil
	}

	if err := r.cfg.EnsureDirectories(); err != nil {
		return out, err
	}
	lock, err := lockOutputDir(spec.OutputDir)
	if err != nil {
		return out, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			logger.Warn("release output lock failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lock_release_failed"),
				logging.String(logging.FieldErrorHint, "remove "+lock.path+" if no run is active"),
			)
		}
	}()

	if swept := staging.CleanStale(runCtx, spec.OutputDir, 0, logger); len(swept.Removed) > 0 {
		logger.Info("removed leftovers of interrupted runs", logging.Int("count", len(swept.Removed)))
	}

	store, closeStore := r.history(ctx, logger)
	defer closeStore()

	workers := r.cfg.EffectiveWorkers()
	started := r.now()
	record := history.Run{
		ID:        runID,
		StartedAt: started,
		State:     string(scheduler.RunScheduling),
		InputDir:  spec.InputRoot,
		OutputDir: spec.OutputDir,
		APILevel:  spec.APILevel,
		Workers:   workers,
		Total:     len(files),
	}
	if store != nil {
		if err := store.BeginRun(ctx, record); err != nil {
			logging.WarnWithContext(logger, "history begin failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run will not appear in history"),
				logging.String(logging.FieldErrorHint, "check history.dsn"),
			)
			store = nil
		}
	}

	r.publish(ctx, notifier, notifications.EventRunStarted, notifications.Payload{
		"run_id":  runID,
		"files":   len(files),
		"input":   spec.InputRoot,
		"workers": workers,
	})

	sampler := logging.NewProgressSampler(0)
	sched := scheduler.New(r.invoker, scheduler.Options{
		Workers:           workers,
		TerminateInFlight: r.cfg.Workflow.TerminateInFlight,
		Progress: func(ev scheduler.Event) {
			r.onProgress(ctx, logger, notifier, sampler, runID, ev)
		},
	}, logger)
	handle.attach(sched)

	result, err := sched.Run(runCtx, files, spec)
	out.State = result.State
	if err != nil {
		r.publish(ctx, notifier, notifications.EventRunFailed, notifications.Payload{"run_id": runID, "error": err.Error()})
		return out, fmt.Errorf("schedule run: %w", err)
	}
	out.Summary = result.Summary
	out.Results = result.Results
	out.Cancelled = result.Cancelled
	out.Fault = result.Fault
	out.Interrupted = result.Interrupted

	out.ReportPaths = r.writeReports(logger, out)
	if store != nil {
		record.FinishedAt = r.now()
		record.State = string(out.State)
		record.Succeeded = out.Summary.Succeeded
		record.Failed = out.Summary.Failed
		record.Cancelled = out.Summary.Cancelled
		record.WallTime = out.Summary.WallTime
		if out.Fault != nil {
			record.Fault = out.Fault.Error()
		}
		if err := store.FinishRun(context.WithoutCancel(ctx), record, out.Results, out.Cancelled); err != nil {
			logging.WarnWithContext(logger, "history finish failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "per-file results missing from history"),
				logging.String(logging.FieldErrorHint, "check history.dsn"),
			)
		}
	}

	r.publishOutcome(ctx, notifier, out)
	return out, nil
}

func (r *Runner) onProgress(ctx context.Context, logger *slog.Logger, notifier notifications.Service, sampler *logging.ProgressSampler, runID string, ev scheduler.Event) {
	if sampler.ShouldLog(ev.Completed, ev.Total) {
		logger.Info("progress",
			logging.Int("completed", ev.Completed),
			logging.Int("total", ev.Total),
			logging.String("last_state", string(ev.State)),
			logging.SourceFile(ev.File.Path),
		)
	}
	if r.progress != nil {
		r.progress(ev)
	}
	payload := notifications.Payload{
		"run_id":    runID,
		"file":      ev.File.Path,
		"state":     string(ev.State),
		"completed": ev.Completed,
		"total":     ev.Total,
	}
	if ev.Result != nil {
		payload["status"] = string(ev.Result.Status)
		payload["elapsed_seconds"] = ev.Result.Elapsed.Seconds()
	}
	r.publish(context.WithoutCancel(ctx), notifier, notifications.EventFileCompleted, payload)
}

func (r *Runner) writeReports(logger *slog.Logger, out Outcome) []string {
	if len(r.cfg.Report.Formats) == 0 || strings.TrimSpace(r.cfg.Paths.ReportDir) == "" {
		return nil
	}
	doc := report.Build(report.Input{
		RunID:     out.RunID,
		State:     string(out.State),
		Fault:     out.Fault,
		Summary:   out.Summary,
		Results:   out.Results,
		Cancelled: out.Cancelled,
	}, r.now())
	paths, err := report.WriteAll(r.cfg.Paths.ReportDir, doc, r.cfg.Report.Formats)
	if err != nil {
		logging.WarnWithContext(logger, "report export failed", "report_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run results only available in logs and history"),
			logging.String(logging.FieldErrorHint, "check paths.report_dir permissions and free space"),
		)
	}
	for _, p := range paths {
		logger.Info("report written", logging.String("path", p))
	}
	return paths
}

func (r *Runner) publishOutcome(ctx context.Context, notifier notifications.Service, out Outcome) {
	ctx = context.WithoutCancel(ctx)
	if out.Fault != nil {
		r.publish(ctx, notifier, notifications.EventRunFailed, notifications.Payload{
			"run_id":    out.RunID,
			"error":     out.Fault.Error(),
			"succeeded": out.Summary.Succeeded,
			"failed":    out.Summary.Failed,
			"cancelled": out.Summary.Cancelled,
		})
		return
	}
	r.publish(ctx, notifier, notifications.EventRunCompleted, notifications.Payload{
		"run_id":      out.RunID,
		"succeeded":   out.Summary.Succeeded,
		"failed":      out.Summary.Failed,
		"cancelled":   out.Summary.Cancelled,
		"duration":    out.Summary.WallTime.Round(time.Second).String(),
		"interrupted": out.Interrupted,
	})
}

func (r *Runner) publish(ctx context.Context, notifier notifications.Service, event notifications.Event, payload notifications.Payload) {
	if notifier == nil {
		return
	}
	if err := notifier.Publish(ctx, event, payload); err != nil {
		r.logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications settings"),
		)
	}
}

// notifications returns the configured notifier and a function releasing it.
func (r *Runner) notifications(logger *slog.Logger) (notifications.Service, func()) {
	if r.notifier != nil {
		return r.notifier, func() {}
	}
	services := []notifications.Service{notifications.NewService(r.cfg)}
	url := strings.TrimSpace(r.cfg.Notifications.NATSURL)
	if url == "" {
		return services[0], func() {}
	}
	pub, err := notifications.ConnectNATS(url, r.cfg.Notifications.NATSSubject)
	if err != nil {
		logging.WarnWithContext(logger, "nats unavailable", "nats_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run events will not be published to nats"),
			logging.String(logging.FieldErrorHint, "check notifications.nats_url"),
		)
		return services[0], func() {}
	}
	services = append(services, pub)
	return notifications.Multi(services...), pub.Close
}

// history returns the run store, or nil when history is disabled or cannot
// be opened.
func (r *Runner) history(ctx context.Context, logger *slog.Logger) (HistoryStore, func()) {
	if r.store != nil {
		return r.store, func() {}
	}
	if !r.cfg.History.Enabled || strings.TrimSpace(r.cfg.History.DSN) == "" {
		return nil, func() {}
	}
	store, err := history.Open(ctx, r.cfg.History.DSN)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in history"),
			logging.String(logging.FieldErrorHint, "check history.dsn"),
		)
		return nil, func() {}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Debug("history close failed", logging.Error(err))
		}
	}
}

func (r *Runner) setCurrent(h *runHandle) {
	r.mu.Lock()
	r.current = h
	r.mu.Unlock()
}

func (r *Runner) clearCurrent(h *runHandle) {
	r.mu.Lock()
	if r.current == h {
		r.current = nil
	}
	r.mu.Unlock()
}

// runHandle exposes one run to the status API.
type runHandle struct {
	id     string
	cancel context.CancelFunc

	mu    sync.RWMutex
	phase string
	sched *scheduler.Scheduler
}

func newRunHandle(id string, cancel context.CancelFunc) *runHandle {
	return &runHandle{id: id, cancel: cancel, phase: string(scheduler.RunIdle)}
}

func (h *runHandle) ID() string { return h.id }

func (h *runHandle) setPhase(phase string) {
	h.mu.Lock()
	h.phase = phase
	h.mu.Unlock()
}

func (h *runHandle) attach(s *scheduler.Scheduler) {
	h.mu.Lock()
	h.sched = s
	h.mu.Unlock()
}

func (h *runHandle) scheduler() *scheduler.Scheduler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sched
}

// State reports the scheduler state once scheduling began, otherwise the
// current pre-scheduling phase.
func (h *runHandle) State() string {
	if s := h.scheduler(); s != nil {
		return string(s.State())
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phase
}

func (h *runHandle) Snapshot() results.Snapshot {
	if s := h.scheduler(); s != nil {
		return s.Snapshot()
	}
	return results.Snapshot{Summary: results.Summarize(0, nil, 0, 0)}
}

// Cancel stops dispatch. Files already running finish unless the run
// terminates in-flight work.
func (h *runHandle) Cancel() bool {
	if s := h.scheduler(); s != nil {
		if s.State().Terminal() {
			return false
		}
	}
	h.cancel()
	return true
}
