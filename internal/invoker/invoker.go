package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"deodexer/internal/fileutil"
	"deodexer/internal/job"
	"deodexer/internal/logging"
	"deodexer/internal/staging"
)

// Diagnostic prefixes shared with reporting.
const (
	DiagSkipped   = "skipped: output exists"
	DiagCancelled = "terminated: run cancelled"
	DiagNoOutput  = "tool exited 0 but produced no output"
)

// Option configures the invoker.
type Option func(*Invoker)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(i *Invoker) {
		if exec != nil {
			i.exec = exec
		}
	}
}

// Invoker runs the deodexing tool for one file at a time. It is safe for
// concurrent use; every call owns its own process and staging path.
type Invoker struct {
	exec   Executor
	logger *slog.Logger
}

// New constructs an Invoker that launches real processes unless an executor
// is injected.
func New(logger *slog.Logger, opts ...Option) *Invoker {
	inv := &Invoker{
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(logger, "invoker"),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// BuildArgs returns the executable and argument list for converting input
// into output. With a runtime the tool is launched as a jar
// (java -jar tool deodex ...); otherwise the tool path is executed directly.
func BuildArgs(spec job.Spec, input, output string) (string, []string) {
	var (
		path string
		args []string
	)
	if runtime := strings.TrimSpace(spec.Runtime); runtime != "" {
		path = runtime
		args = append(args, "-jar", spec.ToolPath)
	} else {
		path = spec.ToolPath
	}
	args = append(args,
		"deodex",
		"-a", strconv.Itoa(spec.APILevel),
		"-d", spec.FrameworkDir,
		"-o", output,
	)
	args = append(args, spec.ExtraArgs...)
	args = append(args, input)
	return path, args
}

// StagingPath returns a unique sibling of final for the tool to write into.
func StagingPath(final string) string {
	return staging.Path(final)
}

// Invoke executes exactly one tool call for file and classifies the outcome.
// It never returns an error: spawn problems become IOFailure, a deadline
// becomes Timeout, and anything else that is not a clean non-empty artifact
// becomes ToolFailure.
func (i *Invoker) Invoke(ctx context.Context, spec job.Spec, file job.SourceFile) job.Result {
	started := time.Now()
	final := job.OutputFor(spec, file)
	logger := logging.WithContext(ctx, i.logger).With(logging.SourceFile(file.Path))

	finish := func(status job.Status, code int, diag, output string, cause error) job.Result {
		finished := time.Now()
		res := job.Result{
			File:        file,
			Status:      status,
			StartedAt:   started,
			FinishedAt:  finished,
			Elapsed:     finished.Sub(started),
			ExitCode:    code,
			Diagnostics: diag,
			OutputPath:  output,
			Cause:       cause,
		}
		i.logResult(logger, res)
		return res
	}

	if spec.SkipExisting {
		if ok, _ := fileutil.NonEmpty(final); ok {
			return finish(job.StatusSuccess, 0, DiagSkipped, final, nil)
		}
	}

	// The output root is created once per run; a missing root is reported,
	// not recreated.
	if _, err := os.Stat(spec.OutputDir); err != nil {
		return finish(job.StatusIOFailure, -1, fmt.Sprintf("output root: %v", err), "", err)
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return finish(job.StatusIOFailure, -1, fmt.Sprintf("create output directory: %v", err), "", err)
	}
	stagePath := StagingPath(final)
	defer func() {
		if err := os.RemoveAll(stagePath); err != nil {
			logger.Debug("staging cleanup failed", logging.String("path", stagePath), logging.Error(err))
		}
	}()

	callCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	stdout := newTailBuffer(spec.TailBytes)
	stderr := newTailBuffer(spec.TailBytes)
	path, args := BuildArgs(spec, file.Path, stagePath)
	logger.Debug("tool starting",
		logging.String("command", path),
		logging.String("args", strings.Join(args, " ")),
	)

	code, err := i.exec.Run(callCtx, Process{
		Path:      path,
		Args:      args,
		Stdout:    stdout,
		Stderr:    stderr,
		KillGrace: spec.KillGrace,
	})
	tails := formatTails(stdout.String(), stderr.String())

	switch {
	case errors.Is(err, ErrSpawn):
		return finish(job.StatusIOFailure, -1, joinDiag(err.Error(), tails), "", err)
	case code == 0 && err == nil:
		// Clean exit; verify the artifact below even if the deadline fired
		// while the process was already on its way out.
	case ctx.Err() != nil:
		return finish(job.StatusToolFailure, code, joinDiag(DiagCancelled, tails), "", ctx.Err())
	case callCtx.Err() != nil:
		msg := fmt.Sprintf("timed out after %s", spec.Timeout)
		return finish(job.StatusTimeout, code, joinDiag(msg, tails), "", callCtx.Err())
	case err != nil:
		return finish(job.StatusToolFailure, code, joinDiag(err.Error(), tails), "", err)
	default:
		return finish(job.StatusToolFailure, code, joinDiag(fmt.Sprintf("exit status %d", code), tails), "", nil)
	}

	ok, err := fileutil.NonEmpty(stagePath)
	if err != nil {
		return finish(job.StatusIOFailure, code, joinDiag(fmt.Sprintf("inspect output: %v", err), tails), "", err)
	}
	if !ok {
		return finish(job.StatusToolFailure, code, joinDiag(DiagNoOutput, tails), "", nil)
	}
	if err := fileutil.Promote(stagePath, final); err != nil {
		if !errors.Is(err, fileutil.ErrPreviousOutputLeft) {
			return finish(job.StatusIOFailure, code, joinDiag(err.Error(), tails), "", err)
		}
		logging.WarnWithContext(logger, "previous output not removed", "previous_output_left",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the next run sweeps it; remove it by hand if needed"),
			logging.String(logging.FieldImpact, "stale copy of the old artifact remains next to the new one"),
		)
	}
	return finish(job.StatusSuccess, code, tails, final, nil)
}

func (i *Invoker) logResult(logger *slog.Logger, res job.Result) {
	if res.Status.Succeeded() {
		logger.Info("file deodexed",
			logging.String("status", string(res.Status)),
			logging.Duration("elapsed", res.Elapsed),
			logging.String("output", res.OutputPath),
		)
		return
	}
	logging.WarnWithContext(logger, "file failed", "file_"+string(res.Status),
		logging.String("status", string(res.Status)),
		logging.Int("exit_code", res.ExitCode),
		logging.Duration("elapsed", res.Elapsed),
		logging.String("diagnostics", firstLine(res.Diagnostics)),
		logging.String(logging.FieldErrorHint, hintFor(res.Status)),
		logging.String(logging.FieldImpact, "file skipped; other files continue"),
	)
}

func hintFor(status job.Status) string {
	switch status {
	case job.StatusTimeout:
		return "raise tool.timeout_seconds or inspect the file"
	case job.StatusIOFailure:
		return "check tool path permissions and free disk space"
	default:
		return "check framework_dir and api_level match the device image"
	}
}

func formatTails(stdout, stderr string) string {
	var parts []string
	if s := strings.TrimSpace(stderr); s != "" {
		parts = append(parts, "stderr: "+s)
	}
	if s := strings.TrimSpace(stdout); s != "" {
		parts = append(parts, "stdout: "+s)
	}
	return strings.Join(parts, "\n")
}

func joinDiag(summary, tails string) string {
	if tails == "" {
		return summary
	}
	return summary + "\n" + tails
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
