package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"deodexer/internal/deps"
	"deodexer/internal/job"
	"deodexer/internal/logging"
)

// Severity classifies a finding.
type Severity string

const (
	// Fatal findings block scheduling entirely.
	Fatal Severity = "fatal"
	// Warning findings are advisory.
	Warning Severity = "warning"
)

// Finding is one preflight observation.
type Finding struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: %s", strings.ToUpper(string(f.Severity)), f.Check, f.Message)
}

// Report is the structured outcome of a preflight pass. Passed lists the
// checks that produced no finding, for display.
type Report struct {
	Findings []Finding `json:"findings"`
	Passed   []string  `json:"passed"`
}

// HasFatal reports whether any finding blocks scheduling.
func (r Report) HasFatal() bool {
	for _, f := range r.Findings {
		if f.Severity == Fatal {
			return true
		}
	}
	return false
}

// Fatal returns the blocking findings.
func (r Report) Fatal() []Finding {
	return r.filter(Fatal)
}

// Warnings returns the advisory findings.
func (r Report) Warnings() []Finding {
	return r.filter(Warning)
}

func (r Report) filter(sev Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// Options bounds the API levels the tool is known to support.
type Options struct {
	MinAPILevel int
	MaxAPILevel int
	// MinRuntimeMajor is the oldest runtime major version the tool runs on.
	MinRuntimeMajor int
	Prober          deps.RuntimeProber
}

// Validator runs the once-per-batch checks that gate scheduling.
type Validator struct {
	opts   Options
	logger *slog.Logger
}

// NewValidator constructs a Validator. A nil prober probes runtimes by
// executing them.
func NewValidator(opts Options, logger *slog.Logger) *Validator {
	if opts.Prober == nil {
		opts.Prober = deps.ExecProber{}
	}
	if opts.MinRuntimeMajor <= 0 {
		opts.MinRuntimeMajor = 8
	}
	return &Validator{opts: opts, logger: logging.NewComponentLogger(logger, "preflight")}
}

// Validate checks the tool, runtime, framework directory, output directory,
// and API level for spec. It never fails; callers decide policy from the
// returned Report.
func (v *Validator) Validate(ctx context.Context, spec job.Spec) Report {
	var report Report
	record := func(check string, findings []Finding) {
		if len(findings) == 0 {
			report.Passed = append(report.Passed, check)
			return
		}
		report.Findings = append(report.Findings, findings...)
	}

	record(CheckTool, checkTool(spec))
	if strings.TrimSpace(spec.Runtime) != "" {
		record(CheckRuntime, v.checkRuntime(ctx, spec.Runtime))
	}
	record(CheckFramework, checkFramework(spec.FrameworkDir))
	record(CheckOutput, checkOutputDir(spec.OutputDir))
	record(CheckAPILevel, v.checkAPILevel(spec.APILevel))

	for _, f := range report.Findings {
		attrs := []logging.Attr{
			logging.String("check", f.Check),
			logging.String("severity", string(f.Severity)),
			logging.String("path", f.Path),
		}
		if f.Severity == Fatal {
			logging.ErrorWithContext(v.logger, f.Message, "preflight_fatal",
				append(attrs, logging.String(logging.FieldErrorHint, "fix the path or flag named above and re-run"))...)
			continue
		}
		logging.WarnWithContext(v.logger, f.Message, "preflight_warning",
			append(attrs, logging.String(logging.FieldImpact, "run continues; results may be affected"))...)
	}
	v.logger.Debug("preflight complete",
		logging.Int("findings", len(report.Findings)),
		logging.Bool("fatal", report.HasFatal()),
	)
	return report
}
