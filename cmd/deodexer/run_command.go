package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"deodexer/internal/api"
	"deodexer/internal/config"
	"deodexer/internal/logging"
	"deodexer/internal/workflow"
)

type runFlags struct {
	input             string
	output            string
	tool              string
	runtime           string
	framework         string
	apiLevel          int
	workers           int
	timeout           int
	extraArgs         []string
	formats           []string
	reportDir         string
	serve             string
	terminateInFlight bool
	skipExisting      bool
	noProgress        bool
	noHistory         bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [input-dir]",
		Short: "Deodex every eligible file under the input directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return exitWith(workflow.ExitNotStarted, err)
			}
			if len(args) == 1 && !cmd.Flags().Changed("input") {
				flags.input = args[0]
			}
			if err := applyRunFlags(cmd, cfg, flags); err != nil {
				return exitWith(workflow.ExitNotStarted, err)
			}
			if err := cfg.ValidateRun(); err != nil {
				return exitWith(workflow.ExitNotStarted, err)
			}
			return executeRun(cmd, cfg, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.input, "input", "i", "", "Directory to scan for odex files")
	f.StringVarP(&flags.output, "output", "o", "", "Directory receiving deodexed output")
	f.StringVarP(&flags.tool, "tool", "t", "", "Path to the deodexing tool (baksmali jar or wrapper)")
	f.StringVar(&flags.runtime, "runtime", "", "Launcher for the tool (\"java\"); \"none\" runs the tool directly")
	f.StringVarP(&flags.framework, "framework", "f", "", "Framework directory with boot classpath files")
	f.IntVarP(&flags.apiLevel, "api", "a", 0, "Android API level of the image")
	f.IntVarP(&flags.workers, "workers", "w", 0, "Concurrent tool invocations")
	f.IntVar(&flags.timeout, "timeout", 0, "Per-file timeout in seconds")
	f.StringArrayVar(&flags.extraArgs, "extra-arg", nil, "Additional argument passed to the tool before the input (repeatable)")
	f.StringSliceVar(&flags.formats, "report-format", nil, "Report formats to write (json, csv, yaml)")
	f.StringVar(&flags.reportDir, "report-dir", "", "Directory for report files")
	f.StringVar(&flags.serve, "serve", "", "Serve live run status on this address (for example 127.0.0.1:8089)")
	f.BoolVar(&flags.terminateInFlight, "terminate-in-flight", false, "Terminate running tools when the run is interrupted")
	f.BoolVar(&flags.skipExisting, "skip-existing", false, "Skip files whose output already exists")
	f.BoolVar(&flags.noProgress, "no-progress", false, "Disable the terminal progress bar")
	f.BoolVar(&flags.noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	changed := cmd.Flags().Changed
	var err error
	if flags.input != "" {
		if cfg.Paths.InputDir, err = expandFlagPath("input", flags.input); err != nil {
			return err
		}
	}
	if changed("output") {
		if cfg.Paths.OutputDir, err = expandFlagPath("output", flags.output); err != nil {
			return err
		}
	}
	if changed("tool") {
		if cfg.Tool.JarPath, err = expandFlagPath("tool", flags.tool); err != nil {
			return err
		}
	}
	if changed("runtime") {
		runtime := strings.TrimSpace(flags.runtime)
		if strings.EqualFold(runtime, "none") {
			runtime = ""
		}
		cfg.Tool.Runtime = runtime
	}
	if changed("framework") {
		if cfg.Tool.FrameworkDir, err = expandFlagPath("framework", flags.framework); err != nil {
			return err
		}
	}
	if changed("report-dir") {
		if cfg.Paths.ReportDir, err = expandFlagPath("report-dir", flags.reportDir); err != nil {
			return err
		}
	}
	if changed("api") {
		cfg.Tool.APILevel = flags.apiLevel
	}
	if changed("workers") {
		cfg.Workflow.Workers = flags.workers
	}
	if changed("timeout") {
		cfg.Tool.TimeoutSeconds = flags.timeout
	}
	if changed("extra-arg") {
		cfg.Tool.ExtraArgs = append([]string(nil), flags.extraArgs...)
	}
	if changed("report-format") {
		cfg.Report.Formats = append([]string(nil), flags.formats...)
	}
	if changed("serve") {
		cfg.API.Bind = strings.TrimSpace(flags.serve)
	}
	if changed("terminate-in-flight") {
		cfg.Workflow.TerminateInFlight = flags.terminateInFlight
	}
	if changed("skip-existing") {
		cfg.Workflow.SkipExisting = flags.skipExisting
	}
	if flags.noHistory {
		cfg.History.Enabled = false
	}
	return nil
}

func executeRun(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	runID := workflow.NewRunID()
	logger, logPath, err := logging.NewRunLogger(cfg, runID)
	if err != nil {
		return exitWith(workflow.ExitNotStarted, fmt.Errorf("init logger: %w", err))
	}
	if pruned := logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath); pruned > 0 {
		logger.Debug("pruned run logs", logging.Int("removed", pruned))
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []workflow.Option{}
	var bar *progressReporter
	if !flags.noProgress && shouldColorize(os.Stderr) {
		bar = newProgressReporter(os.Stderr)
		opts = append(opts, workflow.WithProgress(bar.Handle))
	}
	runner := workflow.NewRunner(cfg, logger, opts...)

	if cfg.API.Bind != "" {
		srv := api.NewServer(cfg.API.Bind, runner, logger)
		addr, err := srv.Start(runCtx)
		if err != nil {
			return exitWith(workflow.ExitNotStarted, err)
		}
		defer srv.Stop()
		fmt.Fprintf(cmd.ErrOrStderr(), "Status API listening on http://%s\n", addr)
	}

	out, err := runner.Run(runCtx, runID)
	bar.Finish()

	w := cmd.OutOrStdout()
	colorize := shouldColorize(w)
	if err != nil {
		return exitWith(workflow.ExitNotStarted, err)
	}
	if out.Blocked() {
		for _, line := range preflightLines(out.Preflight, colorize) {
			fmt.Fprintln(w, line)
		}
		return exitWith(workflow.ExitNotStarted, errors.New("preflight failed; nothing was scheduled"))
	}
	renderOutcome(w, out, colorize)
	if logPath != "" {
		fmt.Fprintln(w, renderStatusLine("Log", statusInfo, logPath, colorize))
	}
	return exitWith(out.ExitCode(), nil)
}

