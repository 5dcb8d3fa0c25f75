package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"deodexer/internal/locator"
	"deodexer/internal/logging"
	"deodexer/internal/preflight"
	"deodexer/internal/workflow"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "check [input-dir]",
		Short: "Run preflight checks and count eligible files without deodexing",
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
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			colorize := shouldColorize(w)
			report := preflight.NewValidator(preflight.Options{
				MinAPILevel: cfg.Tool.MinAPILevel,
				MaxAPILevel: cfg.Tool.MaxAPILevel,
			}, logger).Validate(cmd.Context(), cfg.JobSpec())
			for _, line := range preflightLines(report, colorize) {
				fmt.Fprintln(w, line)
			}

			lines := renderSectionHeader("Input", colorize)
			if cfg.Paths.InputDir == "" {
				lines = append(lines, renderStatusLine("Input", statusWarn, "no input directory configured", colorize))
			} else {
				loc := locator.New(locator.Options{
					Extensions: cfg.Tool.Extensions,
					MaxDepth:   cfg.Workflow.MaxDepth,
				}, logger)
				files, diags, err := loc.Collect(cmd.Context(), cfg.Paths.InputDir)
				if err != nil {
					lines = append(lines, renderStatusLine("Input", statusError, err.Error(), colorize))
					report.Findings = append(report.Findings, preflight.Finding{Check: "input", Severity: preflight.Fatal, Message: err.Error()})
				} else {
					var total int64
					for _, f := range files {
						total += f.Size
					}
					lines = append(lines, renderStatusLine("Eligible files", statusOK,
						fmt.Sprintf("%d under %s (%s)", len(files), cfg.Paths.InputDir, humanBytes(total)), colorize))
					for _, diag := range diags {
						lines = append(lines, renderStatusLine("Skipped", statusWarn, diag.Error(), colorize))
					}
				}
			}
			lines = append(lines, renderStatusLine("Workers", statusInfo, fmt.Sprint(cfg.EffectiveWorkers()), colorize))
			lines = append(lines, renderStatusLine("Terminate in-flight", statusInfo, yesNo(cfg.Workflow.TerminateInFlight), colorize))
			for _, line := range lines {
				fmt.Fprintln(w, line)
			}

			if report.HasFatal() {
				return exitWith(workflow.ExitNotStarted, errors.New("preflight failed"))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.input, "input", "i", "", "Directory to scan for odex files")
	f.StringVarP(&flags.output, "output", "o", "", "Directory receiving deodexed output")
	f.StringVarP(&flags.tool, "tool", "t", "", "Path to the deodexing tool")
	f.StringVar(&flags.runtime, "runtime", "", "Launcher for the tool; \"none\" runs the tool directly")
	f.StringVarP(&flags.framework, "framework", "f", "", "Framework directory")
	f.IntVarP(&flags.apiLevel, "api", "a", 0, "Android API level of the image")
	f.IntVarP(&flags.workers, "workers", "w", 0, "Concurrent tool invocations")
	return cmd
}
