package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"deodexer/internal/config"
	"deodexer/internal/history"
	"deodexer/internal/job"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func withHistory(ctx context.Context, cfg *config.Config, fn func(*history.Store) error) error {
	if !cfg.History.Enabled {
		return errors.New("run history is disabled (history.enabled = false)")
	}
	store, err := history.Open(ctx, cfg.History.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withHistory(cmd.Context(), cfg, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						humanize.Time(run.StartedAt),
						statusLabel(run.State),
						strconv.Itoa(run.Total),
						strconv.Itoa(run.Succeeded),
						strconv.Itoa(run.Failed),
						strconv.Itoa(run.Cancelled),
						formatDuration(run.WallTime),
						truncate(run.InputDir, 40),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Started", "State", "Files", "OK", "Failed", "Cancelled", "Wall", "Input"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-file results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withHistory(cmd.Context(), cfg, func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				records, err := store.FileResults(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := renderSectionHeader("Run "+run.ID, colorize)
				lines = append(lines,
					renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.DateTime), colorize),
					renderStatusLine("State", runKind(run), statusLabel(run.State), colorize),
					renderStatusLine("Input", statusInfo, run.InputDir, colorize),
					renderStatusLine("Output", statusInfo, run.OutputDir, colorize),
					renderStatusLine("API level", statusInfo, strconv.Itoa(run.APILevel), colorize),
					renderStatusLine("Workers", statusInfo, strconv.Itoa(run.Workers), colorize),
					renderStatusLine("Files", statusInfo, fmt.Sprintf("%d total, %d ok, %d failed, %d cancelled",
						run.Total, run.Succeeded, run.Failed, run.Cancelled), colorize),
				)
				if run.Finished() {
					lines = append(lines, renderStatusLine("Wall time", statusInfo, formatDuration(run.WallTime), colorize))
				} else {
					lines = append(lines, renderStatusLine("Finished", statusWarn, "run did not record an end", colorize))
				}
				if run.Fault != "" {
					lines = append(lines, renderStatusLine("Fault", statusError, run.Fault, colorize))
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}

				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					if failedOnly && rec.Status == string(job.StatusSuccess) {
						continue
					}
					rows = append(rows, []string{
						truncate(displayPath(run.InputDir, rec.Path), 48),
						statusLabel(rec.Status),
						formatDuration(rec.Elapsed),
						humanBytes(rec.Size),
						truncate(firstLine(rec.Diagnostics), 60),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No file results to show")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Status", "Elapsed", "Size", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show files that did not succeed")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New("--days must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withHistory(cmd.Context(), cfg, func(store *history.Store) error {
				cutoff := time.Now().AddDate(0, 0, -days)
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs started before %s\n", removed, cutoff.Format(time.DateOnly))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Keep runs from the last N days")
	return cmd
}

func runKind(run history.Run) statusKind {
	switch {
	case run.Fault != "":
		return statusError
	case run.Failed > 0 || run.Cancelled > 0:
		return statusWarn
	case run.Finished():
		return statusOK
	default:
		return statusInfo
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
