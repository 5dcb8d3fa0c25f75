package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deodexer/internal/api"
	"deodexer/internal/job"
)

func resolveAPIClient(ctx *commandContext, addr string) (*api.Client, error) {
	if strings.TrimSpace(addr) == "" {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		addr = cfg.API.Bind
	}
	client, err := api.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("status api address: %w", err)
	}
	if client == nil {
		return nil, errors.New("no status address; pass --addr or set api.bind")
	}
	return client, nil
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var failed bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show progress of a run started with --serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveAPIClient(ctx, addr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			status, err := client.Run(cmd.Context())
			switch {
			case errors.Is(err, api.ErrNoRun):
				fmt.Fprintln(out, renderStatusLine("Run", statusInfo, "No run in progress", colorize))
				return nil
			case api.IsUnavailable(err):
				fmt.Fprintln(out, renderStatusLine("Run", statusWarn, "Status API not reachable", colorize))
				return nil
			case err != nil:
				return err
			}

			s := status.Summary
			fmt.Fprintln(out, renderStatusLine("Run", statusInfo, shortID(status.RunID)+" ("+statusLabel(status.State)+")", colorize))
			fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%d/%d files (%d pending)", s.Completed, s.Total, s.Pending), colorize))
			fmt.Fprintln(out, renderStatusLine("Succeeded", statusOK, strconv.Itoa(s.Succeeded), colorize))
			failKind := statusOK
			if s.Failed > 0 {
				failKind = statusError
			}
			fmt.Fprintln(out, renderStatusLine("Failed", failKind, strconv.Itoa(s.Failed), colorize))
			if s.Cancelled > 0 {
				fmt.Fprintln(out, renderStatusLine("Cancelled", statusWarn, strconv.Itoa(s.Cancelled), colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, formatDuration(time.Duration(s.WallTimeMS)*time.Millisecond), colorize))

			if !failed || s.Failed == 0 {
				return nil
			}
			items, err := client.Results(cmd.Context(),
				string(job.StatusToolFailure), string(job.StatusTimeout), string(job.StatusIOFailure))
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					truncate(item.Path, 60),
					statusLabel(item.Status),
					strconv.Itoa(item.ExitCode),
					truncate(firstLine(item.Diagnostics), 60),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Status", "Exit", "Diagnostics"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Status API address (defaults to api.bind)")
	cmd.Flags().BoolVar(&failed, "failed", false, "List failed files")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Stop dispatching new files in a run started with --serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveAPIClient(ctx, addr)
			if err != nil {
				return err
			}
			resp, err := client.Cancel(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Requested {
				fmt.Fprintf(out, "Cancellation requested for run %s\n", shortID(resp.RunID))
			} else {
				fmt.Fprintf(out, "Run %s was already cancelling\n", shortID(resp.RunID))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Status API address (defaults to api.bind)")
	return cmd
}
