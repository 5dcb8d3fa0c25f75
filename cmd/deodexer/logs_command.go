package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"deodexer/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs [run-id]",
		Short: "Print the log of a run (latest when no ID is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			path, err := logs.FindRunLog(cfg.Paths.LogDir, prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			chunk, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range chunk.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, err = logs.Follow(followCtx, path, chunk.Offset, logs.DefaultPollInterval, func(line string) {
				fmt.Fprintln(out, line)
			})
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are appended")
	return cmd
}
