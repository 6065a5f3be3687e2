package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"uploadr/internal/logs"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var runID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display a run log (latest run by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path, err := logs.Resolve(cfg.LogDir(), runID)
			if errors.Is(err, logs.ErrNoLogs) {
				fmt.Fprintln(out, "No log entries available")
				return nil
			}
			if err != nil {
				return err
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(tail) == 0 {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 0, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of lines to show")
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (or unique prefix) to show")
	return cmd
}
