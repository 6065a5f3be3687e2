package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent upload events from the run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			audit, ok, err := openLedger(cfg)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "No history recorded")
				return nil
			}
			defer audit.Close()

			events, err := audit.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No history recorded")
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, evt := range events {
				detail := evt.Path
				if detail == "" {
					detail = evt.Message
				}
				rows = append(rows, []string{
					formatTime(evt.At),
					shortID(evt.RunID),
					strconv.Itoa(evt.Pass),
					string(evt.Kind),
					evt.Album,
					evt.PhotoID,
					detail,
				})
			}
			cols := []column{{title: "Time"}, {title: "Run"}, numeric("Pass")}
			cols = append(cols, columns("Event", "Album", "Photo", "Detail")...)
			fmt.Fprintln(out, renderTable(out, cols, rows))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events to show")
	return cmd
}
