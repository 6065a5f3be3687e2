package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"uploadr/internal/config"
	"uploadr/internal/fileutil"
	"uploadr/internal/ledger"
	"uploadr/internal/markers"
	"uploadr/internal/singleton"
)

const statusTimeFormat = "2006-01-02 15:04:05"

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a run is active and summarize recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printMarkerStatus(out, cfg); err != nil {
				return err
			}
			return printRecentRuns(cmd.Context(), out, cfg, runs)
		},
	}
	cmd.Flags().IntVarP(&runs, "runs", "n", 5, "Number of recent runs to list")
	return cmd
}

func printMarkerStatus(out io.Writer, cfg *config.Config) error {
	held, err := singleton.Held(cfg.LockPath())
	if err != nil {
		return fmt.Errorf("check lock: %w", err)
	}
	fmt.Fprintf(out, "Instance running: %s\n", yesNo(held))

	exists, err := fileutil.Exists(cfg.MarkerDir())
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintln(out, "No runs have been started yet")
		return nil
	}
	store, err := markers.Open(cfg.MarkerDir())
	if err != nil {
		return err
	}
	state, err := store.Snapshot()
	if err != nil {
		return fmt.Errorf("read markers: %w", err)
	}
	switch {
	case state.Running == nil:
		fmt.Fprintln(out, "Liveness marker: none")
	case held:
		fmt.Fprintf(out, "Liveness marker: run %s (pid %d) since %s\n",
			state.Running.RunID, state.Running.PID, formatTime(state.Running.StartedAt))
	default:
		fmt.Fprintf(out, "Liveness marker: stale, left by run %s (pid %d); archived on next run\n",
			state.Running.RunID, state.Running.PID)
	}
	if state.InFlight != "" {
		fmt.Fprintf(out, "Upload in flight: %s\n", state.InFlight)
	} else {
		fmt.Fprintln(out, "Upload in flight: none")
	}
	if state.Shutdown != "" {
		fmt.Fprintf(out, "Shutdown requested: %s\n", state.Shutdown)
	} else {
		fmt.Fprintln(out, "Shutdown requested: no")
	}
	return nil
}

func printRecentRuns(ctx context.Context, out io.Writer, cfg *config.Config, limit int) error {
	audit, ok, err := openLedger(cfg)
	if err != nil || !ok {
		return err
	}
	defer audit.Close()

	runs, err := audit.Runs(ctx, limit)
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			run.Mode,
			string(run.Status),
			formatTime(run.StartedAt),
			formatDuration(run.StartedAt, run.FinishedAt),
			strconv.Itoa(run.Passes),
			strconv.Itoa(run.Uploaded),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.AlbumsCreated),
		})
	}
	fmt.Fprintln(out)
	cols := columns("Run", "Mode", "Status", "Started")
	cols = append(cols, numeric("Duration"), numeric("Passes"), numeric("Uploaded"), numeric("Failed"), numeric("Albums"))
	fmt.Fprintln(out, renderTable(out, cols, rows))
	return nil
}

// openLedger opens the run log only when it already exists.
func openLedger(cfg *config.Config) (*ledger.Ledger, bool, error) {
	exists, err := fileutil.Exists(cfg.LedgerPath())
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}
	audit, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, false, err
	}
	return audit, true, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(statusTimeFormat)
}

func formatDuration(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return end.Sub(start).Round(time.Second).String()
}
