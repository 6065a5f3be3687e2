package main

import (
	"github.com/spf13/cobra"

	"uploadr/internal/config"
	"uploadr/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var overrides config.Overrides

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Upload pending files (one pass, or continuously with --daemon)",
		Long: `Scan the media directory and upload every pending file to its album.

Only one instance runs at a time; a second invocation exits with code 2
without touching anything. SIGINT/SIGTERM/SIGHUP stop the run after the file
currently uploading has been committed. A second signal exits immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg.WithOverrides(overrides), daemonrun.Options{
				LogLevel: ctx.logLevel(),
			})
		},
	}

	cmd.Flags().BoolVarP(&overrides.Daemon, "daemon", "d", false, "Keep running and rescan every schedule.sleep_seconds")
	cmd.Flags().BoolVar(&overrides.DripFeed, "drip-feed", false, "Pause schedule.drip_seconds between uploads")
	cmd.Flags().StringVarP(&overrides.Title, "title", "t", "", "Title applied to every uploaded photo")
	cmd.Flags().StringVar(&overrides.Description, "description", "", "Description applied to every uploaded photo")
	cmd.Flags().StringVar(&overrides.Tags, "tags", "", "Space-separated tags added to the configured tags")
	cmd.Flags().IntVar(&overrides.MaxFiles, "max-files", 0, "Stop a pass after this many upload attempts (0 = unlimited)")
	return cmd
}
