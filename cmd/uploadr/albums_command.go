package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"uploadr/internal/flickr"
)

func newAlbumsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "albums",
		Short: "List albums on the remote account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, _, err := flickr.FromConfig(cfg)
			if err != nil {
				return err
			}
			if _, err := client.CheckToken(cmd.Context()); err != nil {
				return err
			}
			albums, err := client.ListAlbums(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(albums) == 0 {
				fmt.Fprintln(out, "No albums")
				return nil
			}
			rows := make([][]string, 0, len(albums))
			for _, album := range albums {
				rows = append(rows, []string{album.ID, album.Title})
			}
			fmt.Fprintln(out, renderTable(out, columns("ID", "Title"), rows))
			fmt.Fprintf(out, "%d albums\n", len(albums))
			return nil
		},
	}
}
