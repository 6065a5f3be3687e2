package main

import (
	"bufio"
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"uploadr/internal/flickr"
)

// openBrowser is replaced in tests.
var openBrowser = browser.OpenURL

func newAuthCommand(ctx *commandContext) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize uploadr with your Flickr account and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, store, err := flickr.FromConfig(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if client.Token() != "" {
				if info, err := client.CheckToken(cmd.Context()); err == nil {
					fmt.Fprintf(out, "Already authorized as %s (perms: %s)\n", info.Username, info.Perms)
					return nil
				}
				fmt.Fprintln(out, "Cached token is no longer valid; starting a new authorization")
			}

			frob, err := client.GetFrob(cmd.Context())
			if err != nil {
				return err
			}
			authURL := client.AuthURL(frob)
			fmt.Fprintln(out, "Open the following URL in a browser and grant access:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, authURL)
			fmt.Fprintln(out)
			if open {
				if err := openBrowser(authURL); err != nil {
					fmt.Fprintf(out, "Could not open a browser (%v); copy the URL above instead\n", err)
				}
			}
			fmt.Fprint(out, "Press Enter once access has been granted...")
			if _, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n'); err != nil {
				return fmt.Errorf("waiting for confirmation: %w", err)
			}
			fmt.Fprintln(out)

			info, err := client.GetToken(cmd.Context(), frob)
			if err != nil {
				return err
			}
			if err := store.Save(info.Token); err != nil {
				return err
			}
			fmt.Fprintf(out, "Authorized as %s (perms: %s); token saved to %s\n", info.Username, info.Perms, store.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "Open the authorization URL in the default browser")
	return cmd
}
