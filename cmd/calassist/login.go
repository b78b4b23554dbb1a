package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/beekhof/calendar-assistant/internal/auth"
)

var (
	loginManual bool
	loginForce  bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize access to your Google Calendar",
	Long: `Runs the Google OAuth flow and stores the resulting token at token_path.

By default a local server on 127.0.0.1:8080 receives the callback. With
--manual, paste the authorization code from the redirect URL instead.
An existing token is kept unless --force or --manual is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		oauthConfig, err := googleOAuthConfig(cfg)
		if err != nil {
			return err
		}
		store := auth.NewFileTokenStore(cfg.TokenPath)
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var tok *oauth2.Token
		switch {
		case loginManual:
			tok, err = auth.AuthorizeWithReader(ctx, oauthConfig, store, os.Stdin, out)
		case loginForce:
			tok, err = auth.Authorize(ctx, oauthConfig, store, out)
		default:
			tok, err = auth.LoadOrAuthorize(ctx, oauthConfig, store, out)
		}
		if err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}

		fmt.Fprintf(out, "Authorized. Token stored at %s", cfg.TokenPath)
		if !tok.Expiry.IsZero() {
			fmt.Fprintf(out, " (access token valid until %s)", tok.Expiry.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginManual, "manual", false, "Paste the authorization code instead of running a callback server")
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "Re-authorize even if a token is already stored")
}
