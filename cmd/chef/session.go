package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/aichef/internal/chef/app"
	"github.com/aussiebroadwan/aichef/pkg/session"
)

// sessionOutput is what the session command prints.
type sessionOutput struct {
	session.Snapshot

	LoginURL string `json:"login_url,omitempty"`
}

func sessionCmd() *cobra.Command {
	var (
		callbackURL string
		login       bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Settle the session once and print it",
		Long: `Decide the identity source, settle the session and print it as JSON.

With --login and no session, a login URL is printed; the pending login is
kept in the database, so a later run with --callback-url set to the URL
the provider redirected to completes it. Set MASTER_KEY_PATH or
CHEF_MASTER_KEY so the sealed verifier can be opened by that later run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.LoadConfig()
			cfg.CallbackURL = callbackURL
			cfg.LogOutput = os.Stderr

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer func() { _ = application.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			ctrl := application.Session()
			ctrl.Start(ctx)

			out := sessionOutput{Snapshot: ctrl.Snapshot()}
			if login && out.Status == session.StatusUnauthenticated {
				out.LoginURL, err = ctrl.Login(ctx)
				if err != nil {
					return fmt.Errorf("failed to start login: %w", err)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "URL the provider redirected to, completes a pending login")
	cmd.Flags().BoolVar(&login, "login", false, "Print a login URL when signed out")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the session to settle")

	return cmd
}
