package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chef",
		Short: "AI Chef session and credential service",
		Long: `chef keeps an AI Chef session signed in.

It signs the user in through Keycloak web SSO, or through the launch
assertion when started inside the host app, renews the credentials in
the background and forwards business API calls with a bearer token.

Configuration comes from the environment (KEYCLOAK_URL, KEYCLOAK_REALM,
KEYCLOAK_CLIENT_ID, API_BASE_URL, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		sessionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
