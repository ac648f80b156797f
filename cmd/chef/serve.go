package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/aichef/internal/chef/app"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local session service",
		Long: `Run the session service until interrupted.

Serves /v1/session, the /v1/api proxy, health probes and metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.LoadConfig()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			return application.Run()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP port (overrides PORT)")

	return cmd
}
