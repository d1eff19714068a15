package main

import (
	"fmt"
	"os"

	"github.com/artpar/tablegate/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the tablegate server.

The server will:
  - Load configuration from tablegate.yaml (or --config)
  - Or load configuration from TABLEGATE_* environment variables
  - Open the database and apply migrations
  - Serve POST /{entity} for every table, plus POST /types
  - Watch the config file and rebind the listener when it changes

Environment variables (for Docker deployments):
  TABLEGATE_DATABASE_DRIVER  - sqlite, postgres or memory (default: sqlite)
  TABLEGATE_DATABASE_DSN     - Database path or URL (default: tablegate.db)
  TABLEGATE_SERVER_PORT      - Server port (default: 3000)
  TABLEGATE_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  tablegate serve
  tablegate serve --config /etc/tablegate/config.yaml

  # Docker (env vars only):
  TABLEGATE_SERVER_HOST=0.0.0.0 TABLEGATE_DATABASE_DSN=/data/tablegate.db tablegate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := bootstrap.Options{Version: version}

	if _, err := os.Stat(cfgFile); err == nil {
		opts.ConfigPath = cfgFile
	} else if cmd.Flags().Changed("config") {
		return fmt.Errorf("config file not found: %s", cfgFile)
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts.Config = cfg
	}

	a, err := bootstrap.New(opts)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return a.Run(cmd.Context())
}
