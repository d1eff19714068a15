package main

import (
	"fmt"
	"os"

	"github.com/artpar/tablegate/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tablegate",
	Short: "HTTP server with one endpoint per database table",
	Long: `tablegate serves POST /{entity} for every table in its database.

POST /types creates a new table and the server rebinds its listener so the
new entity is served right away.

Quick start:
  tablegate serve                       # Start the server
  tablegate entities define post title:TEXT body:TEXT

Management:
  tablegate entities list   # Show the current route table
  tablegate validate        # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file path")
}

// loadConfig reads --config when it exists and falls back to TABLEGATE_*
// environment variables otherwise.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// cliLogger logs warnings and errors to stderr for one-shot commands.
func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
}
