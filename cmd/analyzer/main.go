package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-media-analyzer/internal/config"
	"go-media-analyzer/internal/logger"
)

var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "Media analyzer - detection, classification and text recognition",
	Long: `analyzer serves the media analysis API and manages its persisted
settings and history.

Examples:
  # Start the HTTP server
  analyzer serve

  # Show the persisted settings as JSON
  analyzer settings show --format json

  # Drop every history entry
  analyzer history clear
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(settingsCmd)
}

// loadConfig reads configuration and applies its logging settings
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
