// Package cmd implements the thapargpt command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thapargpt/thapargpt/internal/config"
	"github.com/thapargpt/thapargpt/internal/log"
)

var (
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "thapargpt",
	Short: "ThaparGPT - multilingual assistant for Thapar Institute",
	Long: `ThaparGPT answers questions about Thapar Institute of Engineering
and Technology, grounded in the institute knowledge base. It detects the
question's language, retrieves relevant reference material, and answers
in the same language. Attachments (images, PDFs, text files) are
supported.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	return log.New(log.Config{Level: log.ParseLevel(flagLogLevel), JSON: flagLogJSON})
}

// loadConfig loads and validates configuration for commands that need
// the full application.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}
