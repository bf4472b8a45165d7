// Package cli wires the icalfilter commands.
package cli

import (
	"github.com/spf13/cobra"

	appLog "icalfilter/internal/log"
)

var version = "dev"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "icalfilter",
	Short: "Build filtered calendar feed links",
	Long: `icalfilter serves a small form that turns a calendar feed URL, a set of
weekdays and optional name/description patterns into a link to the
filtering endpoint, and offers the same as command-line tools.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if cmd.Flags().Changed("log-level") {
			appLog.SetLevel(appLog.ParseLevel(logLevel))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
