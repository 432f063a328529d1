// Package cli implements the streamgen command line: running a producer and
// controlling a running one over its HTTP API.
package cli

import (
	"github.com/spf13/cobra"
)

var apiURL string

// NewRootCmd builds the streamgen command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "streamgen",
		Short: "Paced synthetic record producer",
		Long: "streamgen synthesizes structured records at a controlled cadence and\n" +
			"delivers them to a console, rolling file, or Kafka sink, with a live\n" +
			"HTTP control surface.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", "http://127.0.0.1:8000", "base URL of the producer API for control verbs")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newQuickCmd(),
		newStatusCmd(),
		newStartCmd(),
		newStopCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newUpdateRateCmd(),
		newTapCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
