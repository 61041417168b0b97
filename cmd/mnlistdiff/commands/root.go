package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1NF1N18Y/dash/libs/log"
)

var logger = log.NewNopLogger()

// global flags
var verbose bool

var RootCmd = &cobra.Command{
	Use:   "mnlistdiff",
	Short: "Inspect simplified masternode list diffs",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger = log.NewLogger(os.Stderr)
		}
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
