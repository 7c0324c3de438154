package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Quorum multi-annotator review pipeline",
		Long:  "Quorum coordinates annotators reviewing GitHub discussions across three tasks, aggregates their submissions into consensus, and gates export on quality rules.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newDiscussionCmd())
	cmd.AddCommand(newAnnotationCmd())
	cmd.AddCommand(newConsensusCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newStatusFixCmd())
	cmd.AddCommand(newFlagCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "qr %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
