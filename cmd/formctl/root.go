package main

import (
	"fmt"
	"os"

	"github.com/Rrens/formvault/internal/config"
	"github.com/Rrens/formvault/internal/logger"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "formctl",
		Short: "Offline tooling for formvault field structures and records",
		Long: `formctl checks field structures and record values without a running server,
using the same rules the server applies, and mints development tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			_, err := logger.Setup(config.LoggingConfig{Level: level, Format: "console"})
			return err
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(newLintCmd(), newCheckCmd(), newTokenCmd())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
