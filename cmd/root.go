// root.go defines the root command and CLI execution entry point.
//
// Design: each subcommand is constructed by its own new*Cmd function
// and registered here. The persistent pre-run loads configuration once
// so every command sees the same defaults; audit logging opens in
// Execute and is best-effort throughout.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustscout/rustscout/internal/config"
	"github.com/rustscout/rustscout/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "rustscout",
	Short: "Parallel pattern-driven code search and replace",
	Long: `A parallel search-and-replace engine for source trees: ripgrep-class
search, safe byte-range replacements with per-file atomic publication,
and a patch-based undo subsystem that survives workspace moves.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if output != "" && output != "json" {
			return fmt.Errorf("invalid output format: %s (valid: json)", output)
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadPath(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command and handles process lifecycle.
// Opens audit logging, executes the command, and exits non-zero on
// error.
func Execute() {
	// Initialise audit logger (warn if it fails, but continue)
	if err := log.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: audit log unavailable: %v\n", err)
	}
	defer log.Close()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.AddCommand(
		newSearchCmd(),
		newReplaceCmd(),
		newUndoCmd(),
		newInitCmd(),
		newCacheCmd(),
		newWatchCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
}
