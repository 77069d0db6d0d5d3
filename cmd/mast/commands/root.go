package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mast",
		Short: "OpenMast - Management Plane Persistence and Rebind",
		Long: `OpenMast manages the persisted state of a distributed orchestration
management plane: serializing the managed object graph into portable
snapshot documents and rebuilding the live graph from them on startup
or failover.

Features:
  - Portable per-object mementos with (kind, id) references
  - Cycle-safe restore with order-independent decoding
  - Lifecycle facades for objects not yet under management
  - OPA-based admission gating of snapshot documents
  - SQLite, file-tree, and in-memory snapshot stores
  - Strict and partial-failure restore modes`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newSnapshotCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd
}
