// Focusd applies batches of OmniFocus mutations for LLM tool callers.
//
// The serve command exposes the batch orchestrator as MCP tools on stdio and,
// when enabled, as an HTTP API. The run and plan commands apply or order a
// batch file from the command line.
//
// Usage:
//
//	# Serve MCP on stdio
//	focusd serve
//
//	# Order a batch without touching OmniFocus
//	focusd plan batch.yaml
//
//	# Apply a batch against an in-memory bridge
//	focusd run --bridge memory batch.json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// rootFlags are shared by every command.
type rootFlags struct {
	configPath string
	bridgeKind string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "focusd",
		Short: "Batch mutation orchestrator for OmniFocus",
		Long: `focusd validates, orders and applies batches of OmniFocus mutations.

Operations in a batch may declare a temp_id and reference each other; focusd
orders them so every reference is created first and rewrites temp ids to the
real ids OmniFocus assigns.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate(versionString() + "\n")

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/focusd/config.yaml)")
	root.PersistentFlags().StringVar(&flags.bridgeKind, "bridge", "", "override bridge kind (osascript or memory)")

	root.AddCommand(
		newServeCmd(flags),
		newRunCmd(flags),
		newPlanCmd(flags),
		newStatusCmd(flags),
		newWatchCmd(flags),
		newVersionCmd(),
	)
	return root
}

func versionString() string {
	return fmt.Sprintf("focusd %s (commit %s, built %s)", version, gitCommit, buildDate)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}
