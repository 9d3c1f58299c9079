// Package cli implements the rewind command-line interface.
package cli

import (
	"fmt"
	"runtime"

	"github.com/rewindkit/cli/cmd/rewind/cli/settings"
	"github.com/rewindkit/cli/cmd/rewind/cli/telemetry"

	"github.com/spf13/cobra"
)

const gettingStarted = `

Getting Started:
  rewind captures a checkpoint of your working tree at the start of every
  agent turn and lets you restore any of them later. Run
  'rewind checkpoints list' to see what has been captured.

`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Checkpoint and restore working tree state for agent sessions",
		Long:  "Git-backed checkpointing for agent sessions" + gettingStarted,
		// Let main.go handle error printing to avoid duplication
		SilenceErrors: true,
		// Hide completion command from help but keep it functional
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			// Load telemetry preference from settings (ignore errors - nil defaults to disabled)
			var telemetryEnabled *bool
			enabled := false
			cfg, err := settings.Load()
			if err == nil {
				telemetryEnabled = cfg.Telemetry
				enabled = cfg.Enabled
			}

			telemetryClient := telemetry.NewClient(Version, telemetryEnabled)
			defer telemetryClient.Close()
			telemetryClient.TrackCommand(cmd, 0, enabled)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCheckpointsCmd())
	cmd.AddCommand(newHooksCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("rewind %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// checkDisabledGuard prints a notice and reports true when rewind is turned
// off in settings.
func checkDisabledGuard(cmd *cobra.Command) bool {
	cfg, err := settings.Load()
	if err != nil || cfg.Enabled {
		return false
	}
	fmt.Fprintln(cmd.OutOrStdout(), "rewind is disabled in .rewind/settings.json")
	return true
}
