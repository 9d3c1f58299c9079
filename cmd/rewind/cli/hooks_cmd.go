package cli

import (
	"errors"
	"fmt"

	"github.com/rewindkit/cli/cmd/rewind/cli/logging"
	"github.com/rewindkit/cli/cmd/rewind/cli/sessionid"

	"github.com/spf13/cobra"
)

func newHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "hooks",
		Short:  "Hook handlers",
		Long:   "Commands called by agent hooks. These are internal and not for direct user use.",
		Hidden: true, // Internal command, not for direct user use
	}

	cmd.AddCommand(newHooksTurnStartCmd())
	cmd.AddCommand(newHooksSessionSwitchCmd())
	cmd.AddCommand(newHooksSessionEndCmd())

	return cmd
}

// hookSessionID resolves the session identity from hook flags: an explicit
// --session wins, then the --session-file transcript.
func hookSessionID(sessionFlag, sessionFile string) (string, error) {
	if sessionFlag != "" {
		return sessionFlag, nil
	}
	if sessionFile != "" {
		if id := sessionid.FromFile(sessionFile); id != "" {
			return id, nil
		}
	}
	return "", errors.New("no session identity; pass --session or --session-file")
}

func newHooksTurnStartCmd() *cobra.Command {
	var sessionFlag string
	var sessionFile string

	cmd := &cobra.Command{
		Use:   "turn-start",
		Short: "Capture a checkpoint at the start of an agent turn",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, cfg, err := openEngine()
			if err != nil {
				// Hooks run on every turn; outside a repo they must be a
				// silent no-op rather than break the agent.
				return nil //nolint:nilerr // Intentional no-op outside a repository
			}
			if !cfg.Enabled {
				return nil
			}

			id, err := hookSessionID(sessionFlag, sessionFile)
			if err != nil {
				return err
			}

			logging.SetLogLevelGetter(func() string { return cfg.LogLevel })
			if err := logging.Init(id); err == nil {
				defer logging.Close()
			}
			ctx := logging.WithSession(cmd.Context(), id)

			started, err := mgr.StartTurn(ctx, id)
			if err != nil {
				return err
			}
			// The capture runs in the background; this process is about to
			// exit, so wait for it.
			mgr.Wait()

			if started {
				logging.Debug(ctx, "turn-start hook finished")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionFlag, "session", "", "Session identifier")
	cmd.Flags().StringVar(&sessionFile, "session-file", "", "Transcript file to derive the session identifier from")

	return cmd
}

func newHooksSessionSwitchCmd() *cobra.Command {
	var sessionFlag string
	var sessionFile string

	cmd := &cobra.Command{
		Use:   "session-switch",
		Short: "Switch the tracked session and rescan the checkpoint namespace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, cfg, err := openEngine()
			if err != nil {
				return nil //nolint:nilerr // Intentional no-op outside a repository
			}
			if !cfg.Enabled {
				return nil
			}

			id, err := hookSessionID(sessionFlag, sessionFile)
			if err != nil {
				return err
			}

			logging.SetLogLevelGetter(func() string { return cfg.LogLevel })
			if err := logging.Init(id); err == nil {
				defer logging.Close()
			}
			ctx := logging.WithSession(cmd.Context(), id)

			if err := mgr.SwitchSession(ctx, id); err != nil {
				return fmt.Errorf("session switch failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionFlag, "session", "", "Session identifier")
	cmd.Flags().StringVar(&sessionFile, "session-file", "", "Transcript file to derive the session identifier from")

	return cmd
}

func newHooksSessionEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session-end",
		Short: "Stop tracking the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, _, cfg, err := openEngine()
			if err != nil {
				return nil //nolint:nilerr // Intentional no-op outside a repository
			}
			if !cfg.Enabled {
				return nil
			}
			if err := mgr.EndSession(cmd.Context()); err != nil {
				return fmt.Errorf("session end failed: %w", err)
			}
			return nil
		},
	}
}
