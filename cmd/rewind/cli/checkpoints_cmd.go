package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rewindkit/cli/cmd/rewind/cli/checkpoint"
	"github.com/rewindkit/cli/cmd/rewind/cli/paths"
	"github.com/rewindkit/cli/cmd/rewind/cli/session"
	"github.com/rewindkit/cli/cmd/rewind/cli/settings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// maxPreviewLines caps how many per-file change lines the restore preview prints.
const maxPreviewLines = 20

func newCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"cp"},
		Short:   "List, create, restore, and prune checkpoints",
	}

	cmd.AddCommand(newCheckpointsListCmd())
	cmd.AddCommand(newCheckpointsCreateCmd())
	cmd.AddCommand(newCheckpointsRestoreCmd())
	cmd.AddCommand(newCheckpointsPruneCmd())

	return cmd
}

// openEngine wires the store and manager for the current repository.
func openEngine() (*session.Manager, *checkpoint.GitStore, *settings.Settings, error) {
	root, err := paths.RepoRoot()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("not inside a git repository: %w", err)
	}

	cfg, err := settings.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := checkpoint.NewGitStore(root)
	if err != nil {
		return nil, nil, nil, err
	}

	return session.NewManager(store, cfg, root), store, cfg, nil
}

func newCheckpointsListCmd() *cobra.Command {
	var sessionFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured checkpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if checkDisabledGuard(cmd) {
				return nil
			}

			mgr, _, _, err := openEngine()
			if err != nil {
				return err
			}

			var records []checkpoint.Record
			if sessionFilter != "" {
				records, err = mgr.RecordsForSession(cmd.Context(), sessionFilter)
			} else {
				records, err = mgr.Records(cmd.Context())
			}
			if err != nil {
				return err
			}

			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No checkpoints captured yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSESSION\tTURN\tAGE")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", rec.ID, rec.SessionID, rec.Turn, formatAge(rec.CreatedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&sessionFilter, "session", "", "Only show checkpoints for this session")

	return cmd
}

func newCheckpointsCreateCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Capture a checkpoint of the current working tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if checkDisabledGuard(cmd) {
				return nil
			}

			mgr, _, _, err := openEngine()
			if err != nil {
				return err
			}

			id := sessionID
			if id == "" {
				id = currentOrManualSessionID()
			}

			rec, err := mgr.Capture(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Captured checkpoint %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session to record the checkpoint under")

	return cmd
}

// currentOrManualSessionID prefers the tracked session and falls back to a
// one-off manual session ID.
func currentOrManualSessionID() string {
	if root, err := paths.RepoRoot(); err == nil {
		if st := session.LoadState(root); st != nil {
			return st.SessionID
		}
	}
	return "manual-" + uuid.NewString()[:8]
}

func newCheckpointsRestoreCmd() *cobra.Command {
	var atFlag string
	var yesFlag bool

	cmd := &cobra.Command{
		Use:   "restore [checkpoint-id]",
		Short: "Restore the working tree to a checkpoint",
		Long: `Restore the working tree, index, and HEAD to a captured checkpoint.

Files created after the checkpoint are left in place; a restore never
deletes content the checkpoint didn't capture.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkDisabledGuard(cmd) {
				return nil
			}

			mgr, store, _, err := openEngine()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var id string
			if len(args) > 0 {
				id = args[0]
			}
			rec, err := resolveRestoreTarget(ctx, cmd, mgr, id, atFlag)
			if err != nil || rec == nil {
				return err
			}

			proceed, err := confirmRestore(ctx, cmd, store, *rec, yesFlag)
			if err != nil || !proceed {
				return err
			}

			if err := mgr.Restore(ctx, *rec); err != nil {
				return reportRestoreError(cmd, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restored checkpoint %s\n", rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&atFlag, "at", "", "Restore the checkpoint matching this timestamp (RFC 3339 or unix milliseconds)")
	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

// resolveRestoreTarget picks the record to restore from an explicit ID, a
// timestamp, or an interactive prompt. Returns nil with no error when the
// user cancelled or nothing matched and a message was already printed.
func resolveRestoreTarget(ctx context.Context, cmd *cobra.Command, mgr *session.Manager, id, at string) (*checkpoint.Record, error) {
	if id != "" {
		rec, ok, err := mgr.Find(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no checkpoint with ID %q", id)
		}
		return &rec, nil
	}

	if at != "" {
		target, err := parseTimestamp(at)
		if err != nil {
			return nil, err
		}

		sel, err := mgr.SelectForRestore(ctx, target)
		if err != nil {
			return nil, err
		}
		if !sel.Found() {
			fmt.Fprintf(cmd.OutOrStdout(), "No checkpoint at or after %s.\n", target.Format(time.RFC3339))
			if sel.Latest != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "The most recent checkpoint is %s (%s).\n",
					sel.Latest.ID, formatAge(sel.Latest.CreatedAt))
			}
			return nil, nil
		}
		return sel.Match, nil
	}

	return promptForRecord(ctx, mgr)
}

// promptForRecord offers an interactive checkpoint picker.
func promptForRecord(ctx context.Context, mgr *session.Manager) (*checkpoint.Record, error) {
	if !isInteractive() {
		return nil, errors.New("no checkpoint specified; pass an ID or --at timestamp")
	}

	records, err := mgr.Records(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("no checkpoints captured yet")
	}

	options := make([]huh.Option[string], 0, len(records)+1)
	for i := len(records) - 1; i >= 0; i-- { // newest first
		rec := records[i]
		label := fmt.Sprintf("%s  turn %d  %s", rec.SessionID, rec.Turn, formatAge(rec.CreatedAt))
		options = append(options, huh.NewOption(label, rec.ID))
	}
	options = append(options, huh.NewOption("Cancel", "cancel"))

	var selectedID string
	form := NewAccessibleForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a checkpoint to restore").
				Description("Your working tree will be restored to this checkpoint's state").
				Options(options...).
				Value(&selectedID),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}
	if selectedID == "cancel" {
		return nil, nil
	}

	for i := range records {
		if records[i].ID == selectedID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// confirmRestore previews the change set and asks for confirmation unless
// yes is set. Returns false when the user declines.
func confirmRestore(ctx context.Context, cmd *cobra.Command, store *checkpoint.GitStore, rec checkpoint.Record, yes bool) (bool, error) {
	changes, err := PreviewRestore(ctx, store, rec)
	if err == nil && len(changes) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Restoring %s would change %d file(s):\n", rec.ID, len(changes))
		for i, c := range changes {
			if i == maxPreviewLines {
				fmt.Fprintf(cmd.OutOrStdout(), "  ... and %d more\n", len(changes)-maxPreviewLines)
				break
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatChange(c))
		}
	}

	if yes {
		return true, nil
	}
	if !isInteractive() {
		return false, errors.New("refusing to restore without confirmation; pass --yes")
	}

	var confirm bool
	form := NewAccessibleForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Restore %s?", rec.ID)).
				Description("Uncommitted changes made after this checkpoint will be overwritten where they overlap.").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	if !confirm {
		fmt.Fprintln(cmd.OutOrStdout(), "Restore cancelled.")
	}
	return confirm, nil
}

// reportRestoreError prints a restore failure with enough context to act on.
func reportRestoreError(cmd *cobra.Command, err error) error {
	if errors.Is(err, checkpoint.ErrUnbornHead) {
		fmt.Fprintln(cmd.ErrOrStderr(), "This checkpoint was captured before any commit existed and cannot be restored.")
		return NewSilentError(err)
	}

	var restoreErr *checkpoint.RestoreError
	if errors.As(err, &restoreErr) && restoreErr.PartiallyApplied() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Restore failed at %s: %v\n", restoreErr.Step, restoreErr.Err)
		fmt.Fprintln(cmd.ErrOrStderr(), "The working tree may be partially restored; run 'git status' to inspect it.")
		return NewSilentError(err)
	}
	return err
}

func newCheckpointsPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete the oldest checkpoints beyond the retention cap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if checkDisabledGuard(cmd) {
				return nil
			}

			mgr, _, cfg, err := openEngine()
			if err != nil {
				return err
			}

			deleted := mgr.Prune(cmd.Context())
			if deleted == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing to prune (cap is %d).\n", cfg.MaxCheckpoints)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d checkpoint(s).\n", deleted)
			return nil
		},
	}

	return cmd
}

// parseTimestamp accepts RFC 3339 or unix milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: use RFC 3339 or unix milliseconds", s)
}

// formatAge renders how long ago t was in coarse units.
func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
