package checkpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/rewindkit/cli/cmd/rewind/cli/logging"
)

// Restorer applies previously captured records back onto the working tree.
//
// A restore must not run concurrently with another restore or with a capture
// in the same repository; callers serialize those.
type Restorer struct {
	store Store
}

// NewRestorer returns a Restorer applying records through the given store.
func NewRestorer(store Store) *Restorer {
	return &Restorer{store: store}
}

// Restore applies the record in a fixed four-step sequence:
//
//  1. Force HEAD and the working tree to the recorded head. This is the
//     only step that deletes tracked files relative to the current head,
//     and it operates purely on tracked history.
//  2. Load the worktree tree into the real index (entries only, disk
//     untouched).
//  3. Materialize every index entry onto disk, overwriting existing files
//     but never deleting files that are not index entries. Files the
//     snapshot never captured - filtered files, ignored directories,
//     untracked content created since - are left untouched because they
//     were never index entries.
//  4. Load the staged tree into the real index, restoring the exact
//     staged/unstaged split that existed at capture time.
//
// The operation aborts at the first failed step; applied steps are not
// rolled back. Failures are reported as *RestoreError carrying the step, so
// hosts can tell the user exactly where a partial restore stopped.
func (r *Restorer) Restore(ctx context.Context, rec Record) error {
	start := time.Now()
	ctx = logging.WithCheckpoint(ctx, rec.ID)

	if rec.IsUnborn() {
		// Nothing to roll back to: the snapshot predates the first commit.
		return &RestoreError{Step: StepGuard, Err: ErrUnbornHead}
	}

	if err := r.store.ResetHard(ctx, rec.Head); err != nil {
		return &RestoreError{Step: StepResetHead, Err: err}
	}

	if err := r.store.ReadTreeReset(ctx, rec.WorktreeTree); err != nil {
		return &RestoreError{Step: StepLoadWorktree, Err: err}
	}

	if err := r.store.CheckoutIndexAll(ctx); err != nil {
		return &RestoreError{Step: StepMaterialize, Err: err}
	}

	if err := r.store.ReadTreeReset(ctx, rec.StagedTree); err != nil {
		return &RestoreError{Step: StepLoadStaged, Err: err}
	}

	logging.LogDuration(ctx, slog.LevelInfo, "checkpoint restored", start,
		slog.String("head", rec.Head),
		slog.Int("turn", rec.Turn),
	)

	return nil
}
