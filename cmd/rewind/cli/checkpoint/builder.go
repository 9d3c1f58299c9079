package checkpoint

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rewindkit/cli/cmd/rewind/cli/logging"
	"github.com/rewindkit/cli/cmd/rewind/cli/paths"
	"github.com/rewindkit/cli/cmd/rewind/cli/validation"
)

// CaptureOptions parameterize a single snapshot.
type CaptureOptions struct {
	// ID is the checkpoint identifier. When empty, one is derived from
	// SessionID, Turn, and the capture time via NewID.
	ID string

	// SessionID is the logical session the snapshot belongs to.
	SessionID string

	// Turn is the monotonic position within the session.
	Turn int
}

// Builder captures working tree state into checkpoint records.
//
// A capture never touches the repository's real index: the worktree tree is
// built in an isolated temporary index, so captures can run concurrently with
// each other and with the user's own staging activity.
type Builder struct {
	store    Store
	filter   *Filter
	repoRoot string
}

// NewBuilder returns a Builder writing through the given store. repoRoot is
// used to stat untracked candidates during filtering.
func NewBuilder(store Store, filter *Filter, repoRoot string) *Builder {
	return &Builder{
		store:    store,
		filter:   filter,
		repoRoot: repoRoot,
	}
}

// Capture records the three-part state (HEAD, staged tree, worktree tree)
// and registers it under a new checkpoint ref. Ref creation is the commit
// point: if any earlier step fails, no record exists.
//
// Returns a *CaptureError naming the failed step on any failure.
func (b *Builder) Capture(ctx context.Context, opts CaptureOptions) (Record, error) {
	start := time.Now()

	if err := validation.ValidateSessionID(opts.SessionID); err != nil {
		return Record{}, &CaptureError{Step: "validate options", Err: err}
	}

	createdAt := time.Now().Truncate(time.Millisecond)
	id := opts.ID
	if id == "" {
		id = NewID(opts.SessionID, opts.Turn, createdAt)
	}
	if err := validation.ValidateCheckpointID(id); err != nil {
		return Record{}, &CaptureError{Step: "validate options", Err: err}
	}

	ctx = logging.WithCheckpoint(ctx, id)

	// A repository with zero commits is still snapshot-able; Head reports
	// the sentinel instead of failing.
	head, err := b.store.Head(ctx)
	if err != nil {
		return Record{}, &CaptureError{Step: "resolve head", Err: err}
	}

	stagedTree, err := b.store.WriteIndexTree(ctx)
	if err != nil {
		return Record{}, &CaptureError{Step: "write index tree", Err: err}
	}

	tracked, err := b.store.ListTracked(ctx)
	if err != nil {
		return Record{}, &CaptureError{Step: "list tracked files", Err: err}
	}
	untracked, err := b.store.ListUntracked(ctx)
	if err != nil {
		return Record{}, &CaptureError{Step: "list untracked files", Err: err}
	}

	untracked = dropOwnDir(untracked)

	files := tracked
	if b.filter != nil {
		files = append(files, b.filter.FilterUntracked(b.repoRoot, untracked)...)
	} else {
		files = append(files, untracked...)
	}

	worktreeTree, err := b.store.WriteTreeFromPaths(ctx, files)
	if err != nil {
		return Record{}, &CaptureError{Step: "write worktree tree", Err: err}
	}

	rec := Record{
		ID:           id,
		SessionID:    opts.SessionID,
		Turn:         opts.Turn,
		Head:         head,
		StagedTree:   stagedTree,
		WorktreeTree: worktreeTree,
		CreatedAt:    createdAt,
	}

	commitHash, err := b.store.CommitMetadata(ctx, worktreeTree, rec.EncodeBody())
	if err != nil {
		return Record{}, &CaptureError{Step: "commit metadata", Err: err}
	}

	if err := b.store.UpdateRef(ctx, id, commitHash); err != nil {
		return Record{}, &CaptureError{Step: "update ref", Err: err}
	}
	rec.CommitHash = commitHash

	logging.LogDuration(ctx, slog.LevelDebug, "checkpoint captured", start,
		slog.String("head", head),
		slog.Int("turn", opts.Turn),
		slog.Int("files", len(files)),
	)

	return rec, nil
}

// dropOwnDir removes paths inside the engine's own dot-directory from the
// untracked candidates. Snapshots must never capture logs or temporary
// indexes, whether or not the user gitignores the directory.
func dropOwnDir(untracked []string) []string {
	var result []string
	for _, p := range untracked {
		if p == paths.RewindDir || strings.HasPrefix(p, paths.RewindDir+"/") {
			continue
		}
		result = append(result, p)
	}
	return result
}
