package checkpoint

import "context"

// Store provides the object-store primitives the engine sequences.
//
// The production implementation is GitStore, which delegates worktree and
// index mutation to the git CLI and object/ref reads to go-git. The interface
// exists so the capture, restore, selection, and retention sequencing can be
// tested against a fake in-memory store.
//
// Every method is a potential suspension point (the production store shells
// out per call); within one capture or restore, calls are strictly ordered.
type Store interface {
	// Head resolves the commit the repository's HEAD references.
	// Returns UnbornHead (not an error) when no commit exists yet.
	Head(ctx context.Context) (string, error)

	// WriteIndexTree materializes the current staging area as a tree object
	// without touching the working tree. Returns the tree hash.
	WriteIndexTree(ctx context.Context) (string, error)

	// ListTracked lists all tracked paths, relative to the repo root.
	ListTracked(ctx context.Context) ([]string, error)

	// ListUntracked lists untracked paths that are not excluded by standard
	// ignore rules, relative to the repo root.
	ListUntracked(ctx context.Context) ([]string, error)

	// WriteTreeFromPaths builds a tree object from the given worktree paths
	// using an isolated temporary index; the repository's real index is
	// never touched. Paths missing from the worktree are dropped.
	WriteTreeFromPaths(ctx context.Context, files []string) (string, error)

	// CommitMetadata creates a parentless commit whose tree is treeHash and
	// whose message is body, returning its content address.
	CommitMetadata(ctx context.Context, treeHash, body string) (string, error)

	// UpdateRef points the checkpoint ref named by id at the given commit.
	UpdateRef(ctx context.Context, id, commitHash string) error

	// DeleteRef removes the checkpoint ref named by id.
	DeleteRef(ctx context.Context, id string) error

	// ListCheckpoints scans the checkpoint ref namespace and returns all
	// parseable records, sorted by CreatedAt ascending (ID as tie-break).
	ListCheckpoints(ctx context.Context) ([]Record, error)

	// ResetHard forces HEAD and the working tree to the given commit.
	ResetHard(ctx context.Context, commit string) error

	// ReadTreeReset replaces the real index's entries with the given tree.
	// Files on disk are not touched.
	ReadTreeReset(ctx context.Context, tree string) error

	// CheckoutIndexAll writes every index entry onto disk, overwriting
	// existing files but never deleting files that are not index entries.
	CheckoutIndexAll(ctx context.Context) error
}
