package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rewindkit/cli/cmd/rewind/cli/paths"
	"github.com/rewindkit/cli/cmd/rewind/cli/validation"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// metadataAuthor is the signature used on metadata commit objects. These
// commits never enter the primary history, so a fixed identity keeps record
// addresses independent of the user's git config.
const (
	metadataAuthorName  = "rewind"
	metadataAuthorEmail = "rewind@local"
)

// GitStore implements Store against a real repository.
//
// Mutating worktree and index operations go through the git CLI: go-git's
// checkout deletes untracked files (go-git/go-git#970), which would violate
// the non-destructive restore guarantee, and it has no equivalent of
// checkout-index. Object and ref reads use go-git plumbing directly.
type GitStore struct {
	repoRoot string
	repo     *git.Repository
}

// NewGitStore opens the repository rooted at or above dir.
func NewGitStore(dir string) (*GitStore, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	return &GitStore{
		repoRoot: wt.Filesystem.Root(),
		repo:     repo,
	}, nil
}

// RepoRoot returns the absolute path of the repository's working tree root.
func (s *GitStore) RepoRoot() string {
	return s.repoRoot
}

// Head resolves the commit HEAD references, or UnbornHead when no commit
// exists yet. A repository with zero commits must still be snapshot-able.
func (s *GitStore) Head(ctx context.Context) (string, error) {
	_ = ctx

	head, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return UnbornHead, nil
		}
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// WriteIndexTree materializes the real index as a tree object.
func (s *GitStore) WriteIndexTree(ctx context.Context) (string, error) {
	out, err := s.runGit(ctx, nil, nil, "write-tree")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ListTracked lists all tracked paths relative to the repo root.
func (s *GitStore) ListTracked(ctx context.Context) ([]string, error) {
	out, err := s.runGit(ctx, nil, nil, "ls-files", "-z")
	if err != nil {
		return nil, err
	}
	return splitNul(out), nil
}

// ListUntracked lists untracked paths not excluded by standard ignore rules.
func (s *GitStore) ListUntracked(ctx context.Context) ([]string, error) {
	out, err := s.runGit(ctx, nil, nil, "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, err
	}
	return splitNul(out), nil
}

// WriteTreeFromPaths builds a tree from the given worktree paths using a
// temporary index file. The temporary index is removed unconditionally, so a
// failed capture leaves no residue and concurrent captures never contend.
func (s *GitStore) WriteTreeFromPaths(ctx context.Context, files []string) (string, error) {
	tmpDir, err := paths.EnsureTmpDir(s.repoRoot)
	if err != nil {
		return "", err
	}

	tmpIndex, err := os.CreateTemp(tmpDir, "index-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary index: %w", err)
	}
	tmpIndexPath := tmpIndex.Name()
	_ = tmpIndex.Close()
	// git rejects an existing zero-length index file, so reserve the unique
	// name but let update-index create the file itself.
	_ = os.Remove(tmpIndexPath)
	defer func() { _ = os.Remove(tmpIndexPath) }()

	env := []string{"GIT_INDEX_FILE=" + tmpIndexPath}

	// --remove drops paths that vanished from the worktree so the temporary
	// index mirrors what is actually on disk.
	var stdin bytes.Buffer
	for _, f := range files {
		stdin.WriteString(f)
		stdin.WriteByte(0)
	}
	if _, err := s.runGit(ctx, env, stdin.Bytes(), "update-index", "--add", "--remove", "-z", "--stdin"); err != nil {
		return "", err
	}

	out, err := s.runGit(ctx, env, nil, "write-tree")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// CommitMetadata creates a parentless commit carrying the metadata body as
// its message, committed against the given tree. The commit is encoded with
// go-git directly; it never touches HEAD or any branch.
func (s *GitStore) CommitMetadata(ctx context.Context, treeHash, body string) (string, error) {
	_ = ctx

	sig := object.Signature{
		Name:  metadataAuthorName,
		Email: metadataAuthorEmail,
		When:  time.Now(),
	}

	commit := &object.Commit{
		TreeHash:  plumbing.NewHash(treeHash),
		Author:    sig,
		Committer: sig,
		Message:   body,
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return "", fmt.Errorf("failed to encode metadata commit: %w", err)
	}

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("failed to store metadata commit: %w", err)
	}

	return hash.String(), nil
}

// UpdateRef points the checkpoint ref named by id at the given commit.
// This is the commit point of a capture: until the ref exists, the record
// does not.
func (s *GitStore) UpdateRef(ctx context.Context, id, commitHash string) error {
	_ = ctx

	if err := validation.ValidateCheckpointID(id); err != nil {
		return err
	}

	ref := plumbing.NewHashReference(plumbing.ReferenceName(RefPrefix+id), plumbing.NewHash(commitHash))
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to update checkpoint ref %s: %w", id, err)
	}
	return nil
}

// DeleteRef removes the checkpoint ref named by id.
func (s *GitStore) DeleteRef(ctx context.Context, id string) error {
	_ = ctx

	if err := validation.ValidateCheckpointID(id); err != nil {
		return err
	}

	if err := s.repo.Storer.RemoveReference(plumbing.ReferenceName(RefPrefix + id)); err != nil {
		return fmt.Errorf("failed to delete checkpoint ref %s: %w", id, err)
	}
	return nil
}

// ListCheckpoints scans the checkpoint ref namespace and returns all
// parseable records sorted by CreatedAt ascending, ID as tie-break.
// Refs whose metadata cannot be read are skipped, not fatal: a half-written
// ref from a crashed process must not poison listing.
func (s *GitStore) ListCheckpoints(ctx context.Context) ([]Record, error) {
	_ = ctx

	iter, err := s.repo.References()
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}

	var records []Record
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, RefPrefix) {
			return nil
		}
		id := strings.TrimPrefix(name, RefPrefix)

		commit, commitErr := s.repo.CommitObject(ref.Hash())
		if commitErr != nil {
			return nil //nolint:nilerr // Skip refs we can't read (non-fatal)
		}

		rec, parseErr := ParseBody(id, commit.Message)
		if parseErr != nil {
			return nil //nolint:nilerr // Skip malformed metadata (non-fatal)
		}
		rec.CommitHash = ref.Hash().String()

		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate references: %w", err)
	}

	sortRecords(records)
	return records, nil
}

// ResetHard forces HEAD and the working tree to the given commit.
func (s *GitStore) ResetHard(ctx context.Context, commit string) error {
	_, err := s.runGit(ctx, nil, nil, "reset", "--hard", commit)
	return err
}

// ReadTreeReset replaces the real index's entries with the given tree
// without touching files on disk.
func (s *GitStore) ReadTreeReset(ctx context.Context, tree string) error {
	_, err := s.runGit(ctx, nil, nil, "read-tree", "--reset", tree)
	return err
}

// CheckoutIndexAll writes every index entry onto disk. Files that are not
// index entries are left alone; this is what keeps restore non-destructive
// for content the snapshot never captured.
func (s *GitStore) CheckoutIndexAll(ctx context.Context) error {
	_, err := s.runGit(ctx, nil, nil, "checkout-index", "-a", "-f")
	return err
}

// ReadBlob returns the content of path within the given tree.
// Used by the CLI to preview a checkpoint's version of a file.
func (s *GitStore) ReadBlob(ctx context.Context, treeHash, path string) ([]byte, error) {
	_ = ctx

	tree, err := s.repo.TreeObject(plumbing.NewHash(treeHash))
	if err != nil {
		return nil, fmt.Errorf("failed to get tree %s: %w", treeHash, err)
	}

	file, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s in tree: %w", path, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return []byte(content), nil
}

// TreePaths returns all file paths within the given tree, sorted.
func (s *GitStore) TreePaths(ctx context.Context, treeHash string) ([]string, error) {
	_ = ctx

	tree, err := s.repo.TreeObject(plumbing.NewHash(treeHash))
	if err != nil {
		return nil, fmt.Errorf("failed to get tree %s: %w", treeHash, err)
	}

	var result []string
	iter := tree.Files()
	err = iter.ForEach(func(f *object.File) error {
		result = append(result, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk tree %s: %w", treeHash, err)
	}

	sort.Strings(result)
	return result, nil
}

// runGit executes a git command in the repository root. extraEnv entries are
// appended to the inherited environment; stdin may be nil.
func (s *GitStore) runGit(ctx context.Context, extraEnv []string, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.repoRoot
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("git %s: %s: %w", args[0], msg, err)
	}
	return out, nil
}

// sortRecords orders records by CreatedAt ascending, breaking ties by ID so
// listing order is stable.
func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

// splitNul splits NUL-terminated git output into paths.
func splitNul(out []byte) []string {
	var result []string
	for _, p := range bytes.Split(out, []byte{0}) {
		if len(p) > 0 {
			result = append(result, string(p))
		}
	}
	return result
}
