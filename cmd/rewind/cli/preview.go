package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rewindkit/cli/cmd/rewind/cli/checkpoint"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileChange summarizes how one file differs between the current working
// tree and a checkpoint's worktree tree.
type FileChange struct {
	Path    string
	Added   int // lines the restore would bring back
	Removed int // lines the restore would drop
	// Status is "modified", "restored" (exists only in the checkpoint), or
	// "kept" (exists only on disk; restores never delete files).
	Status string
}

// PreviewRestore computes a per-file change summary for restoring rec.
// Binary-looking content is summarized without line counts.
func PreviewRestore(ctx context.Context, store *checkpoint.GitStore, rec checkpoint.Record) ([]FileChange, error) {
	treePaths, err := store.TreePaths(ctx, rec.WorktreeTree)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint tree: %w", err)
	}

	var changes []FileChange
	for _, p := range treePaths {
		snap, err := store.ReadBlob(ctx, rec.WorktreeTree, p)
		if err != nil {
			continue
		}

		current, err := os.ReadFile(filepath.Join(store.RepoRoot(), filepath.FromSlash(p)))
		if os.IsNotExist(err) {
			changes = append(changes, FileChange{
				Path:   p,
				Added:  countLines(string(snap)),
				Status: "restored",
			})
			continue
		}
		if err != nil {
			continue
		}
		if string(current) == string(snap) {
			continue
		}

		added, removed := diffLineCounts(string(current), string(snap))
		changes = append(changes, FileChange{
			Path:    p,
			Added:   added,
			Removed: removed,
			Status:  "modified",
		})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

// diffLineCounts returns how many lines are added and removed going from old
// to new content, using a line-based diff.
func diffLineCounts(oldContent, newContent string) (added, removed int) {
	dmp := diffmatchpatch.New()
	text1, text2, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(text1, text2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += countLines(d.Text)
		case diffmatchpatch.DiffEqual:
		}
	}
	return added, removed
}

// countLines returns the number of lines in a string. An empty string has 0
// lines; a string without a trailing newline still counts its last line.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// formatChange renders one change as a short status line.
func formatChange(c FileChange) string {
	switch c.Status {
	case "restored":
		return fmt.Sprintf("  + %s (%d lines)", c.Path, c.Added)
	default:
		return fmt.Sprintf("  ~ %s (+%d/-%d)", c.Path, c.Added, c.Removed)
	}
}
