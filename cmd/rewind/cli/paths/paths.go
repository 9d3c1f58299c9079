// Package paths centralizes filesystem locations used by the rewind CLI
// and resolution of the enclosing git repository.
package paths

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Directory constants, relative to the repository root.
const (
	RewindDir          = ".rewind"
	RewindTmpDir       = ".rewind/tmp"
	RewindLogsDir      = ".rewind/logs"
	CurrentSessionFile = ".rewind/current_session"
	SettingsFileName   = "settings.json"
)

// repoRootCache caches the repository root to avoid repeated git commands.
// The cache is keyed by the current working directory to handle directory changes.
var (
	repoRootMu       sync.RWMutex
	repoRootCache    string
	repoRootCacheDir string
)

// RepoRoot returns the git repository root directory.
// Uses 'git rev-parse --show-toplevel' which works from any subdirectory.
// The result is cached per working directory.
// Returns an error if not inside a git repository.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	repoRootMu.RLock()
	if repoRootCache != "" && repoRootCacheDir == cwd {
		cached := repoRootCache
		repoRootMu.RUnlock()
		return cached, nil
	}
	repoRootMu.RUnlock()

	cmd := exec.CommandContext(context.Background(), "git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git repository root: %w", err)
	}

	root := strings.TrimSpace(string(output))

	repoRootMu.Lock()
	repoRootCache = root
	repoRootCacheDir = cwd
	repoRootMu.Unlock()

	return root, nil
}

// ResetRepoRootCache clears the cached repository root (for testing).
func ResetRepoRootCache() {
	repoRootMu.Lock()
	repoRootCache = ""
	repoRootCacheDir = ""
	repoRootMu.Unlock()
}

// AbsPath resolves a repo-relative path against the repository root.
// Returns the path joined with the repo root, or an error if the root
// cannot be determined.
func AbsPath(relPath string) (string, error) {
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, relPath), nil
}

// EnsureTmpDir creates the .rewind/tmp directory under the given repo root
// and returns its absolute path. Temporary index files live here, inside
// the tool's own dot-directory.
func EnsureTmpDir(repoRoot string) (string, error) {
	dir := filepath.Join(repoRoot, RewindTmpDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create tmp dir: %w", err)
	}
	return dir, nil
}
