package checkpoint

import (
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which untracked paths are eligible for inclusion in a
// snapshot, keeping snapshots small and fast. It is applied on top of
// standard ignore rules, which are honored as a baseline: the candidates it
// sees have already passed gitignore handling.
type Filter struct {
	// IgnoredDirs are directory name patterns; a path with any component
	// matching one is excluded entirely, regardless of ignore-file rules.
	// Patterns use doublestar syntax but are matched per component, so plain
	// names like "node_modules" work as-is.
	IgnoredDirs []string

	// MaxFileSize excludes untracked files larger than this many bytes.
	MaxFileSize int64

	// MaxDirFiles excludes, in its entirety, any untracked directory
	// containing more than this many files.
	MaxDirFiles int
}

// NewFilter builds a Filter. Zero thresholds disable the respective check.
func NewFilter(ignoredDirs []string, maxFileSize int64, maxDirFiles int) *Filter {
	return &Filter{
		IgnoredDirs: ignoredDirs,
		MaxFileSize: maxFileSize,
		MaxDirFiles: maxDirFiles,
	}
}

// Eligible reports whether a single untracked path may be included, based on
// its components and size. Directory-population limits need the full
// candidate set and are applied by FilterUntracked.
func (f *Filter) Eligible(relPath string, size int64) bool {
	if f.hasIgnoredComponent(relPath) {
		return false
	}
	if f.MaxFileSize > 0 && size > f.MaxFileSize {
		return false
	}
	return true
}

// FilterUntracked applies the full eligibility policy to a set of untracked
// candidate paths (repo-relative, slash-separated, as git reports them).
// Files that cannot be stat'ed are dropped; they may have vanished since
// enumeration.
func (f *Filter) FilterUntracked(repoRoot string, candidates []string) []string {
	// First pass: per-file checks, and per-directory population counts over
	// every ancestor so an oversized directory excludes its whole subtree.
	dirCounts := make(map[string]int)
	var kept []string

	for _, p := range candidates {
		if f.hasIgnoredComponent(p) {
			continue
		}

		info, err := os.Lstat(filepath.Join(repoRoot, filepath.FromSlash(p)))
		if err != nil {
			continue
		}
		if f.MaxFileSize > 0 && info.Mode().IsRegular() && info.Size() > f.MaxFileSize {
			continue
		}

		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			dirCounts[dir]++
		}
		kept = append(kept, p)
	}

	if f.MaxDirFiles <= 0 {
		return kept
	}

	// Second pass: drop files under any directory whose population exceeds
	// the cap.
	var result []string
	for _, p := range kept {
		excluded := false
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if dirCounts[dir] > f.MaxDirFiles {
				excluded = true
				break
			}
		}
		if !excluded {
			result = append(result, p)
		}
	}
	return result
}

// hasIgnoredComponent reports whether any path component matches an
// ignored-directory pattern.
func (f *Filter) hasIgnoredComponent(relPath string) bool {
	if len(f.IgnoredDirs) == 0 {
		return false
	}
	rest := relPath
	for rest != "" {
		var component string
		component, rest, _ = cutSlash(rest)
		for _, pattern := range f.IgnoredDirs {
			if ok, err := doublestar.Match(pattern, component); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// cutSlash splits off the first slash-separated component of a path.
func cutSlash(p string) (component, rest string, found bool) {
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			return p[:i], p[i+1:], true
		}
	}
	return p, "", false
}
