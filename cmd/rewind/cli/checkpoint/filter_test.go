package checkpoint

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligible(t *testing.T) {
	f := NewFilter([]string{"node_modules", ".venv"}, 1024, 200)

	tests := []struct {
		path string
		size int64
		want bool
	}{
		{path: "notes.txt", size: 10, want: true},
		{path: "big.bin", size: 2048, want: false},
		{path: "exactly.bin", size: 1024, want: true},
		{path: "node_modules/pkg/index.js", size: 10, want: false},
		{path: "src/node_modules/index.js", size: 10, want: false},
		{path: "src/.venv/lib/mod.py", size: 10, want: false},
		{path: "my_node_modules/file.txt", size: 10, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Eligible(tt.path, tt.size))
		})
	}
}

func TestEligiblePatterns(t *testing.T) {
	f := NewFilter([]string{"*.egg-info", "build*"}, 0, 0)

	assert.False(t, f.Eligible("pkg.egg-info/PKG-INFO", 1))
	assert.False(t, f.Eligible("build-x64/out.o", 1))
	assert.True(t, f.Eligible("rebuild/out.o", 1))
}

func TestFilterUntrackedSizeCap(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.txt", make([]byte, 10))
	writeFile(t, root, "big.bin", make([]byte, 100))

	f := NewFilter(nil, 50, 0)
	got := f.FilterUntracked(root, []string{"small.txt", "big.bin"})
	assert.Equal(t, []string{"small.txt"}, got)
}

func TestFilterUntrackedDropsVanishedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "present.txt", []byte("x"))

	f := NewFilter(nil, 0, 0)
	got := f.FilterUntracked(root, []string{"present.txt", "gone.txt"})
	assert.Equal(t, []string{"present.txt"}, got)
}

func TestFilterUntrackedDirCountCap(t *testing.T) {
	root := t.TempDir()
	var candidates []string
	for i := 0; i < 5; i++ {
		rel := filepath.Join("crowded", fmt.Sprintf("f%d.txt", i))
		writeFile(t, root, rel, []byte("x"))
		candidates = append(candidates, "crowded/"+fmt.Sprintf("f%d.txt", i))
	}
	writeFile(t, root, filepath.Join("sparse", "one.txt"), []byte("x"))
	candidates = append(candidates, "sparse/one.txt")

	f := NewFilter(nil, 0, 3)
	got := f.FilterUntracked(root, candidates)
	assert.Equal(t, []string{"sparse/one.txt"}, got)
}

func TestFilterUntrackedDirCountIsRecursive(t *testing.T) {
	root := t.TempDir()
	var candidates []string
	for i := 0; i < 4; i++ {
		rel := fmt.Sprintf("gen/sub%d/f.txt", i)
		writeFile(t, root, filepath.FromSlash(rel), []byte("x"))
		candidates = append(candidates, rel)
	}

	// Each subdirectory holds one file, but the parent holds four in total,
	// so the whole subtree is excluded.
	f := NewFilter(nil, 0, 3)
	got := f.FilterUntracked(root, candidates)
	assert.Empty(t, got)
}

func TestFilterZeroThresholdsDisableChecks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "huge.bin", make([]byte, 4096))

	f := NewFilter(nil, 0, 0)
	got := f.FilterUntracked(root, []string{"huge.bin"})
	assert.Equal(t, []string{"huge.bin"}, got)
}
