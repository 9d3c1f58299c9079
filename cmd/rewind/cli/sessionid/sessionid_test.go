package sessionid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromFile_EmbeddedID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc123.jsonl")
	content := `{"type":"summary","other":1}
{"sessionId":"9f8e7d6c-1a2b","type":"user"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write session file: %v", err)
	}

	got := FromFile(path)
	if got != "9f8e7d6c-1a2b" {
		t.Errorf("FromFile() = %q, want embedded session ID", got)
	}
}

func TestFromFile_FallsBackToStem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fallback-session.jsonl")
	if err := os.WriteFile(path, []byte("not json\n"), 0o644); err != nil {
		t.Fatalf("failed to write session file: %v", err)
	}

	if got := FromFile(path); got != "fallback-session" {
		t.Errorf("FromFile() = %q, want filename stem", got)
	}
}

func TestFromFile_MissingFileUsesStem(t *testing.T) {
	got := FromFile("/nonexistent/dir/deadbeef.jsonl")
	if got != "deadbeef" {
		t.Errorf("FromFile() = %q, want stem of missing file", got)
	}
}

func TestFromFile_Empty(t *testing.T) {
	if got := FromFile(""); got != "" {
		t.Errorf("FromFile(\"\") = %q, want empty", got)
	}
}
