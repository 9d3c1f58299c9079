// Package sessionid derives stable session identifiers from agent session files.
// This package has minimal dependencies to avoid import cycles.
package sessionid

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// maxProbeLine bounds how much of the first transcript line is read when
// probing for an embedded session ID.
const maxProbeLine = 1 << 20

// sessionLine is the subset of a transcript JSONL line we care about.
type sessionLine struct {
	SessionID string `json:"sessionId"`
}

// FromFile returns the stable session identifier for an agent session file.
//
// Agent transcripts are JSONL where each line carries a sessionId field; the
// first parseable line wins. When the file is missing or carries no session ID,
// the filename stem is used so branched transcripts that logically continue a
// session still resolve. Returns "" only when no identifier can be derived.
func FromFile(path string) string {
	if path == "" {
		return ""
	}

	if id := probeEmbeddedID(path); id != "" {
		return id
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if stem == "" || stem == "." {
		return ""
	}
	return stem
}

// probeEmbeddedID scans the leading lines of a JSONL session file for a
// sessionId field. Returns "" if the file cannot be read or no line carries one.
func probeEmbeddedID(path string) string {
	f, err := os.Open(path) //nolint:gosec // path supplied by the host event source
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxProbeLine)
	for i := 0; scanner.Scan() && i < 10; i++ {
		var line sessionLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.SessionID != "" {
			return line.SessionID
		}
	}
	return ""
}
