package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rewindkit/cli/cmd/rewind/cli/paths"
)

// State is the per-repository record of the session currently being tracked.
// It lives in the repo's dot-directory, not in git objects: it is transient
// coordination data, while checkpoints themselves are persisted as refs.
type State struct {
	SessionID string `json:"session_id"`

	// Turn is the last turn number a capture was started for.
	Turn int `json:"turn"`

	// CapturesSincePrune counts captures since retention last ran.
	CapturesSincePrune int `json:"captures_since_prune"`

	// AutoCaptureDisabled is set after a capture failure. Automatic captures
	// stay off for the rest of the session; explicit ones still work.
	AutoCaptureDisabled bool `json:"auto_capture_disabled,omitempty"`

	UpdatedAt string `json:"updated_at"`
}

func stateFile(repoRoot string) string {
	return filepath.Join(repoRoot, paths.CurrentSessionFile)
}

// LoadState reads the current session state. Returns nil with no error when
// no state file exists, and nil when the file is unreadable or corrupt; a
// damaged state file means starting fresh, not failing the hook.
func LoadState(repoRoot string) *State {
	data, err := os.ReadFile(stateFile(repoRoot))
	if err != nil {
		return nil
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil
	}
	if st.SessionID == "" {
		return nil
	}
	return &st
}

// SaveState writes the current session state atomically enough for a
// single-writer hook process.
func SaveState(repoRoot string, st *State) error {
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	data = append(data, '\n')

	path := stateFile(repoRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}

// ClearState removes the state file. Missing files are not an error.
func ClearState(repoRoot string) error {
	err := os.Remove(stateFile(repoRoot))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session state: %w", err)
	}
	return nil
}
