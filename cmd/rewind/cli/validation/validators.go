// Package validation provides input validation for identifiers that end up
// in ref names and file paths. It has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// refSafeRegex matches alphanumeric characters, underscores, hyphens, and dots.
// Used to validate IDs embedded in ref names under the checkpoint namespace.
var refSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateSessionID validates that a session ID doesn't contain path separators.
// This prevents path traversal when session IDs are used in file paths.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid session ID %q: contains path separators", id)
	}
	return nil
}

// ValidateCheckpointID validates that a checkpoint ID is safe to embed in a
// ref name. Checkpoint IDs are session-seq-timestamp triples joined by hyphens.
func ValidateCheckpointID(id string) error {
	if id == "" {
		return errors.New("checkpoint ID cannot be empty")
	}
	if !refSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid checkpoint ID %q: must be alphanumeric with dots/underscores/hyphens only", id)
	}
	if strings.HasPrefix(id, ".") || strings.HasSuffix(id, ".lock") {
		return fmt.Errorf("invalid checkpoint ID %q: not a valid ref component", id)
	}
	return nil
}
