// Package checkpoint implements the checkpoint store and restore engine.
//
// A checkpoint captures the complete state of a working tree at a point in
// time - the commit HEAD referenced, the staged tree, and the full worktree
// tree including eligible untracked files - as immutable content-addressed
// objects. Each checkpoint is registered under a ref in a dedicated namespace
// so it survives process restarts and can be listed, selected, and pruned
// without touching the primary commit history.
package checkpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// RefPrefix is the dedicated ref namespace for checkpoint records.
	// The engine owns this namespace exclusively; one ref per record,
	// named by the record ID.
	RefPrefix = "refs/rewind/checkpoints/"

	// UnbornHead is the sentinel head value recorded when a repository
	// has no commits yet at capture time.
	UnbornHead = "0000000000000000000000000000000000000000"
)

// Metadata body field names, in their fixed serialization order.
const (
	fieldSessionID    = "sessionId"
	fieldTurn         = "turn"
	fieldHead         = "head"
	fieldIndexTree    = "index-tree"
	fieldWorktreeTree = "worktree-tree"
	fieldCreated      = "created"
)

// Errors returned by checkpoint operations.
var (
	// ErrNotFound is returned when no checkpoint matches a selection target.
	ErrNotFound = errors.New("no matching checkpoint")

	// ErrUnbornHead is returned when restoring a checkpoint captured before
	// any commit existed; there is no safe rollback target.
	ErrUnbornHead = errors.New("unborn head")
)

// Record is the unit of persistence: one snapshot of the working tree state.
// Records are immutable once created; they are destroyed only by retention
// deleting their ref.
type Record struct {
	// ID is unique within the repository's checkpoint namespace. It encodes
	// session, turn, and capture time for diagnosability but is treated as
	// opaque by the engine.
	ID string

	// SessionID is the logical conversation identifier, stable across branch
	// operations that logically continue the same session.
	SessionID string

	// Turn is the monotonic position within a session. It orders records
	// within a session, not across sessions.
	Turn int

	// Head is the commit hash HEAD referenced at capture time, or UnbornHead.
	Head string

	// StagedTree is the tree hash of the index at capture time.
	StagedTree string

	// WorktreeTree is the tree hash of the full working tree (tracked plus
	// filter-eligible untracked) at capture time.
	WorktreeTree string

	// CreatedAt is the capture wall-clock time, millisecond resolution.
	CreatedAt time.Time

	// CommitHash is the content address of the metadata object the record's
	// ref points at. Populated on write and on read; not part of the body.
	CommitHash string
}

// NewID builds a checkpoint ID from its session, turn, and capture time.
// The format is <session>-<turn, zero padded>-<unix millis>, which sorts
// lexicographically in creation order within a session.
func NewID(sessionID string, turn int, at time.Time) string {
	return fmt.Sprintf("%s-%04d-%d", sessionID, turn, at.UnixMilli())
}

// RefName returns the full ref name for this record.
func (r Record) RefName() string {
	return RefPrefix + r.ID
}

// IsUnborn reports whether the record was captured before any commit existed.
func (r Record) IsUnborn() bool {
	return r.Head == UnbornHead
}

// EncodeBody serializes the record as the newline-delimited key/value body of
// its metadata object. Field order is fixed; parsers must not rely on it.
func (r Record) EncodeBody() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", fieldSessionID, r.SessionID)
	fmt.Fprintf(&b, "%s %d\n", fieldTurn, r.Turn)
	fmt.Fprintf(&b, "%s %s\n", fieldHead, r.Head)
	fmt.Fprintf(&b, "%s %s\n", fieldIndexTree, r.StagedTree)
	fmt.Fprintf(&b, "%s %s\n", fieldWorktreeTree, r.WorktreeTree)
	fmt.Fprintf(&b, "%s %d\n", fieldCreated, r.CreatedAt.UnixMilli())
	return b.String()
}

// ParseBody decodes a metadata object body into a Record. The record ID is
// taken from the ref name, not the body, and is supplied by the caller.
// Unknown lines are ignored so the format can grow fields.
func ParseBody(id, body string) (Record, error) {
	rec := Record{ID: id}
	var sawCreated bool

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		switch key {
		case fieldSessionID:
			rec.SessionID = value
		case fieldTurn:
			turn, err := strconv.Atoi(value)
			if err != nil {
				return Record{}, fmt.Errorf("invalid turn %q in checkpoint %s: %w", value, id, err)
			}
			rec.Turn = turn
		case fieldHead:
			rec.Head = value
		case fieldIndexTree:
			rec.StagedTree = value
		case fieldWorktreeTree:
			rec.WorktreeTree = value
		case fieldCreated:
			ms, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Record{}, fmt.Errorf("invalid created %q in checkpoint %s: %w", value, id, err)
			}
			rec.CreatedAt = time.UnixMilli(ms)
			sawCreated = true
		}
	}

	if rec.SessionID == "" || rec.Head == "" || rec.StagedTree == "" || rec.WorktreeTree == "" || !sawCreated {
		return Record{}, fmt.Errorf("incomplete metadata body for checkpoint %s", id)
	}

	return rec, nil
}

// CaptureError wraps any failure while building a snapshot. Callers should
// disable further automatic capture for the session rather than retrying.
type CaptureError struct {
	// Step names the capture step that failed.
	Step string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("checkpoint capture failed at %s: %v", e.Step, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// RestoreStep identifies a step of the fixed restore sequence.
type RestoreStep int

const (
	// StepGuard is the pre-flight check before any mutation.
	StepGuard RestoreStep = iota
	// StepResetHead forces HEAD and the working tree to the recorded commit.
	StepResetHead
	// StepLoadWorktree loads the worktree tree into the index.
	StepLoadWorktree
	// StepMaterialize writes index entries onto disk.
	StepMaterialize
	// StepLoadStaged loads the staged tree into the index.
	StepLoadStaged
)

func (s RestoreStep) String() string {
	switch s {
	case StepGuard:
		return "pre-flight check"
	case StepResetHead:
		return "reset to recorded head"
	case StepLoadWorktree:
		return "load worktree tree into index"
	case StepMaterialize:
		return "materialize index onto disk"
	case StepLoadStaged:
		return "load staged tree into index"
	default:
		return "unknown step"
	}
}

// RestoreError wraps a failure during the restore sequence. Steps already
// applied are not rolled back; PartiallyApplied reports whether any mutation
// may have happened before the failure.
type RestoreError struct {
	Step RestoreStep
	Err  error
}

func (e *RestoreError) Error() string {
	if e.Step == StepGuard {
		return fmt.Sprintf("restore failed: %v", e.Err)
	}
	return fmt.Sprintf("restore failed at step %d (%s): %v - the working tree may be partially restored", int(e.Step), e.Step, e.Err)
}

func (e *RestoreError) Unwrap() error { return e.Err }

// PartiallyApplied reports whether earlier steps may have mutated the
// working tree or index before the failure.
func (e *RestoreError) PartiallyApplied() bool {
	return e.Step != StepGuard
}
