// Package session coordinates checkpoint capture and restore across the
// lifecycle of an agent session: which session is current, which turn we are
// on, when retention runs, and when automatic capture shuts itself off.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rewindkit/cli/cmd/rewind/cli/checkpoint"
	"github.com/rewindkit/cli/cmd/rewind/cli/logging"
	"github.com/rewindkit/cli/cmd/rewind/cli/settings"
)

// Manager drives the checkpoint engine from session events.
//
// Captures started by StartTurn run asynchronously so the hook returns to the
// agent immediately; anything that reads or restores state first waits for
// in-flight captures, so a restore can never race a half-finished snapshot.
type Manager struct {
	store    checkpoint.Store
	builder  *checkpoint.Builder
	restorer *checkpoint.Restorer
	pruner   *checkpoint.Pruner
	cache    *checkpoint.Cache
	cfg      *settings.Settings
	repoRoot string

	inFlight sync.WaitGroup

	mu      sync.Mutex
	state   *State
	lastErr error
}

// NewManager wires a Manager over the given store and configuration.
func NewManager(store checkpoint.Store, cfg *settings.Settings, repoRoot string) *Manager {
	filter := checkpoint.NewFilter(cfg.IgnoredDirs, cfg.MaxFileSize, cfg.MaxDirFileCount)
	return &Manager{
		store:    store,
		builder:  checkpoint.NewBuilder(store, filter, repoRoot),
		restorer: checkpoint.NewRestorer(store),
		pruner:   checkpoint.NewPruner(store),
		cache:    checkpoint.NewCache(),
		cfg:      cfg,
		repoRoot: repoRoot,
	}
}

// StartTurn begins a capture for the next turn of the given session. The
// capture itself runs in the background; call Wait before the process exits
// or before anything that must observe its result.
//
// A session ID different from the tracked one is a session switch and
// triggers a rescan of the ref namespace first. Returns false when automatic
// capture is disabled for this session or by configuration.
func (m *Manager) StartTurn(ctx context.Context, sessionID string) (bool, error) {
	if !m.cfg.Enabled {
		return false, nil
	}

	m.mu.Lock()
	if err := m.ensureSessionLocked(ctx, sessionID); err != nil {
		m.mu.Unlock()
		return false, err
	}
	if m.state.AutoCaptureDisabled {
		m.mu.Unlock()
		logging.Debug(ctx, "automatic capture disabled for session, skipping")
		return false, nil
	}

	m.state.Turn++
	turn := m.state.Turn

	m.state.CapturesSincePrune++
	shouldPrune := m.cfg.PruneEveryNth > 0 && m.state.CapturesSincePrune >= m.cfg.PruneEveryNth
	if shouldPrune {
		m.state.CapturesSincePrune = 0
	}

	if err := SaveState(m.repoRoot, m.state); err != nil {
		m.mu.Unlock()
		return false, err
	}

	m.inFlight.Add(1)
	m.mu.Unlock()

	go m.capture(ctx, sessionID, turn, shouldPrune)
	return true, nil
}

// capture runs one background capture and its follow-up work.
func (m *Manager) capture(ctx context.Context, sessionID string, turn int, shouldPrune bool) {
	defer m.inFlight.Done()
	ctx = logging.WithComponent(ctx, "capture")

	rec, err := m.builder.Capture(ctx, checkpoint.CaptureOptions{SessionID: sessionID, Turn: turn})
	if err != nil {
		logging.Error(ctx, "capture failed, disabling automatic capture for session",
			slog.String("session_id", sessionID),
			slog.Int("turn", turn),
			slog.String("error", err.Error()),
		)
		m.disableAutoCapture(sessionID, err)
		return
	}
	m.cache.Add(rec)

	if shouldPrune {
		if m.pruner.Prune(ctx, m.cfg.MaxCheckpoints) > 0 {
			if err := m.cache.Refresh(ctx, m.store); err != nil {
				logging.Warn(ctx, "cache refresh after prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

// disableAutoCapture turns off automatic capture for the session and records
// why. Retrying after a failure would likely fail the same way every turn.
func (m *Manager) disableAutoCapture(sessionID string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastErr = cause
	if m.state == nil || m.state.SessionID != sessionID {
		return
	}
	m.state.AutoCaptureDisabled = true
	if err := SaveState(m.repoRoot, m.state); err != nil {
		logging.Warn(context.Background(), "failed to persist capture-disabled state", slog.String("error", err.Error()))
	}
}

// ensureSessionLocked makes m.state track sessionID, handling first use and
// session switches. Callers hold m.mu.
func (m *Manager) ensureSessionLocked(ctx context.Context, sessionID string) error {
	if m.state == nil {
		m.state = LoadState(m.repoRoot)
	}
	if m.state != nil && m.state.SessionID == sessionID {
		return nil
	}

	// New or switched session: records created under other sessions (or by
	// other processes) may now be restore targets, so rescan the namespace.
	if err := m.cache.Refresh(ctx, m.store); err != nil {
		return err
	}

	if m.state != nil {
		logging.Info(ctx, "session switch",
			slog.String("from", m.state.SessionID),
			slog.String("to", sessionID),
			slog.Int("known_checkpoints", m.cache.Len()),
		)
	}
	m.state = &State{SessionID: sessionID}
	return SaveState(m.repoRoot, m.state)
}

// SwitchSession makes sessionID the tracked session, rescanning the ref
// namespace. Waits for in-flight captures so a switch never interleaves with
// a capture from the previous session.
func (m *Manager) SwitchSession(ctx context.Context, sessionID string) error {
	m.inFlight.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureSessionLocked(ctx, sessionID)
}

// Capture runs a synchronous, explicit capture for the tracked session. It
// works even when automatic capture has been disabled.
func (m *Manager) Capture(ctx context.Context, sessionID string) (checkpoint.Record, error) {
	m.inFlight.Wait()

	m.mu.Lock()
	if err := m.ensureSessionLocked(ctx, sessionID); err != nil {
		m.mu.Unlock()
		return checkpoint.Record{}, err
	}
	m.state.Turn++
	turn := m.state.Turn
	if err := SaveState(m.repoRoot, m.state); err != nil {
		m.mu.Unlock()
		return checkpoint.Record{}, err
	}
	m.mu.Unlock()

	rec, err := m.builder.Capture(ctx, checkpoint.CaptureOptions{SessionID: sessionID, Turn: turn})
	if err != nil {
		return checkpoint.Record{}, err
	}
	m.cache.Add(rec)
	return rec, nil
}

// EndSession stops tracking the current session and removes the state file.
// Checkpoints already captured stay in the ref namespace.
func (m *Manager) EndSession(ctx context.Context) error {
	m.inFlight.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != nil {
		logging.Info(ctx, "session ended", slog.String("session_id", m.state.SessionID))
	}
	m.state = nil
	return ClearState(m.repoRoot)
}

// Wait blocks until all in-flight captures have finished.
func (m *Manager) Wait() {
	m.inFlight.Wait()
}

// Records returns every known checkpoint, freshly rescanned, sorted by
// creation time ascending.
func (m *Manager) Records(ctx context.Context) ([]checkpoint.Record, error) {
	m.inFlight.Wait()

	if err := m.cache.Refresh(ctx, m.store); err != nil {
		return nil, err
	}
	return m.cache.Records(), nil
}

// RecordsForSession returns the known checkpoints for one session, freshly
// rescanned, sorted by creation time ascending.
func (m *Manager) RecordsForSession(ctx context.Context, sessionID string) ([]checkpoint.Record, error) {
	m.inFlight.Wait()

	if err := m.cache.Refresh(ctx, m.store); err != nil {
		return nil, err
	}
	return m.cache.ForSession(sessionID), nil
}

// Find looks up one checkpoint by ID, freshly rescanned.
func (m *Manager) Find(ctx context.Context, id string) (checkpoint.Record, bool, error) {
	m.inFlight.Wait()

	if err := m.cache.Refresh(ctx, m.store); err != nil {
		return checkpoint.Record{}, false, err
	}
	rec, ok := m.cache.Get(id)
	return rec, ok, nil
}

// SelectForRestore picks the checkpoint matching a conversation point. It
// waits for in-flight captures and rescans the namespace first, so records
// from concurrent processes are candidates too.
func (m *Manager) SelectForRestore(ctx context.Context, target time.Time) (checkpoint.Selection, error) {
	m.inFlight.Wait()

	if err := m.cache.Refresh(ctx, m.store); err != nil {
		return checkpoint.Selection{}, err
	}
	return checkpoint.Select(m.cache.Records(), target), nil
}

// Restore applies the given record to the working tree. In-flight captures
// are awaited first; restoring mid-capture could snapshot a half-restored
// tree.
func (m *Manager) Restore(ctx context.Context, rec checkpoint.Record) error {
	m.inFlight.Wait()
	ctx = logging.WithComponent(logging.WithCheckpoint(ctx, rec.ID), "restore")
	return m.restorer.Restore(ctx, rec)
}

// Prune runs retention explicitly and returns how many refs were deleted.
func (m *Manager) Prune(ctx context.Context) int {
	m.inFlight.Wait()
	return m.pruner.Prune(ctx, m.cfg.MaxCheckpoints)
}

// LastCaptureError returns the error that disabled automatic capture, if any.
func (m *Manager) LastCaptureError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
