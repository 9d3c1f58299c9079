package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rewindkit/cli/cmd/rewind/cli/checkpoint"
	"github.com/rewindkit/cli/cmd/rewind/cli/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory checkpoint.Store for manager tests.
type memStore struct {
	mu         sync.Mutex
	commits    map[string]string
	refs       map[string]string
	captureErr error
	nextHash   int
}

func newMemStore() *memStore {
	return &memStore{
		commits: make(map[string]string),
		refs:    make(map[string]string),
	}
}

func (s *memStore) setCaptureErr(err error) {
	s.mu.Lock()
	s.captureErr = err
	s.mu.Unlock()
}

func (s *memStore) Head(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captureErr != nil {
		return "", s.captureErr
	}
	return "headhash", nil
}

func (s *memStore) WriteIndexTree(context.Context) (string, error)  { return "stagedtree", nil }
func (s *memStore) ListTracked(context.Context) ([]string, error)   { return nil, nil }
func (s *memStore) ListUntracked(context.Context) ([]string, error) { return nil, nil }
func (s *memStore) ResetHard(context.Context, string) error         { return nil }
func (s *memStore) ReadTreeReset(context.Context, string) error     { return nil }
func (s *memStore) CheckoutIndexAll(context.Context) error          { return nil }

func (s *memStore) WriteTreeFromPaths(context.Context, []string) (string, error) {
	return "worktreetree", nil
}

func (s *memStore) CommitMetadata(_ context.Context, _, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHash++
	hash := fmt.Sprintf("commit-%d", s.nextHash)
	s.commits[hash] = body
	return hash, nil
}

func (s *memStore) UpdateRef(_ context.Context, id, commitHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[id] = commitHash
	return nil
}

func (s *memStore) DeleteRef(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, id)
	return nil
}

func (s *memStore) ListCheckpoints(context.Context) ([]checkpoint.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []checkpoint.Record
	for id, hash := range s.refs {
		rec, err := checkpoint.ParseBody(id, s.commits[hash])
		if err != nil {
			continue
		}
		rec.CommitHash = hash
		records = append(records, rec)
	}
	// The Store contract requires CreatedAt-ascending order with ID as
	// tie-break; map iteration order alone does not provide it.
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (s *memStore) refCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

func testSettings() *settings.Settings {
	return &settings.Settings{
		Enabled:        true,
		MaxCheckpoints: settings.DefaultMaxCheckpoints,
		PruneEveryNth:  settings.DefaultPruneEveryNth,
	}
}

func TestStartTurnCaptures(t *testing.T) {
	store := newMemStore()
	root := t.TempDir()
	m := NewManager(store, testSettings(), root)

	started, err := m.StartTurn(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, started)
	m.Wait()

	records, err := m.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sess-1", records[0].SessionID)
	assert.Equal(t, 1, records[0].Turn)

	st := LoadState(root)
	require.NotNil(t, st)
	assert.Equal(t, 1, st.Turn)
}

func TestStartTurnIncrementsTurns(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testSettings(), t.TempDir())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.StartTurn(ctx, "sess-1")
		require.NoError(t, err)
		m.Wait()
	}

	records, err := m.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 1, records[0].Turn)
	assert.Equal(t, 3, records[2].Turn)
}

func TestStartTurnDisabledByConfig(t *testing.T) {
	cfg := testSettings()
	cfg.Enabled = false
	m := NewManager(newMemStore(), cfg, t.TempDir())

	started, err := m.StartTurn(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, started)
}

func TestCaptureFailureDisablesAutoCapture(t *testing.T) {
	store := newMemStore()
	store.setCaptureErr(errors.New("object store unavailable"))
	root := t.TempDir()
	m := NewManager(store, testSettings(), root)
	ctx := context.Background()

	started, err := m.StartTurn(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, started)
	m.Wait()

	assert.Error(t, m.LastCaptureError())
	assert.Equal(t, 0, store.refCount(), "a failed capture leaves no record")

	// The disable survives in the state file and blocks the next turn.
	st := LoadState(root)
	require.NotNil(t, st)
	assert.True(t, st.AutoCaptureDisabled)

	started, err = m.StartTurn(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, started)
}

func TestExplicitCaptureWorksAfterDisable(t *testing.T) {
	store := newMemStore()
	store.setCaptureErr(errors.New("transient"))
	m := NewManager(store, testSettings(), t.TempDir())
	ctx := context.Background()

	_, err := m.StartTurn(ctx, "sess-1")
	require.NoError(t, err)
	m.Wait()
	require.Error(t, m.LastCaptureError())

	store.setCaptureErr(nil)
	rec, err := m.Capture(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, 1, store.refCount())
}

func TestPruneEveryNthCapture(t *testing.T) {
	cfg := testSettings()
	cfg.PruneEveryNth = 2
	cfg.MaxCheckpoints = 1
	store := newMemStore()
	m := NewManager(store, cfg, t.TempDir())
	ctx := context.Background()

	_, err := m.StartTurn(ctx, "sess-1")
	require.NoError(t, err)
	m.Wait()
	assert.Equal(t, 1, store.refCount())

	// Second capture trips retention, which trims back to the cap.
	_, err = m.StartTurn(ctx, "sess-1")
	require.NoError(t, err)
	m.Wait()
	assert.Equal(t, 1, store.refCount())

	records, err := m.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Turn, "the newest record survives")
}

func TestSessionSwitchRescansNamespace(t *testing.T) {
	store := newMemStore()
	other := checkpoint.Record{
		ID:           "other-0001-100",
		SessionID:    "other",
		Head:         "headhash",
		StagedTree:   "stagedtree",
		WorktreeTree: "worktreetree",
		CreatedAt:    time.UnixMilli(100),
	}
	hash, err := store.CommitMetadata(context.Background(), "worktreetree", other.EncodeBody())
	require.NoError(t, err)
	require.NoError(t, store.UpdateRef(context.Background(), other.ID, hash))

	m := NewManager(store, testSettings(), t.TempDir())
	require.NoError(t, m.SwitchSession(context.Background(), "sess-1"))

	records, err := m.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "other", records[0].SessionID)
}

func TestSelectForRestoreAwaitsAndSelects(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, testSettings(), t.TempDir())
	ctx := context.Background()

	_, err := m.StartTurn(ctx, "sess-1")
	require.NoError(t, err)

	// No explicit Wait: SelectForRestore must await the in-flight capture.
	sel, err := m.SelectForRestore(ctx, time.UnixMilli(0))
	require.NoError(t, err)
	require.True(t, sel.Found())
	assert.Equal(t, "sess-1", sel.Match.SessionID)
}

func TestTurnNumberingResumesFromState(t *testing.T) {
	store := newMemStore()
	root := t.TempDir()
	require.NoError(t, SaveState(root, &State{SessionID: "sess-1", Turn: 7}))

	m := NewManager(store, testSettings(), root)
	_, err := m.StartTurn(context.Background(), "sess-1")
	require.NoError(t, err)
	m.Wait()

	records, err := m.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 8, records[0].Turn)
}

func TestEndSessionClearsState(t *testing.T) {
	store := newMemStore()
	root := t.TempDir()
	m := NewManager(store, testSettings(), root)

	started, err := m.StartTurn(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, started)
	m.Wait()
	require.NotNil(t, LoadState(root))

	require.NoError(t, m.EndSession(context.Background()))
	assert.Nil(t, LoadState(root))

	// Captured checkpoints outlive the session.
	records, err := m.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordsForSessionFilters(t *testing.T) {
	store := newMemStore()
	root := t.TempDir()
	m := NewManager(store, testSettings(), root)

	_, err := m.Capture(context.Background(), "sess-a")
	require.NoError(t, err)
	require.NoError(t, m.SwitchSession(context.Background(), "sess-b"))
	_, err = m.Capture(context.Background(), "sess-b")
	require.NoError(t, err)

	records, err := m.RecordsForSession(context.Background(), "sess-a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sess-a", records[0].SessionID)
}

func TestFindByID(t *testing.T) {
	store := newMemStore()
	root := t.TempDir()
	m := NewManager(store, testSettings(), root)

	rec, err := m.Capture(context.Background(), "sess-1")
	require.NoError(t, err)

	got, ok, err := m.Find(context.Background(), rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)

	_, ok, err = m.Find(context.Background(), "sess-1-9999-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
