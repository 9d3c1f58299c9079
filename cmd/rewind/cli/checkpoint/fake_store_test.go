package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

// fakeStore is an in-memory Store for testing the engine's sequencing
// without a real repository. Restore-side calls are recorded in ops so tests
// can assert strict ordering; failOn injects errors per method name.
type fakeStore struct {
	mu sync.Mutex

	head      string // empty means unborn
	indexTree string
	tracked   []string
	untracked []string

	writtenFiles [][]string        // arguments of each WriteTreeFromPaths call
	commits      map[string]string // commit hash -> body
	refs         map[string]string // checkpoint id -> commit hash
	ops          []string

	failOn map[string]error

	nextTree   int
	nextCommit int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		indexTree: "staged-tree-0",
		commits:   make(map[string]string),
		refs:      make(map[string]string),
		failOn:    make(map[string]error),
	}
}

func (f *fakeStore) fail(op string) error {
	return f.failOn[op]
}

func (f *fakeStore) Head(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Head"); err != nil {
		return "", err
	}
	if f.head == "" {
		return UnbornHead, nil
	}
	return f.head, nil
}

func (f *fakeStore) WriteIndexTree(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("WriteIndexTree"); err != nil {
		return "", err
	}
	return f.indexTree, nil
}

func (f *fakeStore) ListTracked(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListTracked"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.tracked...), nil
}

func (f *fakeStore) ListUntracked(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListUntracked"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.untracked...), nil
}

func (f *fakeStore) WriteTreeFromPaths(_ context.Context, files []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("WriteTreeFromPaths"); err != nil {
		return "", err
	}
	f.writtenFiles = append(f.writtenFiles, append([]string(nil), files...))
	f.nextTree++
	return fmt.Sprintf("worktree-tree-%d", f.nextTree), nil
}

func (f *fakeStore) CommitMetadata(_ context.Context, _, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CommitMetadata"); err != nil {
		return "", err
	}
	f.nextCommit++
	hash := fmt.Sprintf("commit-%d", f.nextCommit)
	f.commits[hash] = body
	return hash, nil
}

func (f *fakeStore) UpdateRef(_ context.Context, id, commitHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateRef"); err != nil {
		return err
	}
	f.refs[id] = commitHash
	return nil
}

func (f *fakeStore) DeleteRef(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteRef:" + id); err != nil {
		return err
	}
	if err := f.fail("DeleteRef"); err != nil {
		return err
	}
	delete(f.refs, id)
	return nil
}

func (f *fakeStore) ListCheckpoints(_ context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListCheckpoints"); err != nil {
		return nil, err
	}

	var records []Record
	for id, hash := range f.refs {
		rec, err := ParseBody(id, f.commits[hash])
		if err != nil {
			continue
		}
		rec.CommitHash = hash
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

func (f *fakeStore) ResetHard(_ context.Context, commit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "reset-hard "+commit)
	return f.fail("ResetHard")
}

func (f *fakeStore) ReadTreeReset(_ context.Context, tree string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "read-tree "+tree)
	return f.fail("ReadTreeReset:" + tree)
}

func (f *fakeStore) CheckoutIndexAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "checkout-index")
	return f.fail("CheckoutIndexAll")
}

func (f *fakeStore) recordedOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// addRecord registers a fully-formed record directly, for selector and
// retention tests that don't need the capture path.
func (f *fakeStore) addRecord(rec Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCommit++
	hash := fmt.Sprintf("commit-%d", f.nextCommit)
	f.commits[hash] = rec.EncodeBody()
	f.refs[rec.ID] = hash
}

var _ Store = (*fakeStore)(nil)
