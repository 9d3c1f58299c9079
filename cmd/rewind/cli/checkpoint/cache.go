package checkpoint

import (
	"context"
	"sync"
)

// Cache is the in-memory working set of known checkpoint records.
//
// It is a cache, not the source of truth: the ref namespace is authoritative.
// Callers must Refresh after any operation that might introduce records from
// other sessions (a branch targeting a session not yet loaded, a session
// switch), and may Add records they just created themselves.
type Cache struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[string]Record)}
}

// Refresh rescans the ref namespace and replaces the working set with what
// is actually persisted. Records deleted by retention disappear; records
// written by other processes appear.
func (c *Cache) Refresh(ctx context.Context, store Store) error {
	records, err := store.ListCheckpoints(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]Record, len(records))
	for _, rec := range records {
		fresh[rec.ID] = rec
	}

	c.mu.Lock()
	c.records = fresh
	c.mu.Unlock()
	return nil
}

// Add inserts a record the caller just created. Cheaper than a full Refresh
// for the common capture path.
func (c *Cache) Add(rec Record) {
	c.mu.Lock()
	c.records[rec.ID] = rec
	c.mu.Unlock()
}

// Get returns the record with the given ID, if known.
func (c *Cache) Get(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Records returns all known records sorted by CreatedAt ascending.
func (c *Cache) Records() []Record {
	c.mu.RLock()
	result := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		result = append(result, rec)
	}
	c.mu.RUnlock()

	sortRecords(result)
	return result
}

// ForSession returns the known records for one session, sorted by CreatedAt
// ascending.
func (c *Cache) ForSession(sessionID string) []Record {
	c.mu.RLock()
	var result []Record
	for _, rec := range c.records {
		if rec.SessionID == sessionID {
			result = append(result, rec)
		}
	}
	c.mu.RUnlock()

	sortRecords(result)
	return result
}

// Len returns the number of known records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
