package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/correlation"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

// Ensure Store implements the subsystem interfaces at compile time.
var (
	_ correlation.Store = (*Store)(nil)
	_ dlq.Store         = (*Store)(nil)
)

// Store is a fully in-memory backend. Safe for concurrent access.
// Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	records map[correlation.Key]correlation.Record
	dlqs    map[string]*dlq.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		records: make(map[correlation.Key]correlation.Record),
		dlqs:    make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Correlation Store
// ──────────────────────────────────────────────────

// PutRecord stores r unless its key is already live.
func (m *Store) PutRecord(_ context.Context, r *correlation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := r.Key()
	if _, ok := m.records[k]; ok {
		return volshift.ErrWriteConflict
	}
	m.records[k] = *r
	return nil
}

// GetRecord returns a copy of the live record.
func (m *Store) GetRecord(_ context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[correlation.Key{ResourceID: resourceID, Stage: stage}]
	if !ok {
		return nil, volshift.ErrRecordNotFound
	}
	return &r, nil
}

// DeleteRecord removes the record if present.
func (m *Store) DeleteRecord(_ context.Context, resourceID string, stage workflow.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, correlation.Key{ResourceID: resourceID, Stage: stage})
	return nil
}

// TakeRecord removes and returns the live record under the write lock.
func (m *Store) TakeRecord(_ context.Context, resourceID string, stage workflow.Stage) (*correlation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := correlation.Key{ResourceID: resourceID, Stage: stage}
	r, ok := m.records[k]
	if !ok {
		return nil, volshift.ErrRecordNotFound
	}
	delete(m.records, k)
	return &r, nil
}

// Records returns a snapshot of every live record, for tests and
// debugging.
func (m *Store) Records() []correlation.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]correlation.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].Key().String() < out[k].Key().String()
	})
	return out
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds an entry.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.dlqs[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns entries matching opts, newest first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, e := range m.dlqs {
		if opts.Stage != "" && e.Stage != opts.Stage {
			continue
		}
		if opts.Unresolved && e.Resolved() {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].FailedAt.Equal(result[k].FailedAt) {
			return result[i].FailedAt.After(result[k].FailedAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// GetDLQ retrieves an entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, volshift.ErrDLQNotFound
	}
	cp := *e
	return &cp, nil
}

// ResolveDLQ marks an entry handled.
func (m *Store) ResolveDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return volshift.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ResolvedAt = &now
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the number of entries.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.dlqs)), nil
}
