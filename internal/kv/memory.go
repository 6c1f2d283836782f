package kv

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process memory. The RWMutex lets many pollers
// read concurrently while a single orchestrator writes.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	rows  map[string][]byte
	order []string
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]*memTable),
	}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, ErrNotFound
	}
	v, ok := t.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	// Callers get their own slice so later writes never alias it.
	return clone(v), nil
}

// Put inserts or replaces entries. Insertion order is preserved for Scan.
func (m *MemoryStore) Put(ctx context.Context, table string, entries ...Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(table)
	for _, e := range entries {
		if _, exists := t.rows[e.Key]; !exists {
			t.order = append(t.order, e.Key)
		}
		t.rows[e.Key] = clone(e.Value)
	}
	return nil
}

// Update runs fn under the write lock.
func (m *MemoryStore) Update(ctx context.Context, table, key string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return ErrNotFound
	}
	cur, ok := t.rows[key]
	if !ok {
		return ErrNotFound
	}
	next, err := fn(clone(cur))
	if err != nil {
		return err
	}
	t.rows[key] = clone(next)
	return nil
}

// Scan visits a snapshot of the table in insertion order. The lock is released
// before fn runs so callbacks may read the store again.
func (m *MemoryStore) Scan(ctx context.Context, table string, fn func(string, []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	t, ok := m.tables[table]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	keys := make([]string, len(t.order))
	copy(keys, t.order)
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = clone(t.rows[k])
	}
	m.mu.RUnlock()
	for i, k := range keys {
		if err := fn(k, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string][]byte)}
		m.tables[name] = t
	}
	return t
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
