package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Table is a typed view over one store table. Values are stored as JSON.
type Table[T any] struct {
	store Store
	name  string
	key   func(*T) string
}

// NewTable binds a table name and a key function to a store.
func NewTable[T any](store Store, name string, key func(*T) string) *Table[T] {
	return &Table[T]{store: store, name: name, key: key}
}

// Name returns the underlying table name.
func (t *Table[T]) Name() string { return t.name }

// Get decodes the value stored under key. ErrNotFound is passed through.
func (t *Table[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, err := t.store.Get(ctx, t.name, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", t.name, key, err)
	}
	return &v, nil
}

// Put encodes and writes all values in one atomic batch.
func (t *Table[T]) Put(ctx context.Context, values ...T) error {
	entries := make([]Entry, 0, len(values))
	for i := range values {
		raw, err := json.Marshal(&values[i])
		if err != nil {
			return fmt.Errorf("encode %s: %w", t.name, err)
		}
		entries = append(entries, Entry{Key: t.key(&values[i]), Value: raw})
	}
	return t.store.Put(ctx, t.name, entries...)
}

// Update decodes the current value, lets fn mutate it, and writes it back atomically.
func (t *Table[T]) Update(ctx context.Context, key string, fn func(*T) error) error {
	return t.store.Update(ctx, t.name, key, func(cur []byte) ([]byte, error) {
		var v T
		if err := json.Unmarshal(cur, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", t.name, key, err)
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return json.Marshal(&v)
	})
}

// Query returns every value matching pred, in the store's scan order.
func (t *Table[T]) Query(ctx context.Context, pred func(*T) bool) ([]T, error) {
	var out []T
	err := t.store.Scan(ctx, t.name, func(key string, raw []byte) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", t.name, key, err)
		}
		if pred == nil || pred(&v) {
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
