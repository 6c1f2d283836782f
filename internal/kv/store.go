// Package kv is the persistence contract the session repository depends on:
// named tables of JSON documents with get, put, atomic update, and scan. The
// memory, badger, and postgres stores all satisfy it.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Update when the key is absent.
var ErrNotFound = errors.New("key not found")

// Entry is one key/value pair written by Put.
type Entry struct {
	Key   string
	Value []byte
}

// UpdateFunc receives the current value and returns its replacement.
// Returning an error aborts the update and leaves the stored value untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, table, key string) ([]byte, error)
	// Put writes all entries atomically.
	Put(ctx context.Context, table string, entries ...Entry) error
	// Update performs an atomic read-modify-write of a single key.
	Update(ctx context.Context, table, key string, fn UpdateFunc) error
	// Scan visits every value in the table. Visiting stops at the first error fn returns.
	Scan(ctx context.Context, table string, fn func(key string, value []byte) error) error
	Close() error
}

// WithLatency wraps a store so every read waits read and every write waits
// write before touching the backend. Waits end early when ctx is done.
func WithLatency(s Store, read, write time.Duration) Store {
	if read <= 0 && write <= 0 {
		return s
	}
	return &latencyStore{next: s, read: read, write: write}
}

type latencyStore struct {
	next        Store
	read, write time.Duration
}

func (l *latencyStore) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := wait(ctx, l.read); err != nil {
		return nil, err
	}
	return l.next.Get(ctx, table, key)
}

func (l *latencyStore) Put(ctx context.Context, table string, entries ...Entry) error {
	if err := wait(ctx, l.write); err != nil {
		return err
	}
	return l.next.Put(ctx, table, entries...)
}

func (l *latencyStore) Update(ctx context.Context, table, key string, fn UpdateFunc) error {
	if err := wait(ctx, l.write); err != nil {
		return err
	}
	return l.next.Update(ctx, table, key, fn)
}

func (l *latencyStore) Scan(ctx context.Context, table string, fn func(string, []byte) error) error {
	if err := wait(ctx, l.read); err != nil {
		return err
	}
	return l.next.Scan(ctx, table, fn)
}

func (l *latencyStore) Close() error { return l.next.Close() }

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
