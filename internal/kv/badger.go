package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const maxConflictRetries = 5

// BadgerStore persists tables in an embedded badger database. Keys are laid
// out as "<table>/<key>" so a table scan is a prefix iteration.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger directory at path. An empty path
// keeps everything in memory, which the tests use.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Get(ctx context.Context, table, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(table, key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s/%s: %w", table, key, err)
	}
	return out, nil
}

func (b *BadgerStore) Put(ctx context.Context, table string, entries ...Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(badgerKey(table, e.Key), e.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger put %s: %w", table, err)
	}
	return nil
}

// Update retries on transaction conflicts; fn may therefore run more than once.
func (b *BadgerStore) Update(ctx context.Context, table, key string, fn UpdateFunc) error {
	k := badgerKey(table, key)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(k)
			if err != nil {
				return err
			}
			cur, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			next, err := fn(cur)
			if err != nil {
				return err
			}
			return txn.Set(k, next)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return ErrNotFound
		case errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries:
			continue
		default:
			return fmt.Errorf("badger update %s/%s: %w", table, key, err)
		}
	}
}

func (b *BadgerStore) Scan(ctx context.Context, table string, fn func(string, []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := []byte(table + "/")
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()[len(prefix):]), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func badgerKey(table, key string) []byte {
	return []byte(table + "/" + key)
}
