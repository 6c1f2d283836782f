package kv

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns every store that can run without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]Store{
		"memory":  NewMemoryStore(),
		"badger":  b,
		"latency": WithLatency(NewMemoryStore(), time.Millisecond, time.Millisecond),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "t", "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "t",
				Entry{Key: "a", Value: []byte(`1`)},
				Entry{Key: "b", Value: []byte(`2`)},
			))
			require.NoError(t, store.Put(ctx, "other", Entry{Key: "a", Value: []byte(`x`)}))

			v, err := store.Get(ctx, "t", "a")
			require.NoError(t, err)
			assert.Equal(t, `1`, string(v))

			require.NoError(t, store.Update(ctx, "t", "a", func(cur []byte) ([]byte, error) {
				return append(cur, '0'), nil
			}))
			v, err = store.Get(ctx, "t", "a")
			require.NoError(t, err)
			assert.Equal(t, `10`, string(v))

			abort := errors.New("abort")
			err = store.Update(ctx, "t", "b", func([]byte) ([]byte, error) { return nil, abort })
			assert.ErrorIs(t, err, abort)
			v, err = store.Get(ctx, "t", "b")
			require.NoError(t, err)
			assert.Equal(t, `2`, string(v))

			err = store.Update(ctx, "t", "missing", func(cur []byte) ([]byte, error) { return cur, nil })
			assert.ErrorIs(t, err, ErrNotFound)

			seen := map[string]string{}
			require.NoError(t, store.Scan(ctx, "t", func(k string, v []byte) error {
				seen[k] = string(v)
				return nil
			}))
			assert.Equal(t, map[string]string{"a": "10", "b": "2"}, seen)

			require.NoError(t, store.Scan(ctx, "empty", func(string, []byte) error {
				t.Fatal("empty table visited")
				return nil
			}))
		})
	}
}

func TestMemoryScanKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 9; i >= 0; i-- {
		require.NoError(t, store.Put(ctx, "t", Entry{Key: fmt.Sprintf("k%d", i), Value: []byte(`{}`)}))
	}
	var keys []string
	require.NoError(t, store.Scan(ctx, "t", func(k string, _ []byte) error {
		keys = append(keys, k)
		return nil
	}))
	assert.Equal(t, []string{"k9", "k8", "k7", "k6", "k5", "k4", "k3", "k2", "k1", "k0"}, keys)
}

func TestMemoryValuesDoNotAlias(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	val := []byte(`abc`)
	require.NoError(t, store.Put(ctx, "t", Entry{Key: "k", Value: val}))
	val[0] = 'z'
	got, err := store.Get(ctx, "t", "k")
	require.NoError(t, err)
	got[1] = 'z'
	again, err := store.Get(ctx, "t", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestLatencyHonorsContext(t *testing.T) {
	store := WithLatency(NewMemoryStore(), time.Hour, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := store.Get(ctx, "t", "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	mem := NewMemoryStore()
	assert.Same(t, mem, WithLatency(mem, 0, 0))
}

type doc struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func TestTable(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable(NewMemoryStore(), "docs", func(d *doc) string { return d.ID })
	assert.Equal(t, "docs", tbl.Name())

	require.NoError(t, tbl.Put(ctx, doc{ID: "a", Value: 1}, doc{ID: "b", Value: 2}, doc{ID: "c", Value: 3}))

	got, err := tbl.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Value)

	_, err = tbl.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tbl.Update(ctx, "a", func(d *doc) error {
		d.Value += 10
		return nil
	}))
	odd, err := tbl.Query(ctx, func(d *doc) bool { return d.Value%2 == 1 })
	require.NoError(t, err)
	assert.Equal(t, []doc{{ID: "a", Value: 11}, {ID: "c", Value: 3}}, odd)

	all, err := tbl.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
