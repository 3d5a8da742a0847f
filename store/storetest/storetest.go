// Package storetest holds a backend-agnostic conformance suite that every
// store.Backend implementation runs against, mirroring the teacher's habit
// of sharing one quadstore_test.go-style check across backend packages.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/store"
)

// Run exercises the full store.Backend contract against a freshly
// constructed backend.
func Run(t *testing.T, newBackend func() store.Backend) {
	t.Run("PutContainsDelete", func(t *testing.T) { testPutContainsDelete(t, newBackend()) })
	t.Run("BatchPut", func(t *testing.T) { testBatchPut(t, newBackend()) })
	t.Run("PrefixScan", func(t *testing.T) { testPrefixScan(t, newBackend()) })
	t.Run("RangeScan", func(t *testing.T) { testRangeScan(t, newBackend()) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newBackend()) })
}

func testPutContainsDelete(t *testing.T, b store.Backend) {
	ctx := context.Background()
	defer b.Close()

	ok, err := b.Contains(ctx, []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Put(ctx, []byte("k1"), []byte("v1")))
	ok, err = b.Contains(ctx, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Delete(ctx, []byte("k1")))
	ok, err = b.Contains(ctx, []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	// deleting an absent key is not an error
	require.NoError(t, b.Delete(ctx, []byte("k1")))
}

func testBatchPut(t *testing.T, b store.Backend) {
	ctx := context.Background()
	defer b.Close()

	kvs := []store.KV{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	require.NoError(t, b.BatchPut(ctx, kvs))
	for _, kv := range kvs {
		ok, err := b.Contains(ctx, kv.Key)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func testPrefixScan(t *testing.T, b store.Backend) {
	ctx := context.Background()
	defer b.Close()

	require.NoError(t, b.Put(ctx, []byte("s:1"), nil))
	require.NoError(t, b.Put(ctx, []byte("s:2"), nil))
	require.NoError(t, b.Put(ctx, []byte("p:1"), nil))

	var keys []string
	err := b.PrefixScan(ctx, []byte("s:"), func(kv store.KV) (bool, error) {
		keys = append(keys, string(kv.Key))
		return true, nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"s:1", "s:2"}, keys)
}

func testRangeScan(t *testing.T, b store.Backend) {
	ctx := context.Background()
	defer b.Close()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, b.Put(ctx, []byte(k), nil))
	}

	var keys []string
	err := b.RangeScan(ctx, []byte("b"), []byte("d"), func(kv store.KV) (bool, error) {
		keys = append(keys, string(kv.Key))
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, keys)

	keys = nil
	err = b.RangeScan(ctx, nil, nil, func(kv store.KV) (bool, error) {
		keys = append(keys, string(kv.Key))
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, keys)
}

func testClear(t *testing.T, b store.Backend) {
	ctx := context.Background()
	defer b.Close()

	require.NoError(t, b.Put(ctx, []byte("x"), nil))
	require.NoError(t, b.Clear(ctx))
	ok, err := b.Contains(ctx, []byte("x"))
	require.NoError(t, err)
	require.False(t, ok)
}
