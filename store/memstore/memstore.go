// Package memstore implements an in-memory store.Backend backed by an
// ordered google/btree, the default backend for embedded use and the one
// every store/graph test runs against.
package memstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/knowgraph/qdb/store"
)

const btreeDegree = 32

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Backend is an in-memory store.Backend. Readers never block each other;
// writers take an exclusive lock around the underlying tree, matching the
// coarse-grained concurrency contract of the quad store above it.
type Backend struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[item]
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{tree: btree.NewG(btreeDegree, less)}
}

var _ store.Backend = (*Backend)(nil)

func (b *Backend) Put(_ context.Context, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree.ReplaceOrInsert(item{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *Backend) Delete(_ context.Context, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree.Delete(item{key: key})
	return nil
}

func (b *Backend) Contains(_ context.Context, key []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.Has(item{key: key}), nil
}

func (b *Backend) BatchPut(_ context.Context, kvs []store.KV) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, kv := range kvs {
		b.tree.ReplaceOrInsert(item{key: append([]byte(nil), kv.Key...), value: append([]byte(nil), kv.Value...)})
	}
	return nil
}

func (b *Backend) PrefixScan(_ context.Context, prefix []byte, fn func(store.KV) (bool, error)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var outerErr error
	b.tree.AscendGreaterOrEqual(item{key: prefix}, func(it item) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		cont, err := fn(store.KV{Key: it.key, Value: it.value})
		if err != nil {
			outerErr = err
			return false
		}
		return cont
	})
	return outerErr
}

func (b *Backend) RangeScan(_ context.Context, start, end []byte, fn func(store.KV) (bool, error)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var outerErr error
	visit := func(it item) bool {
		if end != nil && bytes.Compare(it.key, end) >= 0 {
			return false
		}
		cont, err := fn(store.KV{Key: it.key, Value: it.value})
		if err != nil {
			outerErr = err
			return false
		}
		return cont
	}
	if start == nil {
		b.tree.Ascend(visit)
	} else {
		b.tree.AscendGreaterOrEqual(item{key: start}, visit)
	}
	return outerErr
}

func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tree = btree.NewG(btreeDegree, less)
	return nil
}

func (b *Backend) Close() error { return nil }
