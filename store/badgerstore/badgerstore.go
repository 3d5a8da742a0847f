// Package badgerstore implements a store.Backend over dgraph-io/badger,
// grounded on the teacher's graph/kv/badger driver: the same DefaultOptions
// + ValueLogLoadingMode/TableLoadingMode tuning, the same transaction and
// prefix-iterator idiom, adapted from the teacher's bucketed FlatTx/KVIterator
// abstraction down to the flat store.Backend contract used here.
package badgerstore

import (
	"bytes"
	"context"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"

	"github.com/knowgraph/qdb/store"
)

// Backend is a store.Backend backed by a single Badger database directory.
type Backend struct {
	db *badger.DB
}

var _ store.Backend = (*Backend)(nil)

// Open creates or opens a Badger database rooted at path.
func Open(path string) (*Backend, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.ValueLogLoadingMode = options.FileIO
	opts.TableLoadingMode = options.FileIO

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Put(_ context.Context, key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *Backend) Delete(_ context.Context, key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (b *Backend) Contains(_ context.Context, key []byte) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (b *Backend) BatchPut(_ context.Context, kvs []store.KV) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, kv := range kvs {
		if err := wb.Set(kv.Key, kv.Value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *Backend) PrefixScan(_ context.Context, prefix []byte, fn func(store.KV) (bool, error)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		var outerErr error
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			cont, err := fn(store.KV{Key: append([]byte(nil), item.Key()...), Value: val})
			if err != nil {
				outerErr = err
				break
			}
			if !cont {
				break
			}
		}
		return outerErr
	})
}

func (b *Backend) RangeScan(_ context.Context, start, end []byte, fn func(store.KV) (bool, error)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		var outerErr error
		seek := start
		for it.Seek(seek); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if end != nil && bytes.Compare(key, end) >= 0 {
				break
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			cont, err := fn(store.KV{Key: append([]byte(nil), key...), Value: val})
			if err != nil {
				outerErr = err
				break
			}
			if !cont {
				break
			}
		}
		return outerErr
	})
}

func (b *Backend) Clear(_ context.Context) error {
	return b.db.DropAll()
}

func (b *Backend) Close() error {
	return b.db.Close()
}
