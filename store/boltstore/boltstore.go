// Package boltstore implements a store.Backend over go.etcd.io/bbolt,
// grounded on the teacher's graph/kv/bolt driver (bolt.Open, a single
// bucket per keyspace, Cursor-based prefix/range iteration) — ported from
// boltdb/bolt to its etcd-io successor.
package boltstore

import (
	"bytes"
	"context"

	bolt "go.etcd.io/bbolt"

	"github.com/knowgraph/qdb/store"
)

var bucketName = []byte("qdb")

// Backend is a store.Backend backed by a single bbolt database file. All
// four permutation indexes share one bucket; Encode's permutation tag
// byte keeps their key ranges disjoint.
type Backend struct {
	db *bolt.DB
}

var _ store.Backend = (*Backend)(nil)

// Open creates or opens a bbolt database file at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Put(_ context.Context, key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	})
}

func (b *Backend) Delete(_ context.Context, key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

func (b *Backend) Contains(_ context.Context, key []byte) (bool, error) {
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketName).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *Backend) BatchPut(_ context.Context, kvs []store.KV) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		for _, kv := range kvs {
			if err := bkt.Put(kv.Key, kv.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) PrefixScan(_ context.Context, prefix []byte, fn func(store.KV) (bool, error)) error {
	return b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		var outerErr error
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			cont, err := fn(store.KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
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
	return b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		var k, v []byte
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}
		var outerErr error
		for ; k != nil; k, v = c.Next() {
			if end != nil && bytes.Compare(k, end) >= 0 {
				break
			}
			cont, err := fn(store.KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
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
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (b *Backend) Close() error {
	return b.db.Close()
}
