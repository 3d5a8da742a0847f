// Package graph implements the quad store: four permutation indexes over
// dictionary-interned quads, with bloom-filter-accelerated insert and a
// pattern matcher that turns a triple pattern into an index scan.
package graph

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	boom "github.com/tylertreat/BoomFilters"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/quad"
	"github.com/knowgraph/qdb/store"
)

// bloomCapacity and bloomFPRate size the existence-check bloom filter; the
// values mirror the teacher's graph/kv/indexing.go initBloomFilter, scaled
// down since this store targets embedded, not web-scale, datasets.
const (
	bloomCapacity = 1_000_000
	bloomFPRate   = 0.01
)

// QuadStore holds a dictionary and a store.Backend and maintains the four
// permutation indexes (SPOC, POCS, OCSP, CSPO) over every quad it is given.
// A single RWMutex guards the "all four indexes agree" invariant: readers
// (Find, EstimateSelectivity) take RLock, writers (Insert, BatchInsert,
// Remove, Clear) take Lock, per spec's coarse-grained-writer concurrency
// contract. Count takes no lock; it reads an atomic counter.
type QuadStore struct {
	mu      sync.RWMutex
	dict    *dict.Dictionary
	backend store.Backend

	quadCount int64 // atomic

	bloomMu sync.Mutex
	bloom   *boom.DeletableBloomFilter
}

// New builds a QuadStore over backend, using dictionary d to intern terms.
func New(d *dict.Dictionary, backend store.Backend) *QuadStore {
	return &QuadStore{
		dict:    d,
		backend: backend,
		bloom:   boom.NewDeletableBloomFilter(bloomCapacity, 10, bloomFPRate),
	}
}

// Dictionary returns the term dictionary backing this store.
func (qs *QuadStore) Dictionary() *dict.Dictionary { return qs.dict }

// Close releases the underlying backend's resources (file handles,
// connections). The QuadStore itself holds nothing else that needs closing.
func (qs *QuadStore) Close() error { return qs.backend.Close() }

func bloomKey(ids [4]uint64) []byte {
	var buf [32]byte
	for i, id := range ids {
		binary.BigEndian.PutUint64(buf[i*8:], id)
	}
	return buf[:]
}

// idsOf interns every bound position of q into its dictionary ID.
func (qs *QuadStore) idsOf(q quad.Quad) ([4]uint64, error) {
	var ids [4]uint64
	var err error
	if ids[0], err = qs.dict.Intern(q.Subject); err != nil {
		return ids, fmt.Errorf("graph: intern subject: %w", err)
	}
	if ids[1], err = qs.dict.Intern(q.Predicate); err != nil {
		return ids, fmt.Errorf("graph: intern predicate: %w", err)
	}
	if ids[2], err = qs.dict.Intern(q.Object); err != nil {
		return ids, fmt.Errorf("graph: intern object: %w", err)
	}
	g := q.Graph
	if g == nil {
		g = quad.IRI("")
	}
	if ids[3], err = qs.dict.Intern(g); err != nil {
		return ids, fmt.Errorf("graph: intern graph: %w", err)
	}
	return ids, nil
}

// Insert interns q's terms and adds index entries for it. Inserting a quad
// already present is a no-op and not an error.
func (qs *QuadStore) Insert(ctx context.Context, q quad.Quad) error {
	if err := q.Validate(); err != nil {
		return err
	}
	ids, err := qs.idsOf(q)
	if err != nil {
		return err
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()
	_, err = qs.insertLocked(ctx, ids)
	return err
}

// InsertNew behaves like Insert but additionally reports whether q was not
// already present, for callers (e.g. the reasoner's semi-naive fixpoint)
// that need to know when a round produced no new facts.
func (qs *QuadStore) InsertNew(ctx context.Context, q quad.Quad) (bool, error) {
	if err := q.Validate(); err != nil {
		return false, err
	}
	ids, err := qs.idsOf(q)
	if err != nil {
		return false, err
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.insertLocked(ctx, ids)
}

// BatchInsert inserts every quad in quads, interning terms first and then
// writing the index entries of all four permutations for the whole batch
// in a single backend BatchPut. A quad repeated within the batch is
// written and counted once.
func (qs *QuadStore) BatchInsert(ctx context.Context, quads []quad.Quad) error {
	idTuples := make([][4]uint64, 0, len(quads))
	for _, q := range quads {
		if err := q.Validate(); err != nil {
			return err
		}
		ids, err := qs.idsOf(q)
		if err != nil {
			return err
		}
		idTuples = append(idTuples, ids)
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	var kvs []store.KV
	added := 0
	seen := make(map[[4]uint64]bool, len(idTuples))
	for _, ids := range idTuples {
		if seen[ids] {
			continue
		}
		seen[ids] = true
		isNew, err := qs.checkAndMarkNew(ctx, ids)
		if err != nil {
			return err
		}
		if !isNew {
			continue
		}
		added++
		for _, p := range store.Permutations {
			kvs = append(kvs, store.KV{Key: store.Encode(p, p.Order(ids))})
		}
	}
	if len(kvs) == 0 {
		return nil
	}
	if err := qs.backend.BatchPut(ctx, kvs); err != nil {
		return err
	}
	atomic.AddInt64(&qs.quadCount, int64(added))
	return nil
}

func (qs *QuadStore) insertLocked(ctx context.Context, ids [4]uint64) (bool, error) {
	isNew, err := qs.checkAndMarkNew(ctx, ids)
	if err != nil {
		return false, err
	}
	if !isNew {
		return false, nil
	}
	kvs := make([]store.KV, 0, 4)
	for _, p := range store.Permutations {
		kvs = append(kvs, store.KV{Key: store.Encode(p, p.Order(ids))})
	}
	if err := qs.backend.BatchPut(ctx, kvs); err != nil {
		return false, err
	}
	atomic.AddInt64(&qs.quadCount, 1)
	return true, nil
}

// checkAndMarkNew reports whether ids has not been seen before, consulting
// the bloom filter first (the teacher's testBloom fast path) and falling
// back to a primary-index existence check only when the filter reports a
// possible hit.
func (qs *QuadStore) checkAndMarkNew(ctx context.Context, ids [4]uint64) (bool, error) {
	key := bloomKey(ids)

	qs.bloomMu.Lock()
	maybePresent := qs.bloom.Test(key)
	qs.bloomMu.Unlock()

	if maybePresent {
		exists, err := qs.backend.Contains(ctx, store.Encode(store.SPOC, store.SPOC.Order(ids)))
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	qs.bloomMu.Lock()
	qs.bloom.Add(key)
	qs.bloomMu.Unlock()
	return true, nil
}

// Remove deletes q's index entries, if present. Removing an absent quad is
// not an error.
func (qs *QuadStore) Remove(ctx context.Context, q quad.Quad) error {
	ids, err := qs.idsOf(q)
	if err != nil {
		return err
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()

	exists, err := qs.backend.Contains(ctx, store.Encode(store.SPOC, store.SPOC.Order(ids)))
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	for _, p := range store.Permutations {
		if err := qs.backend.Delete(ctx, store.Encode(p, p.Order(ids))); err != nil {
			return err
		}
	}
	atomic.AddInt64(&qs.quadCount, -1)

	qs.bloomMu.Lock()
	qs.bloom.TestAndRemove(bloomKey(ids))
	qs.bloomMu.Unlock()
	return nil
}

// Count returns the number of distinct quads currently stored.
func (qs *QuadStore) Count() int64 {
	return atomic.LoadInt64(&qs.quadCount)
}

// Clear empties every index and resets the quad count. The dictionary is
// left intact: term IDs already interned remain valid (but unreferenced)
// after a Clear, matching the teacher's behavior of never reusing IDs.
func (qs *QuadStore) Clear(ctx context.Context) error {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if err := qs.backend.Clear(ctx); err != nil {
		return err
	}
	atomic.StoreInt64(&qs.quadCount, 0)
	qs.bloomMu.Lock()
	qs.bloom = boom.NewDeletableBloomFilter(bloomCapacity, 10, bloomFPRate)
	qs.bloomMu.Unlock()
	return nil
}

// selectivitySampleCap bounds the PrefixScan count EstimateSelectivity
// performs, so a cardinality estimate never costs more than a small,
// constant amount of scan work.
const selectivitySampleCap = 256

// EstimateSelectivity returns a cheap estimate of how many quads match pt:
// the number of index entries under the prefix that selectIndex chooses
// for pt, capped at selectivitySampleCap. Bound positions outside that
// prefix are not checked, so the estimate can exceed the true number of
// matches. The Optimizer uses this to
// refine its variable-count join-order heuristic with real cardinality
// information when a predicate is bound, following the teacher's practice
// (graph/path/shape.go) of pushing estimated sizes through a query shape
// without committing to an exact COUNT.
func (qs *QuadStore) EstimateSelectivity(ctx context.Context, pt Pattern) (int, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()

	p, prefix := selectIndex(pt)
	key := store.EncodePrefix(p, prefix)

	n := 0
	err := qs.backend.PrefixScan(ctx, key, func(store.KV) (bool, error) {
		n++
		return n < selectivitySampleCap, nil
	})
	return n, err
}

// Resolve turns a bound 4-tuple of dictionary IDs back into a Quad.
func (qs *QuadStore) Resolve(ids [4]uint64) (quad.Quad, error) {
	s, err := qs.dict.Resolve(ids[0])
	if err != nil {
		return quad.Quad{}, err
	}
	p, err := qs.dict.Resolve(ids[1])
	if err != nil {
		return quad.Quad{}, err
	}
	o, err := qs.dict.Resolve(ids[2])
	if err != nil {
		return quad.Quad{}, err
	}
	g, err := qs.dict.Resolve(ids[3])
	if err != nil {
		return quad.Quad{}, err
	}
	q := quad.Quad{Subject: s, Predicate: p, Object: o}
	if ids[3] != dict.DefaultGraph {
		q.Graph = g
	}
	return q, nil
}
