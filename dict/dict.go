// Package dict implements the term dictionary: the bidirectional mapping
// between RDF terms and the 64-bit integer IDs every other layer of the
// store operates on. Terms are interned once; afterwards the store, the
// pattern matcher and the executor all traffic exclusively in IDs.
package dict

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/knowgraph/qdb/quad"
)

// ErrNotFound is returned by Lookup/Resolve when the argument is not
// currently interned.
var ErrNotFound = errors.New("dict: not found")

// ErrOutOfIDs is returned by Intern once the 64-bit ID space is exhausted.
var ErrOutOfIDs = errors.New("dict: out of ids")

// DefaultGraph is the reserved ID for the unnamed default graph. It is
// never returned by Intern for any other term.
const DefaultGraph uint64 = 0

const maxID = ^uint64(0) >> 1 // 1<<63 - 1, keeps the top bit free for future tagging

// numShards must be a power of two; term strings are routed to a shard by
// an FNV-1a hash, following the sharded-dictionary idiom of spreading lock
// contention across many small maps instead of one global one.
const numShards = 64

// shardCacheSize bounds the per-shard ristretto admission cache used for the
// hot-IRI fast path; it sizes NumCounters/MaxCost, not a hard entry cap.
const shardCacheSize = 1024

// newTermCache builds a small ristretto.Cache, the admission-counted cache
// the teacher's badger storage backend (graph/kv/badger) already pulls in
// transitively; qdb promotes it from an indirect build of badger to a direct
// dependency fronting the dictionary's hot string->id / id->term lookups,
// replacing the teacher's hand-rolled container/list LRU (internal/lru) with
// the concurrent, cost-aware cache the rest of the stack already ships.
func newTermCache(size int) *ristretto.Cache {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(size) * 10,
		MaxCost:     int64(size),
		BufferItems: 64,
	})
	if err != nil {
		// Only returned for a malformed Config; size is always a positive
		// compile-time constant here.
		panic(fmt.Sprintf("dict: building term cache: %v", err))
	}
	return c
}

type shard struct {
	mu      sync.RWMutex
	forward map[string]uint64
	cache   *ristretto.Cache // string -> uint64, recently interned/looked-up terms
}

// Dictionary interns quad.Value terms into dense uint64 IDs and resolves
// IDs back into terms. It is safe for concurrent use by multiple readers
// and writers; Intern serializes ID allocation but never blocks concurrent
// Lookup/Resolve calls on unrelated terms.
type Dictionary struct {
	shards   [numShards]*shard
	nextID   uint64 // atomic
	revMu    sync.RWMutex
	reverse  map[uint64]quad.Value
	revCache *ristretto.Cache // strconv(id) -> quad.Value
}

// New creates an empty Dictionary. capacityHint pre-sizes the internal
// maps; pass 0 if unknown.
func New(capacityHint int) *Dictionary {
	perShard := capacityHint / numShards
	d := &Dictionary{
		nextID:   1, // 0 is reserved for DefaultGraph
		reverse:  make(map[uint64]quad.Value, capacityHint),
		revCache: newTermCache(shardCacheSize * numShards / 4),
	}
	for i := range d.shards {
		d.shards[i] = &shard{
			forward: make(map[string]uint64, perShard),
			cache:   newTermCache(shardCacheSize),
		}
	}
	d.reverse[DefaultGraph] = quad.IRI("")
	return d
}

func canonicalKey(v quad.Value) string {
	if lit, ok := v.(quad.Literal); ok {
		v = lit.Canonical()
	}
	return v.String()
}

func (d *Dictionary) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return d.shards[h.Sum32()&(numShards-1)]
}

// Intern returns the ID for v, allocating a new one if v has not been seen
// before. The default graph sentinel quad.IRI("") always maps to
// DefaultGraph.
func (d *Dictionary) Intern(v quad.Value) (uint64, error) {
	key := canonicalKey(v)
	if key == "" {
		return DefaultGraph, nil
	}
	sh := d.shardFor(key)

	if id, ok := sh.cache.Get(key); ok {
		return id.(uint64), nil
	}

	sh.mu.RLock()
	if id, ok := sh.forward[key]; ok {
		sh.mu.RUnlock()
		sh.cache.Set(key, id, 1)
		return id, nil
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	if id, ok := sh.forward[key]; ok {
		sh.mu.Unlock()
		sh.cache.Set(key, id, 1)
		return id, nil
	}
	id := atomic.AddUint64(&d.nextID, 1) - 1
	if id > maxID {
		sh.mu.Unlock()
		return 0, ErrOutOfIDs
	}
	sh.forward[key] = id
	sh.mu.Unlock()
	sh.cache.Set(key, id, 1)

	d.revMu.Lock()
	d.reverse[id] = v
	d.revMu.Unlock()
	d.revCache.Set(strconv.FormatUint(id, 10), v, 1)

	return id, nil
}

// Lookup returns the ID already assigned to v, without interning it.
func (d *Dictionary) Lookup(v quad.Value) (uint64, error) {
	key := canonicalKey(v)
	if key == "" {
		return DefaultGraph, nil
	}
	sh := d.shardFor(key)

	if id, ok := sh.cache.Get(key); ok {
		return id.(uint64), nil
	}
	sh.mu.RLock()
	id, ok := sh.forward[key]
	sh.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("dict: lookup %q: %w", key, ErrNotFound)
	}
	sh.cache.Set(key, id, 1)
	return id, nil
}

// Resolve returns the term interned under id.
func (d *Dictionary) Resolve(id uint64) (quad.Value, error) {
	if id == DefaultGraph {
		return quad.IRI(""), nil
	}
	ks := strconv.FormatUint(id, 10)
	if v, ok := d.revCache.Get(ks); ok {
		return v.(quad.Value), nil
	}
	d.revMu.RLock()
	v, ok := d.reverse[id]
	d.revMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dict: resolve %d: %w", id, ErrNotFound)
	}
	d.revCache.Set(ks, v, 1)
	return v, nil
}

// Size returns the number of distinct terms interned, excluding the
// default graph sentinel.
func (d *Dictionary) Size() int {
	d.revMu.RLock()
	defer d.revMu.RUnlock()
	return len(d.reverse) - 1
}
