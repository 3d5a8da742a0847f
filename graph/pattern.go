package graph

import (
	"context"

	"github.com/knowgraph/qdb/quad"
	"github.com/knowgraph/qdb/store"
)

// Pattern is a triple pattern over dictionary IDs: each position is either
// bound to a specific ID or left as a wildcard (nil).
type Pattern struct {
	Subject   *uint64
	Predicate *uint64
	Object    *uint64
	Graph     *uint64
}

func (pt Pattern) get(d quad.Direction) *uint64 {
	switch d {
	case quad.Subject:
		return pt.Subject
	case quad.Predicate:
		return pt.Predicate
	case quad.Object:
		return pt.Object
	case quad.Graph:
		return pt.Graph
	default:
		panic(d.String())
	}
}

// Binding maps the four quad directions to the dictionary IDs matched for a
// single result row. Positions not present in the pattern (wildcards) are
// always included; positions that were bound in the pattern are also
// present with their (already-known) values, so callers can range over a
// Binding uniformly regardless of which positions were wildcards.
type Binding map[quad.Direction]uint64

// selectIndex picks the permutation whose leading positions cover the
// longest run of bound pattern positions, per spec's index-selection
// table; ties are broken by Permutations' declared order (SPOC, POCS,
// OCSP, CSPO). It returns the chosen permutation and the bound ID prefix
// in that permutation's order.
func selectIndex(pt Pattern) (store.Permutation, []uint64) {
	best := store.SPOC
	var bestPrefix []uint64

	for _, p := range store.Permutations {
		dirs := p.Dirs()
		var prefix []uint64
		for _, d := range dirs {
			v := pt.get(d)
			if v == nil {
				break
			}
			prefix = append(prefix, *v)
		}
		if len(prefix) > len(bestPrefix) {
			best = p
			bestPrefix = prefix
		}
	}
	return best, bestPrefix
}

// Find streams every quad (as a Binding of dictionary IDs) matching
// pattern, in index order. It selects an index covering the longest bound
// prefix, prefix-scans the backend, decodes each key, and for any bound
// position that fell outside the scan prefix filters in-process.
func (qs *QuadStore) Find(ctx context.Context, pt Pattern, fn func(Binding) (bool, error)) error {
	qs.mu.RLock()
	defer qs.mu.RUnlock()

	p, prefix := selectIndex(pt)
	key := store.EncodePrefix(p, prefix)

	return qs.backend.PrefixScan(ctx, key, func(kv store.KV) (bool, error) {
		ids, err := store.Decode(p, kv.Key)
		if err != nil {
			return false, err
		}
		spog := unorder(p, ids)
		if !matches(pt, spog) {
			return true, nil
		}
		return fn(Binding{
			quad.Subject:   spog[0],
			quad.Predicate: spog[1],
			quad.Object:    spog[2],
			quad.Graph:     spog[3],
		})
	})
}

// unorder converts a permutation-ordered ID tuple back to [S,P,O,G] order.
func unorder(p store.Permutation, ordered [4]uint64) [4]uint64 {
	dirs := p.Dirs()
	var out [4]uint64
	for i, d := range dirs {
		switch d {
		case quad.Subject:
			out[0] = ordered[i]
		case quad.Predicate:
			out[1] = ordered[i]
		case quad.Object:
			out[2] = ordered[i]
		case quad.Graph:
			out[3] = ordered[i]
		}
	}
	return out
}

// matches reports whether a decoded [S,P,O,G] tuple satisfies every bound
// position of pt, including positions that fell outside the scan prefix.
func matches(pt Pattern, spog [4]uint64) bool {
	if pt.Subject != nil && *pt.Subject != spog[0] {
		return false
	}
	if pt.Predicate != nil && *pt.Predicate != spog[1] {
		return false
	}
	if pt.Object != nil && *pt.Object != spog[2] {
		return false
	}
	if pt.Graph != nil && *pt.Graph != spog[3] {
		return false
	}
	return true
}
