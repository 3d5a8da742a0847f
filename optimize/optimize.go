// Package optimize reorders the triple patterns of a basic graph pattern
// (BGP) to minimize intermediate solution size before the executor joins
// them, and pushes filter expressions down to the earliest point at which
// every variable they reference is already bound.
package optimize

import (
	"context"
	"errors"
	"sort"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/quad"
)

// Term is one position of a triple pattern: either a bound RDF term or an
// unbound query variable.
type Term struct {
	Var   string // non-empty iff this position is a variable
	Value quad.Value
}

// IsVar reports whether t is an unbound variable position.
func (t Term) IsVar() bool { return t.Var != "" }

// VarTerm builds a variable position.
func VarTerm(name string) Term { return Term{Var: name} }

// ValueTerm builds a bound position.
func ValueTerm(v quad.Value) Term { return Term{Value: v} }

// TriplePattern is one leaf of a BGP: subject/predicate/object, each
// either bound or a variable, plus an optional named graph position.
type TriplePattern struct {
	Subject, Predicate, Object, Graph Term
}

// unboundCount returns the number of variable positions in tp (subject,
// predicate, object only — the graph position does not affect the
// baseline heuristic since it's rarely bound in a query's BGP).
func (tp TriplePattern) unboundCount() int {
	n := 0
	for _, t := range []Term{tp.Subject, tp.Predicate, tp.Object} {
		if t.IsVar() {
			n++
		}
	}
	return n
}

// textualKey gives tp a deterministic tie-break ordering: the string form
// of each position in turn, variables sorting by name and bound terms by
// their RDF term string.
func (tp TriplePattern) textualKey() string {
	key := func(t Term) string {
		if t.IsVar() {
			return "?" + t.Var
		}
		return quad.StringOf(t.Value)
	}
	return key(tp.Subject) + "\x00" + key(tp.Predicate) + "\x00" + key(tp.Object)
}

// Filter is a FILTER expression attached above a BGP, identified here only
// by the set of variables it references — the Optimizer doesn't need to
// evaluate it, only know where it may be pushed.
type Filter struct {
	Vars []string
	// Index identifies this filter for the caller (the executor re-attaches
	// its own expression tree by Index after Reorder returns).
	Index int
}

// Plan is the result of optimizing one BGP: the triple patterns in
// execution order, plus, for each prefix length, the filters that became
// fully bound at that point and so may be evaluated immediately after it.
type Plan struct {
	Patterns []TriplePattern
	// PushedAfter[i] lists filters (by Index) whose variables are all
	// bound once Patterns[:i+1] has been evaluated.
	PushedAfter map[int][]int
}

// Optimizer reorders BGPs. A nil QuadStore falls back to the pure
// variable-count heuristic; a non-nil one additionally consults
// QuadStore.EstimateSelectivity to break ties among patterns with an
// equal unbound-position count, per spec's "optionally refined" clause.
type Optimizer struct {
	qs *graph.QuadStore
}

// New builds an Optimizer. qs may be nil to skip selectivity estimation.
func New(qs *graph.QuadStore) *Optimizer {
	return &Optimizer{qs: qs}
}

// Reorder sorts patterns ascending by unbound-position count (spec.md
// §4.7's baseline contract). When the Optimizer has a backing QuadStore,
// patterns with equal counts are next ordered by a bounded selectivity
// sample; patterns still tied are ordered by their textual form.
// It also computes, for each resulting prefix, which filters have become
// fully bound and can be pushed down immediately below the join that
// completes their last required variable.
func (o *Optimizer) Reorder(ctx context.Context, patterns []TriplePattern, filters []Filter) Plan {
	ordered := make([]TriplePattern, len(patterns))
	copy(ordered, patterns)

	type scored struct {
		tp    TriplePattern
		score int // lower sorts first
	}
	scoredPatterns := make([]scored, len(ordered))
	for i, tp := range ordered {
		s := tp.unboundCount() * 1000
		if o.qs != nil {
			if n, err := o.estimateBucket(ctx, tp); err == nil {
				s += n
			}
		}
		scoredPatterns[i] = scored{tp: tp, score: s}
	}
	sort.SliceStable(scoredPatterns, func(i, j int) bool {
		a, b := scoredPatterns[i], scoredPatterns[j]
		if a.score != b.score {
			return a.score < b.score
		}
		return a.tp.textualKey() < b.tp.textualKey()
	})
	for i, s := range scoredPatterns {
		ordered[i] = s.tp
	}

	pushed := make(map[int][]int)
	bound := make(map[string]bool)
	for i, tp := range ordered {
		for _, t := range []Term{tp.Subject, tp.Predicate, tp.Object} {
			if t.IsVar() {
				bound[t.Var] = true
			}
		}
		for _, f := range filters {
			if allBound(f.Vars, bound) {
				pushed[i] = append(pushed[i], f.Index)
			}
		}
	}
	// Each filter is pushed exactly once, at the earliest prefix where it
	// became fully bound; drop it from every later prefix's list.
	seen := make(map[int]bool)
	for i := 0; i < len(ordered); i++ {
		var keep []int
		for _, idx := range pushed[i] {
			if seen[idx] {
				continue
			}
			seen[idx] = true
			keep = append(keep, idx)
		}
		pushed[i] = keep
	}

	return Plan{Patterns: ordered, PushedAfter: pushed}
}

func allBound(vars []string, bound map[string]bool) bool {
	for _, v := range vars {
		if !bound[v] {
			return false
		}
	}
	return true
}

// estimateBucket returns EstimateSelectivity's count for tp unchanged.
// That count is capped at 256, below the weight of 1000 that Reorder gives
// each unbound position, so it nudges, rather than dominates, the
// variable-count heuristic: a fully-unbound triple pattern never outranks one with a
// bound predicate regardless of that predicate's estimated cardinality.
func (o *Optimizer) estimateBucket(ctx context.Context, tp TriplePattern) (int, error) {
	var pt graph.Pattern
	ids, err := o.idsOf(tp)
	if err != nil {
		return 0, err
	}
	if ids.s != nil {
		pt.Subject = ids.s
	}
	if ids.p != nil {
		pt.Predicate = ids.p
	}
	if ids.o != nil {
		pt.Object = ids.o
	}
	if ids.g != nil {
		pt.Graph = ids.g
	}
	return o.qs.EstimateSelectivity(ctx, pt)
}

type boundIDs struct {
	s, p, o, g *uint64
}

// idsOf looks up the bound positions of tp so the EstimateSelectivity
// probe can use the real index, without interning terms that happen not
// to exist yet. Unbound positions (variables) stay nil wildcards; a bound
// position with no dictionary entry also stays nil, so the probe treats it
// as a wildcard and counts as if that position were unbound, rather than
// returning a zero-match score.
func (o *Optimizer) idsOf(tp TriplePattern) (boundIDs, error) {
	var out boundIDs
	d := o.qs.Dictionary()
	lookup := func(t Term) (*uint64, error) {
		if t.IsVar() {
			return nil, nil
		}
		id, err := d.Lookup(t.Value)
		if err != nil {
			if errors.Is(err, dict.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &id, nil
	}
	var err error
	if out.s, err = lookup(tp.Subject); err != nil {
		return out, err
	}
	if out.p, err = lookup(tp.Predicate); err != nil {
		return out, err
	}
	if out.o, err = lookup(tp.Object); err != nil {
		return out, err
	}
	if out.g, err = lookup(tp.Graph); err != nil {
		return out, err
	}
	return out, nil
}
