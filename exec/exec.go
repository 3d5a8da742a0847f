// Package exec implements the query executor: a single-threaded,
// cooperative fold over a pre-parsed SPARQL algebra tree, producing
// solution sequences of variable bindings by delegating triple-pattern
// leaves to graph.QuadStore.Find.
package exec

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/optimize"
	"github.com/knowgraph/qdb/quad"
)

// Var names a SPARQL query variable.
type Var = string

// Binding maps variables bound so far in a solution row to dictionary
// term IDs, per spec's "partial function from query variables to term
// IDs" contract.
type Binding map[Var]uint64

// Clone returns a shallow copy of b, safe to extend without mutating b.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// hashJoinThreshold is the row count above which Join/LeftJoin build a
// hash index on the shared-variable key instead of nested-looping, per
// spec.md §4.8's "switching to hash join when the smaller side fits an
// implementation-defined threshold".
const hashJoinThreshold = 16

// ErrCancelled wraps context cancellation observed between operator steps.
var ErrCancelled = errors.New("exec: cancelled")

// Executor walks an algebra tree against a QuadStore.
type Executor struct {
	qs *graph.QuadStore
}

// New builds an Executor over qs.
func New(qs *graph.QuadStore) *Executor {
	return &Executor{qs: qs}
}

// QuadStore returns the store this Executor queries.
func (e *Executor) QuadStore() *graph.QuadStore { return e.qs }

// Run evaluates n against the incoming binding context in (typically
// empty at the top of a query) and streams every resulting Binding to
// fn. fn returns false to stop early (e.g. once a LIMIT is satisfied);
// Run then stops producing and returns nil.
func (e *Executor) Run(ctx context.Context, n Node, in Binding, fn func(Binding) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return ErrCancelled
	}
	switch node := n.(type) {
	case *UnitNode:
		_, err := fn(in)
		return err
	case *TriplePatternNode:
		return e.runTriplePattern(ctx, node, in, fn)
	case *JoinNode:
		return e.runJoin(ctx, node.Left, node.Right, in, fn, false)
	case *LeftJoinNode:
		return e.runJoin(ctx, node.Left, node.Right, in, fn, true)
	case *UnionNode:
		stopped := false
		err := e.Run(ctx, node.Left, in, func(b Binding) (bool, error) {
			cont, err := fn(b)
			if !cont {
				stopped = true
			}
			return cont, err
		})
		if err != nil || stopped {
			return err
		}
		return e.Run(ctx, node.Right, in, fn)
	case *FilterNode:
		return e.runFilter(ctx, node, in, fn)
	case *BindNode:
		return e.runBind(ctx, node, in, fn)
	case *ProjectNode:
		return e.Run(ctx, node.Input, in, func(b Binding) (bool, error) {
			return fn(project(b, node.Vars))
		})
	case *DistinctNode:
		return e.runDistinct(ctx, node, in, fn)
	case *OrderByNode:
		return e.runOrderBy(ctx, node, in, fn)
	case *SliceNode:
		return e.runSlice(ctx, node, in, fn)
	case *GroupNode:
		return e.runGroup(ctx, node, in, fn)
	default:
		return errors.New("exec: unknown algebra node type")
	}
}

// collect materializes every binding n produces under context in.
func (e *Executor) collect(ctx context.Context, n Node, in Binding) ([]Binding, error) {
	var out []Binding
	err := e.Run(ctx, n, in, func(b Binding) (bool, error) {
		out = append(out, b)
		return true, nil
	})
	return out, err
}

func (e *Executor) runTriplePattern(ctx context.Context, node *TriplePatternNode, in Binding, fn func(Binding) (bool, error)) error {
	pt, err := e.resolvePattern(node.TP, in)
	if err != nil {
		return err
	}
	return e.qs.Find(ctx, pt, func(b graph.Binding) (bool, error) {
		out := in.Clone()
		bindTerm(out, node.TP.Subject, b[quad.Subject])
		bindTerm(out, node.TP.Predicate, b[quad.Predicate])
		bindTerm(out, node.TP.Object, b[quad.Object])
		if node.TP.Graph.IsVar() {
			out[node.TP.Graph.Var] = b[quad.Graph]
		}
		return fn(out)
	})
}

func bindTerm(out Binding, t optimize.Term, id uint64) {
	if t.IsVar() {
		out[t.Var] = id
	}
}

// resolvePattern turns an algebra triple pattern into a graph.Pattern,
// substituting any variable already bound in `in` as a constant — this
// is what lets a single triple pattern reuse bindings carried in from an
// enclosing context (the incoming binding of Run, or an EXISTS
// sub-pattern evaluated against a solution).
func (e *Executor) resolvePattern(tp optimize.TriplePattern, in Binding) (graph.Pattern, error) {
	var pt graph.Pattern
	var err error
	if pt.Subject, err = e.resolveTerm(tp.Subject, in); err != nil {
		return pt, err
	}
	if pt.Predicate, err = e.resolveTerm(tp.Predicate, in); err != nil {
		return pt, err
	}
	if pt.Object, err = e.resolveTerm(tp.Object, in); err != nil {
		return pt, err
	}
	if pt.Graph, err = e.resolveTerm(tp.Graph, in); err != nil {
		return pt, err
	}
	return pt, nil
}

func (e *Executor) resolveTerm(t optimize.Term, in Binding) (*uint64, error) {
	if t.IsVar() {
		if id, ok := in[t.Var]; ok {
			v := id
			return &v, nil
		}
		return nil, nil
	}
	if t.Value == nil {
		return nil, nil
	}
	id, err := e.qs.Dictionary().Intern(t.Value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (e *Executor) runJoin(ctx context.Context, left, right Node, in Binding, fn func(Binding) (bool, error), optional bool) error {
	leftRows, err := e.collect(ctx, left, in)
	if err != nil {
		return err
	}
	if len(leftRows) == 0 {
		return nil
	}
	rightRows, err := e.collect(ctx, right, in)
	if err != nil {
		return err
	}
	shared := sharedVars(leftRows, rightRows)

	if len(rightRows) > hashJoinThreshold && len(shared) > 0 {
		return e.hashJoin(leftRows, rightRows, shared, optional, fn)
	}
	return e.nestedLoopJoin(leftRows, rightRows, optional, fn)
}

func (e *Executor) nestedLoopJoin(leftRows, rightRows []Binding, optional bool, fn func(Binding) (bool, error)) error {
	for _, l := range leftRows {
		matched := false
		for _, r := range rightRows {
			merged, ok := mergeBindings(l, r)
			if !ok {
				continue
			}
			matched = true
			cont, err := fn(merged)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		if optional && !matched {
			cont, err := fn(l)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
	}
	return nil
}

func (e *Executor) hashJoin(leftRows, rightRows []Binding, shared []Var, optional bool, fn func(Binding) (bool, error)) error {
	index := make(map[string][]Binding, len(rightRows))
	for _, r := range rightRows {
		k := keyOf(r, shared)
		index[k] = append(index[k], r)
	}
	for _, l := range leftRows {
		candidates := index[keyOf(l, shared)]
		matched := false
		for _, r := range candidates {
			merged, ok := mergeBindings(l, r)
			if !ok {
				continue
			}
			matched = true
			cont, err := fn(merged)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		if optional && !matched {
			cont, err := fn(l)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
	}
	return nil
}

// mergeBindings combines a and b iff every variable bound in both maps to
// the same ID, per spec's join-compatibility invariant.
func mergeBindings(a, b Binding) (Binding, bool) {
	out := a.Clone()
	for k, v := range b {
		if existing, ok := out[k]; ok && existing != v {
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

// sharedVars returns the variables present in every row of both slices
// (both slices are assumed internally uniform, true for bindings produced
// by one algebra subtree).
func sharedVars(leftRows, rightRows []Binding) []Var {
	if len(leftRows) == 0 || len(rightRows) == 0 {
		return nil
	}
	var out []Var
	for k := range leftRows[0] {
		if _, ok := rightRows[0][k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func keyOf(b Binding, vars []Var) string {
	buf := make([]byte, 0, 16*len(vars))
	for _, v := range vars {
		buf = strconv.AppendUint(buf, b[v], 36)
		buf = append(buf, '\x00')
	}
	return string(buf)
}

func project(b Binding, vars []Var) Binding {
	out := make(Binding, len(vars))
	for _, v := range vars {
		if id, ok := b[v]; ok {
			out[v] = id
		}
	}
	return out
}

func (e *Executor) runFilter(ctx context.Context, node *FilterNode, in Binding, fn func(Binding) (bool, error)) error {
	return e.Run(ctx, node.Input, in, func(b Binding) (bool, error) {
		ok, err := e.evalEBV(ctx, node.Expr, b)
		if err != nil || !ok {
			return true, nil // expression error or false: drop the row, keep iterating
		}
		return fn(b)
	})
}

func (e *Executor) runBind(ctx context.Context, node *BindNode, in Binding, fn func(Binding) (bool, error)) error {
	return e.Run(ctx, node.Input, in, func(b Binding) (bool, error) {
		out := b.Clone()
		v, err := node.Expr.Eval(ctx, e, b)
		if err == nil {
			if id, ierr := e.qs.Dictionary().Intern(v); ierr == nil {
				out[node.Var] = id
			}
		}
		// on error, leave node.Var unset — the row is still emitted.
		return fn(out)
	})
}

func (e *Executor) runDistinct(ctx context.Context, node *DistinctNode, in Binding, fn func(Binding) (bool, error)) error {
	seen := make(map[string]bool)
	return e.Run(ctx, node.Input, in, func(b Binding) (bool, error) {
		keys := make([]Var, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		k := keyOf(b, keys)
		if seen[k] {
			return true, nil
		}
		seen[k] = true
		return fn(b)
	})
}

func (e *Executor) runSlice(ctx context.Context, node *SliceNode, in Binding, fn func(Binding) (bool, error)) error {
	offset := node.Offset
	if offset < 0 {
		offset = 0
	}
	if node.Limit == 0 {
		return nil
	}
	n := 0
	emitted := 0
	return e.Run(ctx, node.Input, in, func(b Binding) (bool, error) {
		n++
		if n <= offset {
			return true, nil
		}
		cont, err := fn(b)
		if err != nil {
			return false, err
		}
		emitted++
		if node.Limit > 0 && emitted >= node.Limit {
			return false, nil
		}
		return cont, nil
	})
}

func (e *Executor) runOrderBy(ctx context.Context, node *OrderByNode, in Binding, fn func(Binding) (bool, error)) error {
	rows, err := e.collect(ctx, node.Input, in)
	if err != nil {
		return err
	}
	d := e.qs.Dictionary()

	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range node.Keys {
			less, ok, err := lessByKey(d, rows[i], rows[j], k)
			if err != nil {
				sortErr = err
				return false
			}
			if ok {
				return less
			}
		}
		return false
	})
	if sortErr != nil {
		return sortErr
	}

	for _, r := range rows {
		cont, err := fn(r)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// lessByKey compares two rows on a single ORDER BY key. ok is false when
// the key doesn't distinguish the rows (equal, or both unbound) and the
// caller should fall through to the next key.
func lessByKey(d interface {
	Resolve(uint64) (quad.Value, error)
}, a, b Binding, k OrderKey) (less bool, ok bool, err error) {
	aID, aBound := a[k.Var]
	bID, bBound := b[k.Var]
	if !aBound && !bBound {
		return false, false, nil
	}
	// unbound sorts first on ASC, last on DESC.
	if !aBound {
		return !k.Desc, true, nil
	}
	if !bBound {
		return k.Desc, true, nil
	}
	av, err := d.Resolve(aID)
	if err != nil {
		return false, false, err
	}
	bv, err := d.Resolve(bID)
	if err != nil {
		return false, false, err
	}
	c, err := compareTerms(av, bv)
	if err != nil {
		return false, false, err
	}
	if c == 0 {
		return false, false, nil
	}
	lt := c < 0
	if k.Desc {
		lt = !lt
	}
	return lt, true, nil
}

func (e *Executor) runGroup(ctx context.Context, node *GroupNode, in Binding, fn func(Binding) (bool, error)) error {
	rows, err := e.collect(ctx, node.Input, in)
	if err != nil {
		return err
	}

	type group struct {
		key  Binding
		rows []Binding
	}
	order := make([]string, 0)
	groups := make(map[string]*group)
	for _, r := range rows {
		key := make(Binding, len(node.By))
		for _, v := range node.By {
			if id, ok := r[v]; ok {
				key[v] = id
			}
		}
		k := keyOf(key, node.By)
		g, ok := groups[k]
		if !ok {
			g = &group{key: key}
			groups[k] = g
			order = append(order, k)
		}
		g.rows = append(g.rows, r)
	}
	if len(rows) == 0 && len(node.By) == 0 {
		// SPARQL: aggregating an empty input with no GROUP BY still
		// produces one group (COUNT → 0, others → unbound).
		order = append(order, "")
		groups[""] = &group{key: Binding{}}
	}

	d := e.qs.Dictionary()
	for _, k := range order {
		g := groups[k]
		out := g.key.Clone()
		for _, agg := range node.Aggs {
			v, err := computeAggregate(d, agg, g.rows)
			if err != nil {
				continue // aggregate errors leave the result var unbound
			}
			if v == nil {
				continue
			}
			id, err := d.Intern(v)
			if err != nil {
				continue
			}
			out[agg.As] = id
		}
		cont, err := fn(out)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}
