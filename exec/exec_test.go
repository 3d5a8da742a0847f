package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/optimize"
	"github.com/knowgraph/qdb/quad"
	"github.com/knowgraph/qdb/store/memstore"
)

func newTestExecutor(t *testing.T) (*Executor, *graph.QuadStore) {
	qs := graph.New(dict.New(0), memstore.New())
	return New(qs), qs
}

func v(name string) optimize.Term    { return optimize.VarTerm(name) }
func c(val quad.Value) optimize.Term { return optimize.ValueTerm(val) }

func TestSelectSimpleTriplePattern(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: quad.IRI(":a"), Predicate: quad.IRI(":p"), Object: quad.IRI(":x"),
	}))

	n := &TriplePatternNode{TP: optimize.TriplePattern{
		Subject: c(quad.IRI(":a")), Predicate: c(quad.IRI(":p")), Object: v("x"),
	}}
	rows, err := e.Select(ctx, n, []Var{"x"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, quad.IRI(":x"), rows[0]["x"])
}

func TestJoinAcrossSharedVariable(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":p1"), Predicate: quad.IRI(":name"), Object: quad.Literal{Value: "Alice"}}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":p1"), Predicate: quad.IRI(":email"), Object: quad.Literal{Value: "alice@example.org"}}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":p2"), Predicate: quad.IRI(":name"), Object: quad.Literal{Value: "Bob"}}))

	n := &JoinNode{
		Left:  &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("p"), Predicate: c(quad.IRI(":name")), Object: v("n")}},
		Right: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("p"), Predicate: c(quad.IRI(":email")), Object: v("e")}},
	}
	rows, err := e.Select(ctx, n, []Var{"n", "e"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, quad.Literal{Value: "Alice"}, rows[0]["n"])
}

func TestLeftJoinPreservesUnmatchedLeft(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":p1"), Predicate: quad.IRI(":name"), Object: quad.Literal{Value: "Alice"}}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":p1"), Predicate: quad.IRI(":email"), Object: quad.Literal{Value: "alice@example.org"}}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":p2"), Predicate: quad.IRI(":name"), Object: quad.Literal{Value: "Bob"}}))

	n := &LeftJoinNode{
		Left:  &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("p"), Predicate: c(quad.IRI(":name")), Object: v("n")}},
		Right: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("p"), Predicate: c(quad.IRI(":email")), Object: v("e")}},
	}
	rows, err := e.Select(ctx, n, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var sawBobUnbound bool
	for _, r := range rows {
		if r["n"] == (quad.Literal{Value: "Bob"}) {
			_, hasEmail := r["e"]
			sawBobUnbound = !hasEmail
		}
	}
	require.True(t, sawBobUnbound)
}

func TestFilterDropsNonMatchingRows(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":age"), Object: quad.Literal{Value: "30", Datatype: quad.IRI("http://www.w3.org/2001/XMLSchema#integer")}}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":b"), Predicate: quad.IRI(":age"), Object: quad.Literal{Value: "10", Datatype: quad.IRI("http://www.w3.org/2001/XMLSchema#integer")}}))

	n := &FilterNode{
		Input: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: c(quad.IRI(":age")), Object: v("a")}},
		Expr:  Call{Name: ">", Args: []Expr{VarRef{"a"}, Lit{Value: intLit(18)}}},
	}
	rows, err := e.Select(ctx, n, []Var{"s"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, quad.IRI(":a"), rows[0]["s"])
}

func TestDistinctDeduplicates(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":p"), Object: quad.IRI(":x")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":b"), Predicate: quad.IRI(":p"), Object: quad.IRI(":x")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":c"), Predicate: quad.IRI(":q"), Object: quad.IRI(":y")}))

	n := &DistinctNode{Input: &ProjectNode{
		Input: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: v("p"), Object: v("o")}},
		Vars:  []Var{"o"},
	}}
	rows, err := e.Select(ctx, n, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestSliceAppliesOffsetAndLimit(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	for _, o := range []string{":x", ":y", ":z"} {
		require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":p"), Object: quad.IRI(o)}))
	}
	n := &SliceNode{
		Input:  &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: v("p"), Object: v("o")}},
		Offset: 1,
		Limit:  1,
	}
	rows, err := e.Select(ctx, n, []Var{"o"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSliceLimitZeroYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":p"), Object: quad.IRI(":x")}))
	n := &SliceNode{Input: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: v("p"), Object: v("o")}}, Limit: 0}
	rows, err := e.Select(ctx, n, nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestAskReturnsTrueWhenSolutionExists(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":p"), Object: quad.IRI(":x")}))
	n := &TriplePatternNode{TP: optimize.TriplePattern{Subject: c(quad.IRI(":a")), Predicate: c(quad.IRI(":p")), Object: v("x")}}
	ok, err := e.Ask(ctx, n)
	require.NoError(t, err)
	require.True(t, ok)

	n2 := &TriplePatternNode{TP: optimize.TriplePattern{Subject: c(quad.IRI(":nope")), Predicate: c(quad.IRI(":p")), Object: v("x")}}
	ok, err = e.Ask(ctx, n2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConstructAppliesTemplate(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":knows"), Object: quad.IRI(":b")}))

	n := &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: c(quad.IRI(":knows")), Object: v("o")}}
	quads, err := e.Construct(ctx, n, []Template{{Subject: v("o"), Predicate: c(quad.IRI(":knownBy")), Object: v("s")}})
	require.NoError(t, err)
	require.Len(t, quads, 1)
	require.Equal(t, quad.IRI(":b"), quads[0].Subject)
	require.Equal(t, quad.IRI(":a"), quads[0].Object)
}

func TestGroupCountAggregate(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":type"), Object: quad.IRI(":Cat")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":b"), Predicate: quad.IRI(":type"), Object: quad.IRI(":Cat")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":c"), Predicate: quad.IRI(":type"), Object: quad.IRI(":Dog")}))

	n := &GroupNode{
		Input: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: c(quad.IRI(":type")), Object: v("t")}},
		By:    []Var{"t"},
		Aggs:  []Aggregate{{Op: AggCount, Var: "s", As: "n"}},
	}
	rows, err := e.Select(ctx, n, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	total := int64(0)
	for _, r := range rows {
		lit := r["n"].(quad.Literal)
		f, err := numeric(lit)
		require.NoError(t, err)
		total += int64(f)
	}
	require.EqualValues(t, 3, total)
}

func TestSumOverEmptyGroupIsUnbound(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: quad.IRI(":a"), Predicate: quad.IRI(":type"), Object: quad.IRI(":Cat")}))

	n := &GroupNode{
		Input: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: c(quad.IRI(":missing")), Object: v("o")}},
		By:    nil,
		Aggs:  []Aggregate{{Op: AggSum, Var: "o", As: "total"}},
	}
	rows, err := e.Select(ctx, n, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, bound := rows[0]["total"]
	require.False(t, bound)
}

func TestOrderByAscending(t *testing.T) {
	ctx := context.Background()
	e, qs := newTestExecutor(t)
	for _, n := range []string{"30", "10", "20"} {
		require.NoError(t, qs.Insert(ctx, quad.Quad{
			Subject: quad.BNode(n), Predicate: quad.IRI(":age"),
			Object: quad.Literal{Value: n, Datatype: quad.IRI("http://www.w3.org/2001/XMLSchema#integer")},
		}))
	}
	node := &OrderByNode{
		Input: &TriplePatternNode{TP: optimize.TriplePattern{Subject: v("s"), Predicate: c(quad.IRI(":age")), Object: v("a")}},
		Keys:  []OrderKey{{Var: "a"}},
	}
	rows, err := e.Select(ctx, node, []Var{"a"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "10", rows[0]["a"].(quad.Literal).Value)
	require.Equal(t, "20", rows[1]["a"].(quad.Literal).Value)
	require.Equal(t, "30", rows[2]["a"].(quad.Literal).Value)
}
