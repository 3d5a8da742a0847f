package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/quad"
	"github.com/knowgraph/qdb/store/memstore"
)

func TestReorderSortsByUnboundCount(t *testing.T) {
	o := New(nil)
	patterns := []TriplePattern{
		{Subject: VarTerm("s"), Predicate: VarTerm("p"), Object: VarTerm("o")},
		{Subject: ValueTerm(quad.IRI("ex:a")), Predicate: ValueTerm(quad.IRI("ex:knows")), Object: VarTerm("x")},
		{Subject: VarTerm("s2"), Predicate: ValueTerm(quad.IRI("ex:p")), Object: VarTerm("o2")},
	}
	plan := o.Reorder(context.Background(), patterns, nil)

	require.Equal(t, 1, plan.Patterns[0].unboundCount())
	require.Equal(t, 2, plan.Patterns[1].unboundCount())
	require.Equal(t, 3, plan.Patterns[2].unboundCount())
}

func TestReorderTieBreaksByTextualOrder(t *testing.T) {
	o := New(nil)
	patterns := []TriplePattern{
		{Subject: ValueTerm(quad.IRI("ex:z")), Predicate: ValueTerm(quad.IRI("ex:p")), Object: VarTerm("o")},
		{Subject: ValueTerm(quad.IRI("ex:a")), Predicate: ValueTerm(quad.IRI("ex:p")), Object: VarTerm("o2")},
	}
	plan := o.Reorder(context.Background(), patterns, nil)
	require.Equal(t, quad.IRI("ex:a"), plan.Patterns[0].Subject.Value)
	require.Equal(t, quad.IRI("ex:z"), plan.Patterns[1].Subject.Value)
}

func TestReorderPushesFilterAfterItsVariablesAreBound(t *testing.T) {
	o := New(nil)
	patterns := []TriplePattern{
		{Subject: VarTerm("s"), Predicate: ValueTerm(quad.IRI("ex:name")), Object: VarTerm("n")},
		{Subject: VarTerm("s"), Predicate: ValueTerm(quad.IRI("ex:age")), Object: VarTerm("a")},
	}
	filters := []Filter{{Vars: []string{"a"}, Index: 0}}
	plan := o.Reorder(context.Background(), patterns, filters)

	total := 0
	for _, v := range plan.PushedAfter {
		total += len(v)
	}
	require.Equal(t, 1, total)
	// Both patterns have two unbound positions; "<ex:age>" sorts before
	// "<ex:name>" textually, so the age pattern comes first and binds ?a.
	require.Contains(t, plan.PushedAfter[0], 0)
}

func TestReorderUsesSelectivityToBreakTies(t *testing.T) {
	ctx := context.Background()
	qs := graph.New(dict.New(0), memstore.New())
	for i := 0; i < 50; i++ {
		require.NoError(t, qs.Insert(ctx, quad.Quad{
			Subject:   quad.BNode(string(rune('a' + i))),
			Predicate: quad.IRI("ex:common"),
			Object:    quad.BNode(string(rune('A' + i))),
		}))
	}
	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: quad.BNode("s2"), Predicate: quad.IRI("ex:rare"), Object: quad.BNode("o2"),
	}))

	o := New(qs)
	patterns := []TriplePattern{
		{Subject: VarTerm("s"), Predicate: ValueTerm(quad.IRI("ex:common")), Object: VarTerm("o")},
		{Subject: VarTerm("s2"), Predicate: ValueTerm(quad.IRI("ex:rare")), Object: VarTerm("o2")},
	}
	plan := o.Reorder(ctx, patterns, nil)
	require.Equal(t, quad.IRI("ex:rare"), plan.Patterns[0].Predicate.Value)
}
