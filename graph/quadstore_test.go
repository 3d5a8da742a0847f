package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/quad"
	"github.com/knowgraph/qdb/store/memstore"
)

func newTestStore() *QuadStore {
	return New(dict.New(0), memstore.New())
}

func abc() quad.Quad {
	return quad.Quad{
		Subject:   quad.IRI("http://example.org/alice"),
		Predicate: quad.IRI("http://example.org/knows"),
		Object:    quad.IRI("http://example.org/bob"),
	}
}

func TestInsertThenCountAndFind(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()
	q := abc()

	require.NoError(t, qs.Insert(ctx, q))
	require.EqualValues(t, 1, qs.Count())

	var got []quad.Quad
	err := qs.Find(ctx, Pattern{}, func(b Binding) (bool, error) {
		rq, err := qs.Resolve([4]uint64{b[quad.Subject], b[quad.Predicate], b[quad.Object], b[quad.Graph]})
		if err != nil {
			return false, err
		}
		got = append(got, rq)
		return true, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, q.Subject, got[0].Subject)
}

func TestInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()
	q := abc()

	require.NoError(t, qs.Insert(ctx, q))
	require.NoError(t, qs.Insert(ctx, q))
	require.EqualValues(t, 1, qs.Count())
}

func TestBatchInsertDedupsWithinBatch(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()
	q := abc()

	require.NoError(t, qs.BatchInsert(ctx, []quad.Quad{q, q, q}))
	require.EqualValues(t, 1, qs.Count())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()
	q := abc()

	require.NoError(t, qs.Insert(ctx, q))
	require.NoError(t, qs.Remove(ctx, q))
	require.EqualValues(t, 0, qs.Count())

	// removing again is a no-op
	require.NoError(t, qs.Remove(ctx, q))
	require.EqualValues(t, 0, qs.Count())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()
	require.NoError(t, qs.Insert(ctx, abc()))
	require.NoError(t, qs.Clear(ctx))
	require.EqualValues(t, 0, qs.Count())

	var n int
	err := qs.Find(ctx, Pattern{}, func(Binding) (bool, error) { n++; return true, nil })
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFindByBoundPredicateUsesPOCS(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()
	q1 := abc()
	q2 := quad.Quad{
		Subject:   quad.IRI("http://example.org/carol"),
		Predicate: quad.IRI("http://example.org/knows"),
		Object:    quad.IRI("http://example.org/dave"),
	}
	q3 := quad.Quad{
		Subject:   quad.IRI("http://example.org/alice"),
		Predicate: quad.IRI("http://example.org/likes"),
		Object:    quad.IRI("http://example.org/pizza"),
	}
	require.NoError(t, qs.BatchInsert(ctx, []quad.Quad{q1, q2, q3}))

	predID, err := qs.dict.Lookup(quad.IRI("http://example.org/knows"))
	require.NoError(t, err)

	var count int
	err = qs.Find(ctx, Pattern{Predicate: &predID}, func(Binding) (bool, error) {
		count++
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestFindFiltersBoundPositionOutsidePrefix(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()
	q1 := abc()
	q2 := quad.Quad{
		Subject:   quad.IRI("http://example.org/alice"),
		Predicate: quad.IRI("http://example.org/knows"),
		Object:    quad.IRI("http://example.org/carol"),
	}
	require.NoError(t, qs.BatchInsert(ctx, []quad.Quad{q1, q2}))

	sID, err := qs.dict.Lookup(quad.IRI("http://example.org/alice"))
	require.NoError(t, err)
	oID, err := qs.dict.Lookup(quad.IRI("http://example.org/bob"))
	require.NoError(t, err)

	// SPOC is selected for s bound (prefix length 1); o is bound but
	// outside the scan prefix, so the matcher must filter in-process.
	var got []uint64
	err = qs.Find(ctx, Pattern{Subject: &sID, Object: &oID}, func(b Binding) (bool, error) {
		got = append(got, b[quad.Object])
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{oID}, got)
}
