package reason

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/quad"
	"github.com/knowgraph/qdb/store/memstore"
	"github.com/knowgraph/qdb/voc/owl"
	"github.com/knowgraph/qdb/voc/rdf"
	"github.com/knowgraph/qdb/voc/rdfs"
)

func newTestStore() *graph.QuadStore {
	return graph.New(dict.New(0), memstore.New())
}

func iri(s string) quad.IRI { return quad.IRI(s) }

func countByPattern(t *testing.T, qs *graph.QuadStore, pt graph.Pattern) int {
	t.Helper()
	n := 0
	err := qs.Find(context.Background(), pt, func(graph.Binding) (bool, error) {
		n++
		return true, nil
	})
	require.NoError(t, err)
	return n
}

func TestMaterializeSubClass(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()

	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: iri("ex:Dog"), Predicate: quad.IRI(rdfs.SubClassOf).Full(), Object: iri("ex:Animal"),
	}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: iri("ex:fido"), Predicate: quad.IRI(rdf.Type).Full(), Object: iri("ex:Dog"),
	}))

	r := New(qs, false)
	n, err := r.Materialize(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	animalID, err := qs.Dictionary().Lookup(iri("ex:Animal"))
	require.NoError(t, err)
	// The schema quad (Dog subClassOf Animal) plus the derived fido type Animal.
	require.Equal(t, 2, countByPattern(t, qs, graph.Pattern{Object: &animalID}))
}

func TestMaterializeSubClassTransitiveChain(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()

	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:Poodle"), Predicate: quad.IRI(rdfs.SubClassOf).Full(), Object: iri("ex:Dog")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:Dog"), Predicate: quad.IRI(rdfs.SubClassOf).Full(), Object: iri("ex:Animal")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:rex"), Predicate: quad.IRI(rdf.Type).Full(), Object: iri("ex:Poodle")}))

	r := New(qs, true)
	_, err := r.Materialize(ctx)
	require.NoError(t, err)

	animalID, err := qs.Dictionary().Lookup(iri("ex:Animal"))
	require.NoError(t, err)
	// The schema quad (Dog subClassOf Animal) plus the derived rex type Animal.
	require.Equal(t, 2, countByPattern(t, qs, graph.Pattern{Object: &animalID}))
	require.NotEmpty(t, r.Proofs())
}

func TestMaterializeSubProperty(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()

	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: iri("ex:hasMother"), Predicate: quad.IRI(rdfs.SubPropertyOf).Full(), Object: iri("ex:hasParent"),
	}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: iri("ex:alice"), Predicate: iri("ex:hasMother"), Object: iri("ex:jane"),
	}))

	r := New(qs, false)
	n, err := r.Materialize(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	predID, err := qs.Dictionary().Lookup(iri("ex:hasParent"))
	require.NoError(t, err)
	require.Equal(t, 1, countByPattern(t, qs, graph.Pattern{Predicate: &predID}))
}

func TestMaterializeSymmetric(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()

	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: iri("ex:marriedTo"), Predicate: quad.IRI(rdf.Type).Full(), Object: quad.IRI(owl.SymmetricProperty).Full(),
	}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: iri("ex:alice"), Predicate: iri("ex:marriedTo"), Object: iri("ex:bob"),
	}))

	r := New(qs, false)
	n, err := r.Materialize(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	predID, err := qs.Dictionary().Lookup(iri("ex:marriedTo"))
	require.NoError(t, err)
	// alice marriedTo bob and the derived bob marriedTo alice.
	require.Equal(t, 2, countByPattern(t, qs, graph.Pattern{Predicate: &predID}))
}

func TestMaterializeTransitive(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()

	require.NoError(t, qs.Insert(ctx, quad.Quad{
		Subject: iri("ex:ancestorOf"), Predicate: quad.IRI(rdf.Type).Full(), Object: quad.IRI(owl.TransitiveProperty).Full(),
	}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:a"), Predicate: iri("ex:ancestorOf"), Object: iri("ex:b")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:b"), Predicate: iri("ex:ancestorOf"), Object: iri("ex:c")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:c"), Predicate: iri("ex:ancestorOf"), Object: iri("ex:d")}))

	r := New(qs, false)
	_, err := r.Materialize(ctx)
	require.NoError(t, err)

	aID, err := qs.Dictionary().Lookup(iri("ex:a"))
	require.NoError(t, err)
	dID, err := qs.Dictionary().Lookup(iri("ex:d"))
	require.NoError(t, err)
	require.Equal(t, 1, countByPattern(t, qs, graph.Pattern{Subject: &aID, Object: &dID}))
}

func TestMaterializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	qs := newTestStore()

	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:Dog"), Predicate: quad.IRI(rdfs.SubClassOf).Full(), Object: iri("ex:Animal")}))
	require.NoError(t, qs.Insert(ctx, quad.Quad{Subject: iri("ex:fido"), Predicate: quad.IRI(rdf.Type).Full(), Object: iri("ex:Dog")}))

	r := New(qs, false)
	_, err := r.Materialize(ctx)
	require.NoError(t, err)
	before := qs.Count()

	n, err := r.Materialize(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, before, qs.Count())
}
