package dict

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowgraph/qdb/quad"
)

func TestInternIsIdempotent(t *testing.T) {
	d := New(0)
	a, err := d.Intern(quad.IRI("http://example.org/alice"))
	require.NoError(t, err)
	b, err := d.Intern(quad.IRI("http://example.org/alice"))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestInternDistinctTermsGetDistinctIDs(t *testing.T) {
	d := New(0)
	a, err := d.Intern(quad.IRI("http://example.org/alice"))
	require.NoError(t, err)
	b, err := d.Intern(quad.IRI("http://example.org/bob"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestResolveRoundTrip(t *testing.T) {
	d := New(0)
	lit := quad.Literal{Value: "42", Datatype: quad.Integer}
	id, err := d.Intern(lit)
	require.NoError(t, err)

	v, err := d.Resolve(id)
	require.NoError(t, err)
	require.True(t, v.(quad.Literal).Equal(lit))
}

func TestLiteralCanonicalEquivalenceSharesID(t *testing.T) {
	d := New(0)
	a, err := d.Intern(quad.Literal{Value: "x", Lang: "EN"})
	require.NoError(t, err)
	b, err := d.Intern(quad.Literal{Value: "x", Lang: "en"})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestLookupMissingReturnsNotFound(t *testing.T) {
	d := New(0)
	_, err := d.Lookup(quad.IRI("http://example.org/nobody"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMissingReturnsNotFound(t *testing.T) {
	d := New(0)
	_, err := d.Resolve(999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultGraphSentinel(t *testing.T) {
	d := New(0)
	id, err := d.Intern(quad.IRI(""))
	require.NoError(t, err)
	require.Equal(t, DefaultGraph, id)

	v, err := d.Resolve(DefaultGraph)
	require.NoError(t, err)
	require.Equal(t, quad.IRI(""), v)
}

func TestSizeCountsDistinctTerms(t *testing.T) {
	d := New(0)
	require.Equal(t, 0, d.Size())
	_, err := d.Intern(quad.IRI("http://example.org/a"))
	require.NoError(t, err)
	_, err = d.Intern(quad.IRI("http://example.org/a"))
	require.NoError(t, err)
	_, err = d.Intern(quad.IRI("http://example.org/b"))
	require.NoError(t, err)
	require.Equal(t, 2, d.Size())
}
