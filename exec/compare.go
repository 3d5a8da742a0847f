package exec

import (
	"strings"

	"github.com/knowgraph/qdb/quad"
)

// termRank orders the three term kinds for SPARQL ORDER BY / comparison
// purposes: blank nodes, then IRIs, then literals.
func termRank(v quad.Value) int {
	switch v.(type) {
	case quad.BNode:
		return 0
	case quad.IRI:
		return 1
	default:
		return 2
	}
}

// compareTerms implements SPARQL's term ordering: different kinds compare
// by termRank; two numeric literals compare by value; otherwise terms
// compare by lexical (string) form. Returns -1, 0, or 1.
func compareTerms(a, b quad.Value) (int, error) {
	ra, rb := termRank(a), termRank(b)
	if ra != rb {
		return sign(ra - rb), nil
	}
	if la, ok := a.(quad.Literal); ok {
		if lb, ok := b.(quad.Literal); ok {
			if fa, err := numeric(la); err == nil {
				if fb, err := numeric(lb); err == nil {
					switch {
					case fa < fb:
						return -1, nil
					case fa > fb:
						return 1, nil
					default:
						return 0, nil
					}
				}
			}
		}
	}
	sa, sb := quad.StringOf(a), quad.StringOf(b)
	return strings.Compare(sa, sb), nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
