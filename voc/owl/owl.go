// Package owl contains the constants of the Web Ontology Language (OWL)
// vocabulary that the reasoner recognizes.
package owl

import "github.com/knowgraph/qdb/voc"

func init() {
	voc.RegisterPrefix(Prefix, NS)
}

const (
	NS     = `http://www.w3.org/2002/07/owl#`
	Prefix = `owl:`
)

const (
	// Classes

	// The class of OWL properties that are symmetric.
	SymmetricProperty = Prefix + `SymmetricProperty`
	// The class of OWL properties that are transitive.
	TransitiveProperty = Prefix + `TransitiveProperty`
)
