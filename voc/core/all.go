// Package core imports all well-known RDF vocabularies used by the reasoner.
package core

import (
	_ "github.com/knowgraph/qdb/voc/owl"
	_ "github.com/knowgraph/qdb/voc/rdf"
	_ "github.com/knowgraph/qdb/voc/rdfs"
)
