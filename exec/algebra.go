package exec

import "github.com/knowgraph/qdb/optimize"

// Node is one node of a SPARQL algebra tree: a triple pattern leaf or one
// of the join/filter/modifier internal node kinds spec.md §4.8 names.
// It is a closed sum — every concrete type below is the only valid
// implementation, matched by Executor.Run's type switch.
type Node interface {
	isNode()
}

// TriplePatternNode is a leaf: a single triple pattern, resolved against
// the QuadStore via the PatternMatcher.
type TriplePatternNode struct {
	TP optimize.TriplePattern
}

// UnitNode yields exactly one empty binding and nothing else — the
// identity element for Join, used as the BGP leaf when a WHERE clause has
// no triple patterns at all.
type UnitNode struct{}

func (*UnitNode) isNode() {}

// JoinNode is a natural inner join on the variables shared between Left
// and Right.
type JoinNode struct {
	Left, Right Node
}

// LeftJoinNode is SPARQL OPTIONAL: every Left row is preserved even when
// Right has no compatible match.
type LeftJoinNode struct {
	Left, Right Node
}

// UnionNode concatenates Left's and Right's solutions, preserving
// per-branch order.
type UnionNode struct {
	Left, Right Node
}

// FilterNode drops rows for which Expr's effective boolean value is false
// or errors.
type FilterNode struct {
	Input Node
	Expr  Expr
}

// BindNode computes Expr per row and attaches it under Var; a row is
// still emitted even when Expr errors, just without Var set.
type BindNode struct {
	Input Node
	Var   Var
	Expr  Expr
}

// ProjectNode restricts each binding to Vars.
type ProjectNode struct {
	Input Node
	Vars  []Var
}

// DistinctNode de-duplicates rows by their full set of bound variables.
type DistinctNode struct {
	Input Node
}

// OrderKey is one ORDER BY clause: sort by Var, descending if Desc.
type OrderKey struct {
	Var  Var
	Desc bool
}

// OrderByNode materializes Input and sorts per Keys, per SPARQL ORDER
// term-kind rules (blank < IRI < literal; numerics then lexical),
// unbound sorting first on ASC.
type OrderByNode struct {
	Input Node
	Keys  []OrderKey
}

// SliceNode drops Offset rows then takes at most Limit; Limit 0 yields an
// empty sequence, Limit < 0 means unlimited, Offset < 0 behaves as 0.
type SliceNode struct {
	Input         Node
	Offset, Limit int
}

// AggregateOp names one of the SPARQL aggregate functions.
type AggregateOp string

const (
	AggCount       AggregateOp = "COUNT"
	AggSum         AggregateOp = "SUM"
	AggAvg         AggregateOp = "AVG"
	AggMin         AggregateOp = "MIN"
	AggMax         AggregateOp = "MAX"
	AggSample      AggregateOp = "SAMPLE"
	AggGroupConcat AggregateOp = "GROUP_CONCAT"
)

// Aggregate computes Op over Var within a group (Var == "" means
// COUNT(*)), binding the result under As. Separator is used by
// GROUP_CONCAT only (default " " if empty).
type Aggregate struct {
	Op        AggregateOp
	Var       Var
	As        Var
	Separator string
}

// GroupNode groups Input's rows by the values of By, computing Aggs
// within each group; an empty By groups the whole input into one group.
type GroupNode struct {
	Input Node
	By    []Var
	Aggs  []Aggregate
}

func (*TriplePatternNode) isNode() {}
func (*JoinNode) isNode()          {}
func (*LeftJoinNode) isNode()      {}
func (*UnionNode) isNode()         {}
func (*FilterNode) isNode()        {}
func (*BindNode) isNode()          {}
func (*ProjectNode) isNode()       {}
func (*DistinctNode) isNode()      {}
func (*OrderByNode) isNode()       {}
func (*SliceNode) isNode()         {}
func (*GroupNode) isNode()         {}

// BuildBGP chains an already-ordered list of triple patterns (e.g. from
// optimize.Optimizer.Reorder) into a left-deep join tree, the shape the
// nested-loop/hash-join evaluator in exec.go expects.
func BuildBGP(patterns []optimize.TriplePattern) Node {
	if len(patterns) == 0 {
		return &UnitNode{}
	}
	var n Node = &TriplePatternNode{TP: patterns[0]}
	for _, tp := range patterns[1:] {
		n = &JoinNode{Left: n, Right: &TriplePatternNode{TP: tp}}
	}
	return n
}
