package exec

import (
	"context"

	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/optimize"
	"github.com/knowgraph/qdb/quad"
)

// Row is one materialized result row: a resolved term per projected
// variable. A variable absent from the map was unbound for that row.
type Row map[Var]quad.Value

// resolveRow turns an ID-level Binding into a term-level Row.
func (e *Executor) resolveRow(b Binding) (Row, error) {
	out := make(Row, len(b))
	d := e.qs.Dictionary()
	for k, id := range b {
		v, err := d.Resolve(id)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// Select runs n to completion and resolves every binding into a Row,
// restricted to vars (in order). An empty vars list keeps every
// variable bound anywhere in the result set.
func (e *Executor) Select(ctx context.Context, n Node, vars []Var) ([]Row, error) {
	var out []Row
	err := e.Run(ctx, n, Binding{}, func(b Binding) (bool, error) {
		row, err := e.resolveRow(b)
		if err != nil {
			return false, err
		}
		if len(vars) > 0 {
			restricted := make(Row, len(vars))
			for _, v := range vars {
				if val, ok := row[v]; ok {
					restricted[v] = val
				}
			}
			row = restricted
		}
		out = append(out, row)
		return true, nil
	})
	return out, err
}

// Ask reports whether n produces at least one solution.
func (e *Executor) Ask(ctx context.Context, n Node) (bool, error) {
	found := false
	err := e.Run(ctx, n, Binding{}, func(Binding) (bool, error) {
		found = true
		return false, nil
	})
	return found, err
}

// Template is a CONSTRUCT/graph template triple: each position is either
// bound or a query variable filled in from the matching solution row.
type Template = optimize.TriplePattern

// Construct applies template to every solution of n, emitting one quad
// per binding per template triple (skipping triples with any unbound
// variable), merging duplicates.
func (e *Executor) Construct(ctx context.Context, n Node, templates []Template) ([]quad.Quad, error) {
	seen := make(map[string]bool)
	var out []quad.Quad
	err := e.Run(ctx, n, Binding{}, func(b Binding) (bool, error) {
		row, err := e.resolveRow(b)
		if err != nil {
			return false, err
		}
		for _, tpl := range templates {
			q, ok := instantiate(tpl, row)
			if !ok {
				continue
			}
			k := q.String()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, q)
		}
		return true, nil
	})
	return out, err
}

func graphPatternFor(dir quad.Direction, id uint64) graph.Pattern {
	var pt graph.Pattern
	v := id
	switch dir {
	case quad.Subject:
		pt.Subject = &v
	case quad.Object:
		pt.Object = &v
	}
	return pt
}

func instantiate(tpl Template, row Row) (quad.Quad, bool) {
	s, ok := fillTerm(tpl.Subject, row)
	if !ok {
		return quad.Quad{}, false
	}
	p, ok := fillTerm(tpl.Predicate, row)
	if !ok {
		return quad.Quad{}, false
	}
	o, ok := fillTerm(tpl.Object, row)
	if !ok {
		return quad.Quad{}, false
	}
	q := quad.Quad{Subject: s, Predicate: p, Object: o}
	if tpl.Graph.IsVar() {
		if g, ok := row[tpl.Graph.Var]; ok {
			q.Graph = g
		}
	} else if tpl.Graph.Value != nil {
		q.Graph = tpl.Graph.Value
	}
	return q, true
}

func fillTerm(t optimize.Term, row Row) (quad.Value, bool) {
	if !t.IsVar() {
		return t.Value, t.Value != nil
	}
	v, ok := row[t.Var]
	return v, ok
}

// Describe returns every quad in the store whose subject or object
// matches one of the terms appearing in rows (typically the result of a
// prior Select over the variable(s) of interest).
func (e *Executor) Describe(ctx context.Context, rows []Row, vars []Var) ([]quad.Quad, error) {
	terms := make(map[string]quad.Value)
	for _, r := range rows {
		for _, v := range vars {
			if val, ok := r[v]; ok {
				if _, isLit := val.(quad.Literal); !isLit {
					terms[val.String()] = val
				}
			}
		}
	}

	seen := make(map[string]bool)
	var out []quad.Quad
	d := e.qs.Dictionary()
	for _, term := range terms {
		id, err := d.Lookup(term)
		if err != nil {
			continue
		}
		for _, dir := range []quad.Direction{quad.Subject, quad.Object} {
			pt := graphPatternFor(dir, id)
			err := e.qs.Find(ctx, pt, func(b graph.Binding) (bool, error) {
				q, err := e.qs.Resolve([4]uint64{b[quad.Subject], b[quad.Predicate], b[quad.Object], b[quad.Graph]})
				if err != nil {
					return false, err
				}
				k := q.String()
				if !seen[k] {
					seen[k] = true
					out = append(out, q)
				}
				return true, nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
