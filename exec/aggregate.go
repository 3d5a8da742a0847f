package exec

import (
	"strings"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/quad"
)

// computeAggregate evaluates one Aggregate over a group's rows. A nil
// result (no error) means "unbound", the SPARQL default for every
// aggregate but COUNT over an empty group.
func computeAggregate(d *dict.Dictionary, agg Aggregate, rows []Binding) (quad.Value, error) {
	switch agg.Op {
	case AggCount:
		if agg.Var == "" {
			return intLit(int64(len(rows))), nil
		}
		n := 0
		for _, r := range rows {
			if _, ok := r[agg.Var]; ok {
				n++
			}
		}
		return intLit(int64(n)), nil

	case AggSum, AggAvg, AggMin, AggMax:
		vals, err := resolveGroupValues(d, agg.Var, rows)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, nil
		}
		return numericAggregate(agg.Op, vals)

	case AggSample:
		for _, r := range rows {
			if id, ok := r[agg.Var]; ok {
				return d.Resolve(id)
			}
		}
		return nil, nil

	case AggGroupConcat:
		sep := agg.Separator
		if sep == "" {
			sep = " "
		}
		var parts []string
		for _, r := range rows {
			id, ok := r[agg.Var]
			if !ok {
				continue
			}
			v, err := d.Resolve(id)
			if err != nil {
				return nil, err
			}
			parts = append(parts, lexical(v))
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return strLit(strings.Join(parts, sep)), nil
	}
	return nil, nil
}

func resolveGroupValues(d *dict.Dictionary, v Var, rows []Binding) ([]float64, error) {
	var out []float64
	for _, r := range rows {
		id, ok := r[v]
		if !ok {
			continue
		}
		val, err := d.Resolve(id)
		if err != nil {
			return nil, err
		}
		f, err := numeric(val)
		if err != nil {
			continue // non-numeric values in a numeric aggregate are skipped per XSD promotion rules
		}
		out = append(out, f)
	}
	return out, nil
}

func numericAggregate(op AggregateOp, vals []float64) (quad.Value, error) {
	switch op {
	case AggSum:
		var s float64
		for _, v := range vals {
			s += v
		}
		return numLit(s), nil
	case AggAvg:
		var s float64
		for _, v := range vals {
			s += v
		}
		return numLit(s / float64(len(vals))), nil
	case AggMin:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return numLit(m), nil
	case AggMax:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return numLit(m), nil
	}
	return nil, nil
}
