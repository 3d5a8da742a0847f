package exec

import (
	"context"
	"errors"
	"strconv"

	"github.com/knowgraph/qdb/quad"
)

// ErrUnbound is returned by VarRef.Eval when the referenced variable has
// no binding in the current row.
var ErrUnbound = errors.New("exec: variable unbound")

// Expr is a SPARQL FILTER/BIND expression. Eval receives the governing
// query's context (threaded through to EXISTS/NOT EXISTS sub-evaluation
// so an outer cancellation or deadline reaches the sub-pattern scan), the
// executor (for dictionary resolution), and the current row's binding.
type Expr interface {
	Eval(ctx context.Context, e *Executor, b Binding) (quad.Value, error)
}

// Lit is a constant expression.
type Lit struct{ Value quad.Value }

func (l Lit) Eval(context.Context, *Executor, Binding) (quad.Value, error) {
	return l.Value, nil
}

// VarRef resolves a bound variable's dictionary ID back to its term.
type VarRef struct{ Var Var }

func (v VarRef) Eval(ctx context.Context, e *Executor, b Binding) (quad.Value, error) {
	id, ok := b[v.Var]
	if !ok {
		return nil, ErrUnbound
	}
	return e.qs.Dictionary().Resolve(id)
}

// Call is a builtin function invocation (STR, CONCAT, REGEX, ...); see
// builtins.go for the dispatch table. Operators (&&, ||, =, <, +, ...)
// are modeled as Calls too, named by their SPARQL symbol.
type Call struct {
	Name string
	Args []Expr
}

func (c Call) Eval(ctx context.Context, e *Executor, b Binding) (quad.Value, error) {
	fn, ok := builtins[c.Name]
	if !ok {
		return nil, errors.New("exec: unknown builtin " + c.Name)
	}
	args := make([]quad.Value, len(c.Args))
	for i, a := range c.Args {
		v, err := a.Eval(ctx, e, b)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(e, b, args)
}

// Exists evaluates Pattern against the current row's binding context; it
// is true iff Pattern yields at least one solution. Negate implements
// NOT EXISTS.
type Exists struct {
	Pattern Node
	Negate  bool
}

func (ex Exists) Eval(ctx context.Context, e *Executor, b Binding) (quad.Value, error) {
	found := false
	err := e.Run(ctx, ex.Pattern, b, func(Binding) (bool, error) {
		found = true
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if ex.Negate {
		found = !found
	}
	return boolValue(found), nil
}

// evalEBV computes an expression's SPARQL "effective boolean value":
// booleans pass through, numeric literals are true iff non-zero,
// strings are true iff non-empty, any other term (or an evaluation
// error) is an EBV type error — which, for FILTER's purposes, behaves
// exactly like false (the row is dropped).
func (e *Executor) evalEBV(ctx context.Context, expr Expr, b Binding) (bool, error) {
	v, err := expr.Eval(ctx, e, b)
	if err != nil {
		return false, err
	}
	return ebv(v)
}

func ebv(v quad.Value) (bool, error) {
	lit, ok := v.(quad.Literal)
	if !ok {
		return false, errors.New("exec: EBV type error")
	}
	switch lit.Datatype.Full() {
	case "http://www.w3.org/2001/XMLSchema#boolean":
		return lit.Value == "true" || lit.Value == "1", nil
	case "http://www.w3.org/2001/XMLSchema#integer", "http://www.w3.org/2001/XMLSchema#double",
		"http://www.w3.org/2001/XMLSchema#float", "http://www.w3.org/2001/XMLSchema#long":
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	case "", "http://www.w3.org/2001/XMLSchema#string":
		return lit.Value != "", nil
	default:
		return false, errors.New("exec: EBV type error")
	}
}

func boolValue(v bool) quad.Value {
	s := "false"
	if v {
		s = "true"
	}
	return quad.Literal{Value: s, Datatype: quad.IRI("http://www.w3.org/2001/XMLSchema#boolean")}
}
