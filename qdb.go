// Package qdb ties the dictionary, storage backend, quad store, reasoner,
// optimizer and executor into one embeddable handle, the way cayley.go and
// db.Open wire a graph.Handle together from a config.Config.
package qdb

import (
	"context"
	"fmt"

	"github.com/knowgraph/qdb/clog"
	_ "github.com/knowgraph/qdb/clog/glog" // binds glog as the active clog.Logger
	"github.com/knowgraph/qdb/config"
	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/exec"
	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/optimize"
	"github.com/knowgraph/qdb/quad"
	"github.com/knowgraph/qdb/reason"
	"github.com/knowgraph/qdb/store"
	"github.com/knowgraph/qdb/store/badgerstore"
	"github.com/knowgraph/qdb/store/boltstore"
	"github.com/knowgraph/qdb/store/memstore"
	"github.com/knowgraph/qdb/store/sqlstore"
)

// Graph is the top-level handle a caller opens once and queries many times,
// bundling the QuadStore with the Optimizer/Executor pair that runs query
// plans against it and the Reasoner that materializes entailments on demand.
type Graph struct {
	cfg  *config.Config
	qs   *graph.QuadStore
	opt  *optimize.Optimizer
	ex   *exec.Executor
	reas *reason.Reasoner
}

// Open builds a backend from cfg.Backend/cfg.DSN, wraps it in a QuadStore,
// and returns the assembled Graph — the library counterpart of db.Open's
// "select backend by name, build the handle" contract, minus the
// process-level flag/file indirection cmd/cayley layers on top of it.
func Open(cfg *config.Config) (*Graph, error) {
	backend, err := openBackend(cfg.Backend, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("qdb: open backend %q: %w", cfg.Backend, err)
	}
	clog.Infof("qdb: opened %q backend (dsn=%q)", cfg.Backend, cfg.DSN)

	d := dict.New(cfg.InitialCapacity)
	qs := graph.New(d, store.Instrument(backend))
	return &Graph{
		cfg:  cfg,
		qs:   qs,
		opt:  optimize.New(qs),
		ex:   exec.New(qs),
		reas: reason.New(qs, cfg.RetainProofs),
	}, nil
}

func openBackend(name, dsn string) (store.Backend, error) {
	switch name {
	case "", "memory":
		return memstore.New(), nil
	case "badger":
		return badgerstore.Open(dsn)
	case "bolt":
		return boltstore.Open(dsn)
	case "sql":
		return sqlstore.Open(dsn)
	default:
		return nil, fmt.Errorf("qdb: unknown backend %q", name)
	}
}

// Close releases the underlying storage backend's resources.
func (g *Graph) Close() error {
	return g.qs.Close()
}

// QuadStore exposes the underlying store for callers that need direct
// Insert/Remove/Find access beyond the query-form wrappers below.
func (g *Graph) QuadStore() *graph.QuadStore { return g.qs }

// Insert adds a single quad, resolving BaseURI-relative IRIs is the
// caller's responsibility (done by the quad parser, not here).
func (g *Graph) Insert(ctx context.Context, q quad.Quad) error {
	return g.qs.Insert(ctx, q)
}

// BatchInsert adds many quads at once; see graph.QuadStore.BatchInsert.
func (g *Graph) BatchInsert(ctx context.Context, quads []quad.Quad) error {
	return g.qs.BatchInsert(ctx, quads)
}

// Materialize runs the Reasoner's semi-naive fixpoint to completion,
// returning the number of quads it derived. A no-op returning (0, nil) when
// cfg.ReasonerEnabled is false.
func (g *Graph) Materialize(ctx context.Context) (int, error) {
	if !g.cfg.ReasonerEnabled {
		return 0, nil
	}
	n, err := g.reas.Materialize(ctx)
	if err != nil {
		return n, err
	}
	clog.Infof("qdb: reasoner materialized %d quads", n)
	return n, nil
}

// Proofs returns the DerivationRecords accumulated by every Materialize
// call so far, empty unless cfg.RetainProofs was set at Open time.
func (g *Graph) Proofs() []*reason.DerivationRecord {
	return g.reas.Proofs()
}

// plan turns an already-reordered BGP plus its pushed-down filters into an
// executable algebra tree: BuildBGP's left-deep join chain with each
// Filter wrapped in at the prefix length Plan.PushedAfter assigned it.
func plan(p optimize.Plan, filters []optimize.Filter, exprs map[int]exec.Expr) exec.Node {
	var n exec.Node = &exec.UnitNode{}
	for i, tp := range p.Patterns {
		var leaf exec.Node = &exec.TriplePatternNode{TP: tp}
		if _, ok := n.(*exec.UnitNode); ok {
			n = leaf
		} else {
			n = &exec.JoinNode{Left: n, Right: leaf}
		}
		for _, fi := range p.PushedAfter[i] {
			if e, ok := exprs[fi]; ok {
				n = &exec.FilterNode{Input: n, Expr: e}
			}
		}
	}
	return n
}

// Select reorders patterns via the Optimizer, pushes filters down, and runs
// the resulting plan, returning one Row per solution restricted to vars.
func (g *Graph) Select(ctx context.Context, patterns []optimize.TriplePattern, filters []optimize.Filter, exprs map[int]exec.Expr, vars []exec.Var) ([]exec.Row, error) {
	p := g.opt.Reorder(ctx, patterns, filters)
	return g.ex.Select(ctx, plan(p, filters, exprs), vars)
}

// Ask reports whether patterns (reordered/filtered the same way Select
// does) yield at least one solution.
func (g *Graph) Ask(ctx context.Context, patterns []optimize.TriplePattern, filters []optimize.Filter, exprs map[int]exec.Expr) (bool, error) {
	p := g.opt.Reorder(ctx, patterns, filters)
	return g.ex.Ask(ctx, plan(p, filters, exprs))
}

// Construct reorders/filters patterns, then instantiates templates against
// every solution row, deduplicating the result.
func (g *Graph) Construct(ctx context.Context, patterns []optimize.TriplePattern, filters []optimize.Filter, exprs map[int]exec.Expr, templates []exec.Template) ([]quad.Quad, error) {
	p := g.opt.Reorder(ctx, patterns, filters)
	return g.ex.Construct(ctx, plan(p, filters, exprs), templates)
}

// Describe runs Select over patterns/vars, then expands the result into
// every quad touching one of the selected terms.
func (g *Graph) Describe(ctx context.Context, patterns []optimize.TriplePattern, filters []optimize.Filter, exprs map[int]exec.Expr, vars []exec.Var) ([]quad.Quad, error) {
	rows, err := g.Select(ctx, patterns, filters, exprs, vars)
	if err != nil {
		return nil, err
	}
	return g.ex.Describe(ctx, rows, vars)
}
