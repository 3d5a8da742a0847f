// Package reason implements the RDFS/OWL-fragment reasoner: semi-naive
// fixpoint materialization of four entailment rule families, each detected
// from declarations already present in the data.
package reason

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/knowgraph/qdb/dict"
	"github.com/knowgraph/qdb/graph"
	"github.com/knowgraph/qdb/quad"
	_ "github.com/knowgraph/qdb/voc/core" // registers rdf/rdfs/owl prefixes
	"github.com/knowgraph/qdb/voc/owl"
	"github.com/knowgraph/qdb/voc/rdf"
	"github.com/knowgraph/qdb/voc/rdfs"
)

var (
	predSubClassOf    = quad.IRI(rdfs.SubClassOf).Full()
	predSubPropertyOf = quad.IRI(rdfs.SubPropertyOf).Full()
	predType          = quad.IRI(rdf.Type).Full()
	classSymmetric    = quad.IRI(owl.SymmetricProperty).Full()
	classTransitive   = quad.IRI(owl.TransitiveProperty).Full()
)

// Reasoner materializes RDFS subclass/subproperty and OWL symmetric/
// transitive entailments directly into a graph.QuadStore.
type Reasoner struct {
	qs           *graph.QuadStore
	retainProofs bool
	proofs       map[uint64][]*DerivationRecord // keyed by the derived quad's subject ID, for simplicity of lookup by caller
	all          []*DerivationRecord
}

// New builds a Reasoner over qs. When retainProofs is false, Materialize
// still derives and inserts quads but keeps no DerivationRecords, trading
// provenance for memory — the config.Config.RetainProofs switch.
func New(qs *graph.QuadStore, retainProofs bool) *Reasoner {
	return &Reasoner{
		qs:           qs,
		retainProofs: retainProofs,
		proofs:       make(map[uint64][]*DerivationRecord),
	}
}

// DerivationRecord records that Quad was entailed by Rule from Premises.
type DerivationRecord struct {
	Rule     string
	Quad     quad.Quad
	Premises []quad.Quad
}

// Proofs returns every DerivationRecord accumulated so far. Empty unless
// the Reasoner was built with retainProofs true.
func (r *Reasoner) Proofs() []*DerivationRecord {
	return r.all
}

type derived struct {
	q        quad.Quad
	rule     string
	premises []quad.Quad
}

// key is a compact per-round dedup key for an ID 4-tuple.
type key [4]uint64

// Materialize runs semi-naive fixpoint evaluation to completion: each round
// evaluates every rule using at least one fact derived in the previous
// round, inserts newly entailed quads (a no-op for quads already present),
// and stops when a round inserts nothing. It returns the total number of
// quads actually inserted (new entailments only, not re-derivations of
// existing facts).
func (r *Reasoner) Materialize(ctx context.Context) (int, error) {
	total := 0
	delta, err := r.allQuads(ctx)
	if err != nil {
		return 0, err
	}

	for len(delta) > 0 {
		var (
			candidates []derived
			mu         sync.Mutex
		)
		g, gctx := errgroup.WithContext(ctx)
		for _, rule := range []func(context.Context, []quad.Quad) ([]derived, error){
			r.ruleSubClass,
			r.ruleSubProperty,
			r.ruleSymmetric,
			r.ruleTransitive,
		} {
			rule := rule
			g.Go(func() error {
				d, err := rule(gctx, delta)
				if err != nil {
					return err
				}
				mu.Lock()
				candidates = append(candidates, d...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}

		seen := make(map[key]bool)
		var next []quad.Quad
		for _, c := range candidates {
			ids, err := r.idsOf(c.q)
			if err != nil {
				return total, err
			}
			k := key(ids)
			if seen[k] {
				continue
			}
			seen[k] = true

			isNew, err := r.qs.InsertNew(ctx, c.q)
			if err != nil {
				return total, err
			}
			if !isNew {
				continue
			}
			total++
			next = append(next, c.q)
			if r.retainProofs {
				rec := &DerivationRecord{Rule: c.rule, Quad: c.q, Premises: c.premises}
				r.all = append(r.all, rec)
				r.proofs[ids[0]] = append(r.proofs[ids[0]], rec)
			}
		}
		delta = next
	}
	return total, nil
}

func (r *Reasoner) idsOf(q quad.Quad) ([4]uint64, error) {
	var ids [4]uint64
	var err error
	d := r.qs.Dictionary()
	if ids[0], err = d.Intern(q.Subject); err != nil {
		return ids, err
	}
	if ids[1], err = d.Intern(q.Predicate); err != nil {
		return ids, err
	}
	if ids[2], err = d.Intern(q.Object); err != nil {
		return ids, err
	}
	g := q.Graph
	if g == nil {
		g = quad.IRI("")
	}
	if ids[3], err = d.Intern(g); err != nil {
		return ids, err
	}
	return ids, nil
}

// allQuads returns every quad currently in the store, used to seed the
// first round (the base facts are the initial "delta").
func (r *Reasoner) allQuads(ctx context.Context) ([]quad.Quad, error) {
	var out []quad.Quad
	err := r.qs.Find(ctx, graph.Pattern{}, func(b graph.Binding) (bool, error) {
		q, err := r.qs.Resolve([4]uint64{b[quad.Subject], b[quad.Predicate], b[quad.Object], b[quad.Graph]})
		if err != nil {
			return false, err
		}
		out = append(out, q)
		return true, nil
	})
	return out, err
}

// findByPredicate scans every quad bound to predicate p (a full IRI).
func (r *Reasoner) findByPredicate(ctx context.Context, p quad.IRI) ([]quad.Quad, error) {
	d := r.qs.Dictionary()
	id, err := d.Lookup(p)
	if err != nil {
		if errors.Is(err, dict.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []quad.Quad
	err = r.qs.Find(ctx, graph.Pattern{Predicate: &id}, func(b graph.Binding) (bool, error) {
		q, err := r.qs.Resolve([4]uint64{b[quad.Subject], b[quad.Predicate], b[quad.Object], b[quad.Graph]})
		if err != nil {
			return false, err
		}
		out = append(out, q)
		return true, nil
	})
	return out, err
}

// deltaByPredicate filters a delta slice down to quads with the given
// predicate.
func deltaByPredicate(delta []quad.Quad, p quad.Value) []quad.Quad {
	var out []quad.Quad
	for _, q := range delta {
		if eq(q.Predicate, p) {
			out = append(out, q)
		}
	}
	return out
}

func eq(a, b quad.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// ruleSubClass implements: (C1 rdfs:subClassOf C2), (x rdf:type C1) ->
// (x rdf:type C2).
func (r *Reasoner) ruleSubClass(ctx context.Context, delta []quad.Quad) ([]derived, error) {
	var out []derived

	// half a: new subClassOf facts joined against all rdf:type facts.
	if len(deltaByPredicate(delta, predSubClassOf)) > 0 {
		types, err := r.findByPredicate(ctx, predType)
		if err != nil {
			return nil, err
		}
		for _, sc := range deltaByPredicate(delta, predSubClassOf) {
			for _, t := range types {
				if !eq(t.Object, sc.Subject) {
					continue
				}
				nq := quad.Quad{Subject: t.Subject, Predicate: predType, Object: sc.Object}
				out = append(out, derived{q: nq, rule: "rdfs-subclass", premises: []quad.Quad{sc, t}})
			}
		}
	}

	// half b: new rdf:type facts joined against all subClassOf facts.
	for _, tf := range deltaByPredicate(delta, predType) {
		supers, err := r.findByPredicate(ctx, predSubClassOf)
		if err != nil {
			return nil, err
		}
		for _, sc := range supers {
			if !eq(sc.Subject, tf.Object) {
				continue
			}
			nq := quad.Quad{Subject: tf.Subject, Predicate: predType, Object: sc.Object}
			out = append(out, derived{q: nq, rule: "rdfs-subclass", premises: []quad.Quad{sc, tf}})
		}
	}
	return out, nil
}

// ruleSubProperty implements: (P1 rdfs:subPropertyOf P2), (x P1 y) ->
// (x P2 y).
func (r *Reasoner) ruleSubProperty(ctx context.Context, delta []quad.Quad) ([]derived, error) {
	var out []derived

	// half a: new subPropertyOf facts joined against all quads using P1.
	for _, sp := range deltaByPredicate(delta, predSubPropertyOf) {
		p1, ok := sp.Subject.(quad.IRI)
		if !ok {
			continue
		}
		facts, err := r.findByPredicate(ctx, p1)
		if err != nil {
			return nil, err
		}
		for _, f := range facts {
			nq := quad.Quad{Subject: f.Subject, Predicate: sp.Object, Object: f.Object}
			out = append(out, derived{q: nq, rule: "rdfs-subproperty", premises: []quad.Quad{sp, f}})
		}
	}

	// half b: new facts joined against all subPropertyOf declarations for
	// their own predicate.
	subProps, err := r.findByPredicate(ctx, predSubPropertyOf)
	if err != nil {
		return nil, err
	}
	for _, f := range delta {
		for _, sp := range subProps {
			if !eq(sp.Subject, f.Predicate) {
				continue
			}
			nq := quad.Quad{Subject: f.Subject, Predicate: sp.Object, Object: f.Object}
			out = append(out, derived{q: nq, rule: "rdfs-subproperty", premises: []quad.Quad{sp, f}})
		}
	}
	return out, nil
}

// ruleSymmetric implements: (P rdf:type owl:SymmetricProperty), (x P y) ->
// (y P x).
func (r *Reasoner) ruleSymmetric(ctx context.Context, delta []quad.Quad) ([]derived, error) {
	var out []derived

	// half a: newly declared symmetric property, scan all its facts.
	for _, tf := range deltaByPredicate(delta, predType) {
		if !eq(tf.Object, classSymmetric) {
			continue
		}
		p, ok := tf.Subject.(quad.IRI)
		if !ok {
			continue
		}
		facts, err := r.findByPredicate(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, f := range facts {
			nq := quad.Quad{Subject: f.Object, Predicate: f.Predicate, Object: f.Subject}
			out = append(out, derived{q: nq, rule: "owl-symmetric", premises: []quad.Quad{tf, f}})
		}
	}

	// half b: new fact using an already-declared symmetric predicate.
	symDecls, err := r.symmetricPredicates(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range delta {
		p, ok := f.Predicate.(quad.IRI)
		if !ok || !symDecls[p] {
			continue
		}
		nq := quad.Quad{Subject: f.Object, Predicate: f.Predicate, Object: f.Subject}
		out = append(out, derived{q: nq, rule: "owl-symmetric", premises: []quad.Quad{f}})
	}
	return out, nil
}

func (r *Reasoner) symmetricPredicates(ctx context.Context) (map[quad.IRI]bool, error) {
	decls, err := r.findByPredicate(ctx, predType)
	if err != nil {
		return nil, err
	}
	out := make(map[quad.IRI]bool)
	for _, d := range decls {
		if !eq(d.Object, classSymmetric) {
			continue
		}
		if p, ok := d.Subject.(quad.IRI); ok {
			out[p] = true
		}
	}
	return out, nil
}

// ruleTransitive implements: (P rdf:type owl:TransitiveProperty),
// (x P y), (y P z) -> (x P z).
func (r *Reasoner) ruleTransitive(ctx context.Context, delta []quad.Quad) ([]derived, error) {
	var out []derived

	transDecls, err := r.transitivePredicates(ctx)
	if err != nil {
		return nil, err
	}

	// half a: newly declared transitive property, self-join all its facts.
	for _, tf := range deltaByPredicate(delta, predType) {
		if !eq(tf.Object, classTransitive) {
			continue
		}
		p, ok := tf.Subject.(quad.IRI)
		if !ok {
			continue
		}
		facts, err := r.findByPredicate(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, a := range facts {
			for _, b := range facts {
				if !eq(a.Object, b.Subject) {
					continue
				}
				nq := quad.Quad{Subject: a.Subject, Predicate: p, Object: b.Object}
				out = append(out, derived{q: nq, rule: "owl-transitive", premises: []quad.Quad{tf, a, b}})
			}
		}
	}

	// half b: new fact on an already-transitive predicate, joined against
	// all existing facts on both sides.
	for _, f := range delta {
		p, ok := f.Predicate.(quad.IRI)
		if !ok || !transDecls[p] {
			continue
		}
		facts, err := r.findByPredicate(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, g := range facts {
			if eq(f.Object, g.Subject) {
				nq := quad.Quad{Subject: f.Subject, Predicate: p, Object: g.Object}
				out = append(out, derived{q: nq, rule: "owl-transitive", premises: []quad.Quad{f, g}})
			}
			if eq(g.Object, f.Subject) {
				nq := quad.Quad{Subject: g.Subject, Predicate: p, Object: f.Object}
				out = append(out, derived{q: nq, rule: "owl-transitive", premises: []quad.Quad{g, f}})
			}
		}
	}
	return out, nil
}

func (r *Reasoner) transitivePredicates(ctx context.Context) (map[quad.IRI]bool, error) {
	decls, err := r.findByPredicate(ctx, predType)
	if err != nil {
		return nil, err
	}
	out := make(map[quad.IRI]bool)
	for _, d := range decls {
		if !eq(d.Object, classTransitive) {
			continue
		}
		if p, ok := d.Subject.(quad.IRI); ok {
			out[p] = true
		}
	}
	return out, nil
}
