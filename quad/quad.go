// Copyright 2014 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package quad

// Defines the struct which makes the store possible -- the quad.
//
// At its heart, it consists of four fields -- Subject, Predicate, Object
// and Graph. Four terms that relate to each other. That's all there is to
// it. The quads are the links in the graph, and the existence of a node is
// defined by the fact that some quad mentions it.
//
// This means that a complete representation of the dataset is equivalent to
// a list of quads. The rest -- the four permutation indexes, the dictionary,
// the reasoner -- is just structure for speed and entailment on top of that
// list.

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"sort"
	"sync"
)

var (
	ErrInvalid    = errors.New("quad: invalid quad")
	ErrIncomplete = errors.New("quad: incomplete quad")
)

// Quad is the atomic unit of storage: a subject-predicate-object triple
// scoped to a named graph. Graph may be nil, denoting the default graph.
type Quad struct {
	Subject   Value `json:"subject"`
	Predicate Value `json:"predicate"`
	Object    Value `json:"object"`
	Graph     Value `json:"graph,omitempty"`
}

// Direction identifies one of the four positions of a quad.
type Direction byte

// The four addressable positions of a quad, plus Any for unbound queries.
const (
	Any Direction = iota
	Subject
	Predicate
	Object
	Graph
)

// Directions lists the four bindable positions of a quad, in the
// conventional S, P, O, G order used to name permutation indexes.
var Directions = []Direction{Subject, Predicate, Object, Graph}

func (d Direction) Prefix() byte {
	switch d {
	case Any:
		return 'a'
	case Subject:
		return 's'
	case Predicate:
		return 'p'
	case Object:
		return 'o'
	case Graph:
		return 'g'
	default:
		return '\x00'
	}
}

func (d Direction) String() string {
	switch d {
	case Any:
		return "any"
	case Subject:
		return "subject"
	case Predicate:
		return "predicate"
	case Object:
		return "object"
	case Graph:
		return "graph"
	default:
		return fmt.Sprint("illegal direction:", byte(d))
	}
}

// Get returns the value bound to the given position of the quad.
func (q Quad) Get(d Direction) Value {
	switch d {
	case Subject:
		return q.Subject
	case Predicate:
		return q.Predicate
	case Object:
		return q.Object
	case Graph:
		return q.Graph
	default:
		panic(d.String())
	}
}

// Set returns a copy of q with the given position rebound to v.
func (q Quad) Set(d Direction, v Value) Quad {
	switch d {
	case Subject:
		q.Subject = v
	case Predicate:
		q.Predicate = v
	case Object:
		q.Object = v
	case Graph:
		q.Graph = v
	default:
		panic(d.String())
	}
	return q
}

// GetString returns the string form of the value bound to d, or "" if d is
// unbound.
func (q Quad) GetString(d Direction) string {
	return StringOf(q.Get(d))
}

// String pretty-prints a quad for diagnostics.
func (q Quad) String() string {
	if q.Graph == nil {
		return fmt.Sprintf("%s -- %s -> %s", StringOf(q.Subject), StringOf(q.Predicate), StringOf(q.Object))
	}
	return fmt.Sprintf("%s -- %s -> %s [%s]", StringOf(q.Subject), StringOf(q.Predicate), StringOf(q.Object), StringOf(q.Graph))
}

// IsValid reports whether all three mandatory positions are bound.
func (q Quad) IsValid() bool {
	return q.Subject != nil && q.Predicate != nil && q.Object != nil &&
		q.Subject.String() != "" && q.Predicate.String() != "" && q.Object.String() != ""
}

// Validate returns ErrIncomplete if a mandatory position is nil, or
// ErrInvalid if a bound position stringifies to empty.
func (q Quad) Validate() error {
	for _, d := range []Direction{Subject, Predicate, Object} {
		v := q.Get(d)
		if v == nil {
			return fmt.Errorf("quad: missing %s: %w", d, ErrIncomplete)
		}
		if v.String() == "" {
			return fmt.Errorf("quad: empty %s: %w", d, ErrInvalid)
		}
	}
	return nil
}

const HashSize = sha1.Size

var hashPool = sync.Pool{
	New: func() interface{} { return sha1.New() },
}

// HashOf returns the SHA-1 hash of a term's string form (the hash of empty
// input for a nil term).
func HashOf(v Value) []byte {
	h := hashPool.Get().(hash.Hash)
	h.Reset()
	defer hashPool.Put(h)
	key := make([]byte, 0, HashSize)
	if v != nil {
		h.Write([]byte(v.String()))
	}
	return h.Sum(key)
}

// ByQuadString sorts quads lexicographically by their S, P, O, G string
// forms, used by tests and by deterministic dump/diff tooling.
type ByQuadString []Quad

func (o ByQuadString) Len() int      { return len(o) }
func (o ByQuadString) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o ByQuadString) Less(i, j int) bool {
	a, b := o[i], o[j]
	if a.GetString(Subject) != b.GetString(Subject) {
		return a.GetString(Subject) < b.GetString(Subject)
	}
	if a.GetString(Predicate) != b.GetString(Predicate) {
		return a.GetString(Predicate) < b.GetString(Predicate)
	}
	if a.GetString(Object) != b.GetString(Object) {
		return a.GetString(Object) < b.GetString(Object)
	}
	return a.GetString(Graph) < b.GetString(Graph)
}

// Sort orders a slice of quads in place using ByQuadString.
func Sort(qs []Quad) { sort.Sort(ByQuadString(qs)) }
