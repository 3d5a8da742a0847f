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

// Package quad defines the RDF term and quad types shared by every layer of
// the store: the dictionary interns these, the codec encodes their interned
// IDs, and the executor resolves bindings back into them.
package quad

import (
	"strings"

	"github.com/knowgraph/qdb/voc"
)

// Value is the RDF term type. It is a closed sum: IRI, Literal, BNode and
// QuotedTriple are the only concrete cases. A Value never carries storage
// identity — two values with the same String() compare equal under RDF
// semantics (see Equal).
type Value interface {
	String() string
	// Native converts Value to its closest native Go type, for use by
	// expression evaluation. If the type has no Go analog, Native
	// returns the value itself.
	Native() interface{}
}

// Equaler is implemented by values that need a non-structural equality
// check (e.g. canonicalizing datatypes/language tags before comparing).
type Equaler interface {
	Equal(v Value) bool
}

// StringOf safely calls v.String, returning "" for a nil Value.
func StringOf(v Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// NativeOf safely calls v.Native, returning nil for a nil Value.
func NativeOf(v Value) interface{} {
	if v == nil {
		return nil
	}
	return v.Native()
}

// IRI is an RDF Internationalized Resource Identifier (ex: <name>).
type IRI string

func (s IRI) String() string      { return `<` + string(s) + `>` }
func (s IRI) Native() interface{} { return s }

// Short replaces a known vocabulary prefix of the IRI with its short form.
func (s IRI) Short() IRI { return IRI(voc.ShortIRI(string(s))) }

// Full expands a known vocabulary prefix of the IRI to its full form.
func (s IRI) Full() IRI { return IRI(voc.FullIRI(string(s))) }

// BNode is an RDF blank node (ex: _:name). Labels are scope-unique but the
// dictionary interns them as globally distinct terms.
type BNode string

func (s BNode) String() string      { return `_:` + string(s) }
func (s BNode) Native() interface{} { return s }

var litEscaper = strings.NewReplacer(
	"\\", `\\`,
	"\"", `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// Literal is an RDF literal: a lexical form plus an optional datatype IRI
// and an optional language tag. Lang and Datatype are mutually exclusive
// except when Datatype is rdf:langString, which is implied whenever Lang
// is set and Datatype is left empty.
type Literal struct {
	Value    string
	Datatype IRI
	Lang     string
}

func (s Literal) String() string {
	base := `"` + litEscaper.Replace(s.Value) + `"`
	switch {
	case s.Lang != "":
		return base + `@` + s.Lang
	case s.Datatype != "":
		return base + `^^` + s.Datatype.String()
	default:
		return base
	}
}

func (s Literal) Native() interface{} {
	if v, ok, err := ParseNative(s); ok && err == nil {
		return v
	}
	return s.Value
}

// Equal implements Equaler: RDF literal equality is same lexical form,
// same canonical (full) datatype IRI, and the same language tag compared
// case-insensitively, per spec §4.1.
func (s Literal) Equal(v Value) bool {
	o, ok := v.(Literal)
	if !ok {
		return false
	}
	return s.Value == o.Value &&
		s.Datatype.Full() == o.Datatype.Full() &&
		strings.EqualFold(s.Lang, o.Lang)
}

// Canonical returns a copy of the literal with its datatype expanded to
// its full IRI and its language tag lower-cased — the normal form the
// dictionary hashes and interns, per spec §4.1.
func (s Literal) Canonical() Literal {
	s.Datatype = s.Datatype.Full()
	s.Lang = strings.ToLower(s.Lang)
	return s
}

// QuotedTriple is a nested (s, p, o) triple used as a term (RDF-star),
// e.g. as the subject or object of another quad carrying metadata about it.
type QuotedTriple struct {
	Subject   Value
	Predicate Value
	Object    Value
}

func (q QuotedTriple) String() string {
	return `<<` + StringOf(q.Subject) + ` ` + StringOf(q.Predicate) + ` ` + StringOf(q.Object) + `>>`
}
func (q QuotedTriple) Native() interface{} { return q }

// ByValueString sorts values lexicographically by their String() form.
type ByValueString []Value

func (o ByValueString) Len() int           { return len(o) }
func (o ByValueString) Less(i, j int) bool { return StringOf(o[i]) < StringOf(o[j]) }
func (o ByValueString) Swap(i, j int)      { o[i], o[j] = o[j], o[i] }
