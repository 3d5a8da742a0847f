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

import (
	"strconv"
	"time"
)

const nsXSD = `http://www.w3.org/2001/XMLSchema#`

// Well-known XSD datatypes recognized for numeric/boolean/datetime promotion.
const (
	Integer  IRI = nsXSD + `integer`
	Long     IRI = nsXSD + `long`
	Double   IRI = nsXSD + `double`
	Float64  IRI = nsXSD + `float`
	Boolean  IRI = nsXSD + `boolean`
	DateTime IRI = nsXSD + `dateTime`
	String   IRI = nsXSD + `string`
)

// conversion turns a literal's lexical form into a native Go value.
type conversion func(string) (interface{}, error)

var knownConversions = map[IRI]conversion{
	Integer:  stringToInt,
	Long:     stringToInt,
	Double:   stringToFloat,
	Float64:  stringToFloat,
	Boolean:  stringToBool,
	DateTime: stringToTime,
}

// RegisterNativeConversion associates a datatype IRI with a function that
// parses the lexical form into a native Go value. Call with a nil fnc to
// remove a registration.
func RegisterNativeConversion(dt IRI, fnc conversion) {
	if fnc == nil {
		delete(knownConversions, dt)
		return
	}
	knownConversions[dt] = fnc
}

// ParseNative parses a literal's lexical form according to its datatype.
// ok is false if the datatype has no registered conversion.
func ParseNative(l Literal) (v interface{}, ok bool, err error) {
	fnc, ok := knownConversions[l.Datatype.Full()]
	if !ok {
		return nil, false, nil
	}
	v, err = fnc(l.Value)
	return v, true, err
}

func stringToInt(s string) (interface{}, error) {
	return strconv.ParseInt(s, 10, 64)
}

func stringToFloat(s string) (interface{}, error) {
	return strconv.ParseFloat(s, 64)
}

func stringToBool(s string) (interface{}, error) {
	return strconv.ParseBool(s)
}

func stringToTime(s string) (interface{}, error) {
	return time.Parse(time.RFC3339, s)
}

// NewInt builds a literal of datatype xsd:integer.
func NewInt(v int64) Literal {
	return Literal{Value: strconv.FormatInt(v, 10), Datatype: Integer}
}

// NewFloat builds a literal of datatype xsd:double.
func NewFloat(v float64) Literal {
	return Literal{Value: strconv.FormatFloat(v, 'g', -1, 64), Datatype: Double}
}

// NewBool builds a literal of datatype xsd:boolean.
func NewBool(v bool) Literal {
	return Literal{Value: strconv.FormatBool(v), Datatype: Boolean}
}

// NewTime builds a literal of datatype xsd:dateTime.
func NewTime(v time.Time) Literal {
	return Literal{Value: v.UTC().Format(time.RFC3339Nano), Datatype: DateTime}
}

// NewString builds a plain (untyped) literal.
func NewString(v string) Literal {
	return Literal{Value: v}
}

// NewLangString builds a language-tagged literal.
func NewLangString(v, lang string) Literal {
	return Literal{Value: v, Lang: lang}
}
