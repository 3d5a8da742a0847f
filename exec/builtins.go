package exec

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowgraph/qdb/quad"
)

const xsd = "http://www.w3.org/2001/XMLSchema#"

func xsdIRI(local string) quad.IRI { return quad.IRI(xsd + local) }

func strLit(s string) quad.Value { return quad.Literal{Value: s, Datatype: xsdIRI("string")} }
func numLit(f float64) quad.Value {
	return quad.Literal{Value: strconv.FormatFloat(f, 'g', -1, 64), Datatype: xsdIRI("double")}
}
func intLit(n int64) quad.Value {
	return quad.Literal{Value: strconv.FormatInt(n, 10), Datatype: xsdIRI("integer")}
}

// lexical extracts the lexical/native string form of any term for the
// string-family builtins: an IRI's string, a literal's value, a blank
// node's label.
func lexical(v quad.Value) string {
	switch t := v.(type) {
	case quad.Literal:
		return t.Value
	case quad.IRI:
		return string(t)
	case quad.BNode:
		return string(t)
	default:
		return quad.StringOf(v)
	}
}

func numeric(v quad.Value) (float64, error) {
	lit, ok := v.(quad.Literal)
	if !ok {
		return 0, errors.New("exec: not numeric")
	}
	return strconv.ParseFloat(lit.Value, 64)
}

type builtinFunc func(e *Executor, b Binding, args []quad.Value) (quad.Value, error)

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		// boolean connectives and comparisons
		"&&": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			x, err := ebv(a[0])
			if err != nil || !x {
				return boolValue(false), nil
			}
			y, err := ebv(a[1])
			if err != nil {
				return nil, err
			}
			return boolValue(y), nil
		},
		"||": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			x, errX := ebv(a[0])
			if errX == nil && x {
				return boolValue(true), nil
			}
			y, err := ebv(a[1])
			if err != nil {
				return nil, err
			}
			return boolValue(y), nil
		},
		"!": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			x, err := ebv(a[0])
			if err != nil {
				return nil, err
			}
			return boolValue(!x), nil
		},
		"=":  cmpOp(func(c int) bool { return c == 0 }),
		"!=": cmpOp(func(c int) bool { return c != 0 }),
		"<":  cmpOp(func(c int) bool { return c < 0 }),
		"<=": cmpOp(func(c int) bool { return c <= 0 }),
		">":  cmpOp(func(c int) bool { return c > 0 }),
		">=": cmpOp(func(c int) bool { return c >= 0 }),

		"+": arith(func(x, y float64) float64 { return x + y }),
		"-": arith(func(x, y float64) float64 { return x - y }),
		"*": arith(func(x, y float64) float64 { return x * y }),
		"/": arith(func(x, y float64) float64 { return x / y }),

		// string family
		"STR":      func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return strLit(lexical(a[0])), nil },
		"LANG":     func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return strLit(langOf(a[0])), nil },
		"CONCAT":   func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return strLit(concatAll(a)), nil },
		"STRLEN":   func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return intLit(int64(len(lexical(a[0])))), nil },
		"UCASE":    func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return strLit(strings.ToUpper(lexical(a[0]))), nil },
		"LCASE":    func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return strLit(strings.ToLower(lexical(a[0]))), nil },
		"STRSTARTS": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			return boolValue(strings.HasPrefix(lexical(a[0]), lexical(a[1]))), nil
		},
		"STRENDS": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			return boolValue(strings.HasSuffix(lexical(a[0]), lexical(a[1]))), nil
		},
		"CONTAINS": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			return boolValue(strings.Contains(lexical(a[0]), lexical(a[1]))), nil
		},
		"STRBEFORE": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			s, sep := lexical(a[0]), lexical(a[1])
			if i := strings.Index(s, sep); i >= 0 {
				return strLit(s[:i]), nil
			}
			return strLit(""), nil
		},
		"STRAFTER": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			s, sep := lexical(a[0]), lexical(a[1])
			if i := strings.Index(s, sep); i >= 0 {
				return strLit(s[i+len(sep):]), nil
			}
			return strLit(""), nil
		},
		"SUBSTR": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			s := []rune(lexical(a[0]))
			start, err := numeric(a[1])
			if err != nil {
				return nil, err
			}
			i := int(start) - 1
			if i < 0 {
				i = 0
			}
			if i > len(s) {
				i = len(s)
			}
			end := len(s)
			if len(a) > 2 {
				l, err := numeric(a[2])
				if err != nil {
					return nil, err
				}
				if i+int(l) < end {
					end = i + int(l)
				}
			}
			return strLit(string(s[i:end])), nil
		},
		"REGEX": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			flags := ""
			if len(a) > 2 {
				flags = lexical(a[2])
			}
			re, err := compileSPARQLRegex(lexical(a[1]), flags)
			if err != nil {
				return nil, err
			}
			return boolValue(re.MatchString(lexical(a[0]))), nil
		},
		"REPLACE": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			flags := ""
			if len(a) > 3 {
				flags = lexical(a[3])
			}
			re, err := compileSPARQLRegex(lexical(a[1]), flags)
			if err != nil {
				return nil, err
			}
			return strLit(re.ReplaceAllString(lexical(a[0]), lexical(a[2]))), nil
		},
		"ENCODE_FOR_URI": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			return strLit(url.QueryEscape(lexical(a[0]))), nil
		},

		// numeric family
		"ABS":   func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return num1(a, math.Abs) },
		"CEIL":  func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return num1(a, math.Ceil) },
		"FLOOR": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return num1(a, math.Floor) },
		"ROUND": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return num1(a, math.Round) },
		"RAND":  func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return numLit(rand.Float64()), nil },

		// datetime family
		"NOW": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			return quad.Literal{Value: time.Now().UTC().Format(time.RFC3339), Datatype: xsdIRI("dateTime")}, nil
		},
		"YEAR":     dateField(func(t time.Time) int64 { return int64(t.Year()) }),
		"MONTH":    dateField(func(t time.Time) int64 { return int64(t.Month()) }),
		"DAY":      dateField(func(t time.Time) int64 { return int64(t.Day()) }),
		"HOURS":    dateField(func(t time.Time) int64 { return int64(t.Hour()) }),
		"MINUTES":  dateField(func(t time.Time) int64 { return int64(t.Minute()) }),
		"SECONDS":  dateField(func(t time.Time) int64 { return int64(t.Second()) }),
		"TIMEZONE": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			t, err := parseDateTime(lexical(a[0]))
			if err != nil {
				return nil, err
			}
			_, offset := t.Zone()
			return quad.Literal{Value: fmt.Sprintf("PT%dH", offset/3600), Datatype: xsdIRI("dayTimeDuration")}, nil
		},
		"TZ": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			t, err := parseDateTime(lexical(a[0]))
			if err != nil {
				return nil, err
			}
			name, _ := t.Zone()
			return strLit(name), nil
		},

		// hash family
		"MD5":    hashFunc(func(s string) []byte { h := md5.Sum([]byte(s)); return h[:] }),
		"SHA1":   hashFunc(func(s string) []byte { h := sha1.Sum([]byte(s)); return h[:] }),
		"SHA256": hashFunc(func(s string) []byte { h := sha256.Sum256([]byte(s)); return h[:] }),
		"SHA512": hashFunc(func(s string) []byte { h := sha512.Sum512([]byte(s)); return h[:] }),

		// type tests
		"isIRI":     typeTest(func(v quad.Value) bool { _, ok := v.(quad.IRI); return ok }),
		"isLiteral": typeTest(func(v quad.Value) bool { _, ok := v.(quad.Literal); return ok }),
		"isBlank":   typeTest(func(v quad.Value) bool { _, ok := v.(quad.BNode); return ok }),
		"isNumeric": typeTest(func(v quad.Value) bool { _, err := numeric(v); return err == nil }),
		"BOUND": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			return boolValue(len(a) > 0 && a[0] != nil), nil
		},

		// constructors
		"IRI":     func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return quad.IRI(lexical(a[0])), nil },
		"BNODE":   func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return quad.BNode(uuid.NewString()), nil },
		"STRDT":   func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return quad.Literal{Value: lexical(a[0]), Datatype: quad.IRI(lexical(a[1]))}, nil },
		"STRLANG": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return quad.Literal{Value: lexical(a[0]), Lang: lexical(a[1])}, nil },
		"UUID":    func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return quad.IRI("urn:uuid:" + uuid.NewString()), nil },
		"STRUUID": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) { return strLit(uuid.NewString()), nil },
		"IF": func(e *Executor, b Binding, a []quad.Value) (quad.Value, error) {
			ok, err := ebv(a[0])
			if err != nil {
				return nil, err
			}
			if ok {
				return a[1], nil
			}
			return a[2], nil
		},
		"COALESCE": func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
			for _, v := range a {
				if v != nil {
					return v, nil
				}
			}
			return nil, errors.New("exec: COALESCE: all arguments unbound")
		},
	}
}

func langOf(v quad.Value) string {
	if lit, ok := v.(quad.Literal); ok {
		return lit.Lang
	}
	return ""
}

func concatAll(a []quad.Value) string {
	var sb strings.Builder
	for _, v := range a {
		sb.WriteString(lexical(v))
	}
	return sb.String()
}

func num1(a []quad.Value, f func(float64) float64) (quad.Value, error) {
	x, err := numeric(a[0])
	if err != nil {
		return nil, err
	}
	return numLit(f(x)), nil
}

func arith(f func(x, y float64) float64) builtinFunc {
	return func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
		x, err := numeric(a[0])
		if err != nil {
			return nil, err
		}
		y, err := numeric(a[1])
		if err != nil {
			return nil, err
		}
		return numLit(f(x, y)), nil
	}
}

func typeTest(f func(quad.Value) bool) builtinFunc {
	return func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
		return boolValue(f(a[0])), nil
	}
}

func hashFunc(f func(string) []byte) builtinFunc {
	return func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
		return strLit(hex.EncodeToString(f(lexical(a[0])))), nil
	}
}

func dateField(f func(time.Time) int64) builtinFunc {
	return func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
		t, err := parseDateTime(lexical(a[0]))
		if err != nil {
			return nil, err
		}
		return intLit(f(t)), nil
	}
}

func parseDateTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// compileSPARQLRegex compiles a SPARQL REGEX/REPLACE pattern with its
// optional flag string ("i" case-insensitive, "s" dot-matches-newline,
// "m" multiline, "x" extended) into a Go regexp — RE2 (regexp's engine)
// is a strict subset of the XPath regex dialect SPARQL specifies, which
// covers every construct these builtins need.
func compileSPARQLRegex(pattern, flags string) (*regexp.Regexp, error) {
	var inline string
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			inline += string(f)
		case 'x':
			// extended whitespace mode has no RE2 equivalent; ignored.
		}
	}
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}
	return regexp.Compile(pattern)
}

func cmpOp(ok func(int) bool) builtinFunc {
	return func(_ *Executor, _ Binding, a []quad.Value) (quad.Value, error) {
		c, err := compareTerms(a[0], a[1])
		if err != nil {
			return nil, err
		}
		return boolValue(ok(c)), nil
	}
}
