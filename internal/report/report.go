// Package report reduces an operation's outcome to a verdict and emits the
// one feedback report an invocation produces.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Verdicts other than a propagated exception text.
const (
	Success = "SUCCESS"
	Fail    = "FAIL"
	Unknown = "UNKNOWN"
)

// Tokens the evaluator recognises in result values.
const (
	tokenTrue    = "true"
	tokenFalse   = "false"
	tokenNull    = "null"
	tokenSuccess = "success"
)

var faultMarkers = []string{"exception", "error"}

// HasFault reports whether s carries an exception or error marker.
func HasFault(s string) bool {
	s = strings.ToLower(s)
	for _, m := range faultMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ResultSet is an insertion-ordered set of result fields. Values are
// strings, booleans, integers or nil.
type ResultSet struct {
	keys   []string
	values map[string]any
}

func NewResultSet() *ResultSet {
	return &ResultSet{values: make(map[string]any)}
}

// Set stores v under key. Setting an existing key keeps its position.
func (r *ResultSet) Set(key string, v any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

func (r *ResultSet) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r *ResultSet) Len() int {
	return len(r.keys)
}

func (r *ResultSet) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Values returns the raw values in insertion order.
func (r *ResultSet) Values() []any {
	out := make([]any, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// MarshalJSON writes the normalized fields in insertion order.
func (r *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := marshal(Normalize(r.values[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Normalize maps booleans and nil onto their string tokens. Other values
// pass through.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return tokenNull
	case bool:
		if x {
			return tokenTrue
		}
		return tokenFalse
	case *string:
		if x == nil {
			return tokenNull
		}
		return *x
	}
	return v
}

// text is the string form the evaluator compares.
func text(v any) string {
	switch x := Normalize(v).(type) {
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Evaluate reduces an outcome to a verdict. v is a collection of values
// (a *ResultSet or a slice), a single string or a single boolean.
//
// A collection carrying faults yields the faulting values joined by
// newlines; one whose values are all "false" fails; anything else
// succeeds. A string carrying a fault is its own verdict; "success" and
// "true" succeed and everything else fails.
func Evaluate(v any) string {
	switch x := v.(type) {
	case *ResultSet:
		if x != nil && x.Len() > 0 {
			return evaluateAll(x.Values())
		}
	case []any:
		if len(x) > 0 {
			return evaluateAll(x)
		}
	case []string:
		if len(x) > 0 {
			all := make([]any, len(x))
			for i, s := range x {
				all[i] = s
			}
			return evaluateAll(all)
		}
	case string:
		switch {
		case HasFault(x):
			return x
		case x == tokenSuccess || x == tokenTrue:
			return Success
		}
		return Fail
	case bool:
		if x {
			return Success
		}
		return Fail
	}
	return Unknown
}

func evaluateAll(values []any) string {
	var faults []string
	allFalse := true
	for _, v := range values {
		s := text(v)
		if HasFault(s) {
			faults = append(faults, s)
		}
		if s != tokenFalse {
			allFalse = false
		}
	}
	switch {
	case len(faults) > 0:
		return strings.Join(faults, "\n")
	case allFalse:
		return Fail
	}
	return Success
}
