package monitor

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// MatchBody reports whether actual satisfies the expected body. When both
// sides are valid JSON the expected document must be a structural subset
// of the actual one; otherwise expected must appear verbatim in actual.
func MatchBody(expected, actual string) bool {
	want, okWant := decodeJSON(expected)
	got, okGot := decodeJSON(actual)
	if okWant && okGot {
		return JSONContains(got, want)
	}
	return strings.Contains(actual, expected)
}

// JSONContains reports whether want is contained in got. Objects match when
// every key of want is present in got with a contained value; arrays are
// compared element-wise by index; scalars must be equal.
func JSONContains(got, want any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, present := g[k]
			if !present || !JSONContains(gv, wv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) < len(w) {
			return false
		}
		for i := range w {
			if !JSONContains(g[i], w[i]) {
				return false
			}
		}
		return true
	case json.Number:
		g, ok := got.(json.Number)
		if !ok {
			return false
		}
		if g == w {
			return true
		}
		gf, errG := g.Float64()
		wf, errW := w.Float64()
		return errG == nil && errW == nil && gf == wf
	default:
		return got == want
	}
}

func decodeJSON(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// reject trailing data such as `{"a":1} junk`
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}
