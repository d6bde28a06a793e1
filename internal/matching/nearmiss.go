package matching

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/getmockd/mockapi/pkg/project"
)

// FieldResult describes whether one part of a condition held for a request.
type FieldResult struct {
	Field    string `json:"field"`
	Matched  bool   `json:"matched"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
}

// NearMiss is the field-by-field evaluation of a condition whose method
// matched but which rejected the request.
type NearMiss struct {
	Index   int           `json:"index"`
	Method  string        `json:"method"`
	Matched int           `json:"matched"`
	Fields  []FieldResult `json:"fields"`
	Reason  string        `json:"reason"`
}

// Breakdown evaluates every field of c against req without short-circuiting.
func Breakdown(c *project.Condition, req *httpwire.Request, strict bool) *NearMiss {
	nm := &NearMiss{Method: c.Method}

	queriesOK, err := MatchQueries(c.Queries(), req.Queries)
	qf := FieldResult{Field: "queries", Matched: queriesOK, Actual: req.Queries}
	if q := c.Queries(); q != nil {
		qf.Expected = q
	}
	if err != nil {
		qf.Expected = err.Error()
	}
	nm.add(qf)

	headers := make(map[string]string, len(c.Headers()))
	for name := range c.Headers() {
		if v, ok := req.Header(name); ok {
			headers[name] = v
		}
	}
	nm.add(FieldResult{
		Field:    "headers",
		Matched:  MatchHeaders(c.Headers(), req.Header),
		Expected: c.Headers(),
		Actual:   headers,
	})

	body, has := c.ExpectedBody()
	bf := FieldResult{Field: "body", Matched: MatchBody(body, has, req.Body, strict), Actual: req.Body}
	if has {
		bf.Expected = project.CanonicalJSON(body)
	}
	nm.add(bf)

	var failed []string
	for _, f := range nm.Fields {
		if !f.Matched {
			failed = append(failed, f.Field)
		}
	}
	if len(failed) > 0 {
		nm.Reason = fmt.Sprintf("%s did not match", strings.Join(failed, ", "))
	}
	return nm
}

func (nm *NearMiss) add(f FieldResult) {
	nm.Fields = append(nm.Fields, f)
	if f.Matched {
		nm.Matched++
	}
}

// NearMisses returns up to limit conditions of ep with the request's method,
// best first. Conditions matching more fields rank higher; ties keep
// declaration order. A limit of zero or less returns all of them.
func NearMisses(ep *project.Endpoint, req *httpwire.Request, strict bool, limit int) []NearMiss {
	var out []NearMiss
	for i, c := range ep.Conditions() {
		if c == nil || !strings.EqualFold(c.Method, string(req.Method)) {
			continue
		}
		nm := Breakdown(c, req, strict)
		nm.Index = i
		out = append(out, *nm)
	}
	slices.SortStableFunc(out, func(a, b NearMiss) int {
		return cmp.Compare(b.Matched, a.Matched)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
