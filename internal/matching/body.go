package matching

import (
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/getmockd/mockapi/pkg/project"
)

// MatchBody checks a request body against a condition's expected body.
//
// Without a body matcher (hasExpected false) the request body must be empty.
// With one, the request body must be valid JSON and either equal to expected
// (strict) or carry every expected top-level field (subset).
func MatchBody(expected any, hasExpected bool, body string, strict bool) bool {
	if !hasExpected {
		return strings.TrimSpace(body) == ""
	}
	actual, err := oj.ParseString(body)
	if err != nil {
		return false
	}
	if strict {
		return jsonEqual(expected, actual)
	}
	return matchSubset(expected, actual)
}

func matchSubset(expected, actual any) bool {
	want, ok := expected.(map[string]any)
	if !ok {
		return false
	}
	got, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, v := range want {
		var (
			value any
			found bool
		)
		if strings.HasPrefix(k, "$") {
			value, found = evalPath(k, got)
		} else {
			value, found = got[k]
		}
		if !found || !jsonEqual(v, value) {
			return false
		}
	}
	return true
}

// jsonEqual compares two decoded JSON values by their canonical encoding, the
// same encoding the keyed lookup uses, so both tiers agree on equality.
func jsonEqual(a, b any) bool {
	return project.CanonicalJSON(a) == project.CanonicalJSON(b)
}
