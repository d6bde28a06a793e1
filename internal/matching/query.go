package matching

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/mockapi/pkg/project"
)

// ErrUnknownOperator is returned for a query matcher whose operator is not
// supported.
var ErrUnknownOperator = errors.New("unknown query operator")

// MatchQueryValue applies a single query matcher to the value the client sent.
func MatchQueryValue(m project.QueryMatcher, actual string) (bool, error) {
	switch m.Operator {
	case project.OpIs:
		return actual == m.Value, nil
	case project.OpIsNot:
		return actual != m.Value, nil
	case project.OpContains:
		return strings.Contains(actual, m.Value), nil
	case project.OpNotContains:
		return !strings.Contains(actual, m.Value), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, m.Operator)
	}
}

// MatchQueries checks the request queries against a condition's matchers.
//
// A nil expected map means the condition has no query matcher, and then the
// request must carry no queries at all. Otherwise every named query must be
// present and satisfy its operator; extra request queries are ignored.
func MatchQueries(expected map[string]project.QueryMatcher, actual map[string]string) (bool, error) {
	if expected == nil {
		return len(actual) == 0, nil
	}
	for name, m := range expected {
		value, ok := actual[name]
		if !ok {
			return false, nil
		}
		matched, err := MatchQueryValue(m, value)
		if err != nil {
			return false, fmt.Errorf("query %q: %w", name, err)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}
