package matching

import (
	"sync"

	"github.com/ohler55/ojg/jp"
)

var pathCache sync.Map // string -> jp.Expr

func compilePath(path string) (jp.Expr, error) {
	if x, ok := pathCache.Load(path); ok {
		return x.(jp.Expr), nil
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, err
	}
	pathCache.Store(path, x)
	return x, nil
}

// evalPath returns the first value path selects in doc. An expression that
// does not parse selects nothing.
func evalPath(path string, doc any) (any, bool) {
	x, err := compilePath(path)
	if err != nil {
		return nil, false
	}
	results := x.Get(doc)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}
