package api

import (
	"strconv"

	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/getmockd/mockapi/pkg/router"
)

// MockPattern matches "/projects/<name>/<endpoint path>", capturing the
// project name and the endpoint path without the query string.
const MockPattern = `^/projects/([^/]+)/([^?]+)`

// Register installs the routes on r. Order matters: the literal project
// routes come before the mock pattern, which would otherwise never let them
// match.
func Register(r *router.Router, deps *Deps) {
	set := deps.Metrics

	r.Get("/", instrument("index", set, Index{}))
	if set != nil {
		r.Get("/metrics", instrument("metrics", set, &Metrics{Set: set}))
	}

	r.Get("/projects/:name", instrument("project", set, &GetProject{deps: deps}))
	r.Post("/projects/:name", instrument("project", set, &SaveProject{deps: deps, create: true}))
	r.Put("/projects/:name", instrument("project", set, &SaveProject{deps: deps}))

	mock := instrument("mock", set, &Mock{deps: deps})
	pattern := router.MustRegex(MockPattern)
	for _, m := range []httpwire.Method{httpwire.MethodGet, httpwire.MethodPost, httpwire.MethodPut} {
		r.Register(m, pattern, mock)
	}
}

// NotFound is the router fallback, counted under the "not_found" route.
func NotFound(deps *Deps) httpwire.Handler {
	return instrument("not_found", deps.Metrics, httpwire.HandlerFunc(router.NotFound))
}

func itoa(n int) string { return strconv.Itoa(n) }
