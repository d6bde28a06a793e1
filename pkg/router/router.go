// Package router resolves an inbound request to a handler using an ordered
// table of (method, pattern, handler) routes.
package router

import (
	"context"
	"log/slog"

	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/getmockd/mockapi/pkg/logging"
)

type route struct {
	method  httpwire.Method
	pattern Pattern
	handler httpwire.Handler
}

// Route describes a registered route.
type Route struct {
	Method  httpwire.Method
	Pattern string
}

// Router dispatches requests to the first registered route whose pattern and
// method both match. Routes must all be registered before the router serves
// traffic; after that the table is read-only and needs no locking.
type Router struct {
	routes   []route
	notFound httpwire.Handler
	log      *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}

// WithNotFound replaces the handler used when no route matches.
func WithNotFound(h httpwire.Handler) Option {
	return func(r *Router) {
		if h != nil {
			r.notFound = h
		}
	}
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{
		notFound: httpwire.HandlerFunc(NotFound),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NotFound answers a request no route matched with a generic 404.
func NotFound(context.Context, *httpwire.Request) *httpwire.Response {
	return httpwire.Error(404, "Not Found")
}

// Register appends a route. Earlier registrations take precedence.
func (r *Router) Register(method httpwire.Method, pattern Pattern, h httpwire.Handler) {
	r.routes = append(r.routes, route{method: method, pattern: pattern, handler: h})
}

// Get registers a literal GET route.
func (r *Router) Get(template string, h httpwire.Handler) {
	r.Register(httpwire.MethodGet, Literal(template), h)
}

// Post registers a literal POST route.
func (r *Router) Post(template string, h httpwire.Handler) {
	r.Register(httpwire.MethodPost, Literal(template), h)
}

// Put registers a literal PUT route.
func (r *Router) Put(template string, h httpwire.Handler) {
	r.Register(httpwire.MethodPut, Literal(template), h)
}

// Routes lists the route table in precedence order.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	for i, rt := range r.routes {
		out[i] = Route{Method: rt.method, Pattern: rt.pattern.String()}
	}
	return out
}

// Lookup finds the first route matching method and target.
func (r *Router) Lookup(method httpwire.Method, target string) (httpwire.Handler, *Match, bool) {
	path, queries := SplitTarget(target)
	for _, rt := range r.routes {
		m, ok := rt.pattern.match(target, path, queries)
		if !ok || rt.method != method {
			continue
		}
		return rt.handler, m, true
	}
	return nil, nil, false
}

// Handle dispatches req. On a match the request is enriched with the query
// map, path parameters and regex captures before the route's handler runs;
// otherwise the not-found handler answers.
func (r *Router) Handle(ctx context.Context, req *httpwire.Request) *httpwire.Response {
	h, m, ok := r.Lookup(req.Method, req.Path)
	if !ok {
		r.log.Debug("no route", "method", req.Method, "path", req.Path)
		return r.notFound.Handle(ctx, req)
	}
	req.Queries = m.Queries
	req.Params = m.Params
	req.Matches = m.Captures
	return h.Handle(ctx, req)
}
