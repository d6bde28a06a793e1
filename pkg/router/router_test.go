package router

import (
	"context"
	"testing"

	"github.com/getmockd/mockapi/pkg/httpwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) httpwire.Handler {
	return httpwire.HandlerFunc(func(context.Context, *httpwire.Request) *httpwire.Response {
		return httpwire.Text(200, name)
	})
}

func TestRouterPrecedence(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/projects/:name", named("get-project"))
	r.Post("/projects/:name", named("create-project"))
	r.Register(httpwire.MethodGet, MustRegex(`^/projects/([^/]+)/([^?]+)`), named("mock"))
	r.Register(httpwire.MethodGet, MustRegex(`^/`), named("catch-all"))

	tests := []struct {
		method httpwire.Method
		target string
		want   string
	}{
		{httpwire.MethodGet, "/projects/demo", "get-project"},
		{httpwire.MethodPost, "/projects/demo", "create-project"},
		{httpwire.MethodGet, "/projects/demo/api/x", "mock"},
		{httpwire.MethodGet, "/projects/demo?x=1", "catch-all"},
		{httpwire.MethodGet, "/anything", "catch-all"},
	}
	for _, tt := range tests {
		t.Run(string(tt.method)+" "+tt.target, func(t *testing.T) {
			resp := r.Handle(context.Background(), &httpwire.Request{Method: tt.method, Path: tt.target})
			assert.Equal(t, tt.want, resp.Body)
		})
	}
}

func TestRouterMethodMismatchFallsThrough(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/projects/:name", named("get"))
	r.Put("/projects/:name", named("put"))

	resp := r.Handle(context.Background(), &httpwire.Request{Method: httpwire.MethodPut, Path: "/projects/a"})
	assert.Equal(t, "put", resp.Body)

	resp = r.Handle(context.Background(), &httpwire.Request{Method: httpwire.MethodPost, Path: "/projects/a"})
	assert.Equal(t, 404, resp.Status)
	assert.JSONEq(t, `{"error":"Not Found"}`, resp.Body)
}

func TestRouterEnrichesRequest(t *testing.T) {
	t.Parallel()

	var seen *httpwire.Request
	capture := httpwire.HandlerFunc(func(_ context.Context, req *httpwire.Request) *httpwire.Response {
		seen = req
		return httpwire.Text(200, "")
	})

	r := New()
	r.Get("/projects/:name", capture)
	r.Register(httpwire.MethodGet, MustRegex(`^/projects/([^/]+)/([^?]+)`), capture)

	r.Handle(context.Background(), &httpwire.Request{Method: httpwire.MethodGet, Path: "/projects/demo"})
	require.NotNil(t, seen)
	assert.Equal(t, map[string]string{"name": "demo"}, seen.Params)
	assert.Empty(t, seen.Matches)

	r.Handle(context.Background(), &httpwire.Request{Method: httpwire.MethodGet, Path: "/projects/demo/api/test?filter=active"})
	assert.Equal(t, []string{"demo", "api/test"}, seen.Matches)
	assert.Equal(t, map[string]string{"filter": "active"}, seen.Queries)
}

func TestRouterCustomNotFound(t *testing.T) {
	t.Parallel()

	r := New(WithNotFound(named("nope")))
	resp := r.Handle(context.Background(), &httpwire.Request{Method: httpwire.MethodGet, Path: "/"})
	assert.Equal(t, "nope", resp.Body)

	_, _, ok := r.Lookup(httpwire.MethodGet, "/")
	assert.False(t, ok)
}

func TestRouterRoutes(t *testing.T) {
	t.Parallel()

	r := New()
	r.Get("/", named("root"))
	r.Register(httpwire.MethodPost, MustRegex(`^/x$`), named("x"))

	assert.Equal(t, []Route{
		{Method: httpwire.MethodGet, Pattern: "/"},
		{Method: httpwire.MethodPost, Pattern: `^/x$`},
	}, r.Routes())
}
