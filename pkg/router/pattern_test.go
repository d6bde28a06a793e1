package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchTarget(p Pattern, target string) (*Match, bool) {
	path, queries := SplitTarget(target)
	return p.match(target, path, queries)
}

func TestLiteralPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		template   string
		target     string
		wantMatch  bool
		wantParams map[string]string
	}{
		{
			name:       "binds multiple params",
			template:   "/users/:id/posts/:post_id",
			target:     "/users/123/posts/456",
			wantMatch:  true,
			wantParams: map[string]string{"id": "123", "post_id": "456"},
		},
		{
			name:      "segment count differs",
			template:  "/users/:id",
			target:    "/users/123/extra",
			wantMatch: false,
		},
		{
			name:       "project name",
			template:   "/projects/:name",
			target:     "/projects/my-project",
			wantMatch:  true,
			wantParams: map[string]string{"name": "my-project"},
		},
		{
			name:       "no params",
			template:   "/projects/",
			target:     "/projects/",
			wantMatch:  true,
			wantParams: map[string]string{},
		},
		{
			name:      "literal segment mismatch",
			template:  "/projects/:name",
			target:    "/files/",
			wantMatch: false,
		},
		{
			name:      "query string is rejected",
			template:  "/projects/:name",
			target:    "/projects/demo?x=1",
			wantMatch: false,
		},
		{
			name:       "empty query string is not a query",
			template:   "/projects/:name",
			target:     "/projects/demo?",
			wantMatch:  true,
			wantParams: map[string]string{"name": "demo"},
		},
		{
			name:       "root",
			template:   "/",
			target:     "/",
			wantMatch:  true,
			wantParams: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := matchTarget(Literal(tt.template), tt.target)
			require.Equal(t, tt.wantMatch, ok)
			if !tt.wantMatch {
				assert.Nil(t, m)
				return
			}
			assert.Equal(t, tt.wantParams, m.Params)
			assert.Empty(t, m.Captures)
		})
	}
}

func TestRegexPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		expr         string
		target       string
		wantMatch    bool
		wantCaptures []string
		wantQueries  map[string]string
	}{
		{
			name:         "single capture",
			expr:         `^/users/(\d+)$`,
			target:       "/users/123",
			wantMatch:    true,
			wantCaptures: []string{"123"},
			wantQueries:  map[string]string{},
		},
		{
			name:         "multiple captures",
			expr:         `^/users/(\d+)/posts/(\w+)$`,
			target:       "/users/123/posts/abc",
			wantMatch:    true,
			wantCaptures: []string{"123", "abc"},
			wantQueries:  map[string]string{},
		},
		{
			name:      "no match",
			expr:      `^/users/(\d+)$`,
			target:    "/posts/123",
			wantMatch: false,
		},
		{
			name:         "non-participating group skipped",
			expr:         `^/api/v(\d+)/users(?:/(\d+))?$`,
			target:       "/api/v2/users",
			wantMatch:    true,
			wantCaptures: []string{"2"},
			wantQueries:  map[string]string{},
		},
		{
			name:         "mock route with query",
			expr:         `^/projects/([^/]+)/([^?]+)`,
			target:       "/projects/test-mock/api/test?filter=active&page=2",
			wantMatch:    true,
			wantCaptures: []string{"test-mock", "api/test"},
			wantQueries:  map[string]string{"filter": "active", "page": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Regex(tt.expr)
			require.NoError(t, err)

			m, ok := matchTarget(p, tt.target)
			require.Equal(t, tt.wantMatch, ok)
			if !tt.wantMatch {
				return
			}
			assert.Equal(t, tt.wantCaptures, m.Captures)
			assert.Equal(t, tt.wantQueries, m.Queries)
			assert.Empty(t, m.Params)
		})
	}
}

func TestRegexInvalid(t *testing.T) {
	t.Parallel()

	_, err := Regex(`[invalid`)
	require.Error(t, err)
	assert.Panics(t, func() { MustRegex(`(`) })
}

func TestSplitTarget(t *testing.T) {
	t.Parallel()

	path, queries := SplitTarget("/api/users?id=123&name=john")
	assert.Equal(t, "/api/users", path)
	assert.Equal(t, map[string]string{"id": "123", "name": "john"}, queries)

	path, queries = SplitTarget("/api/users")
	assert.Equal(t, "/api/users", path)
	assert.Empty(t, queries)
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"a=1", map[string]string{"a": "1"}},
		{"a=1&a=2", map[string]string{"a": "2"}},
		{"flag&a=1", map[string]string{"a": "1"}},
		{"a=b=c", map[string]string{"a": "b"}},
		{"a=", map[string]string{"a": ""}},
		{"q=hello%20world", map[string]string{"q": "hello%20world"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuery(tt.raw))
		})
	}
}
