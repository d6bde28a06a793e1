package project

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBodyText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"absent", ``, "null"},
		{"null", `null`, "null"},
		{"string unwrapped", `"mocked response"`, "mocked response"},
		{"string with escapes", `"line\n\"quoted\""`, "line\n\"quoted\""},
		{"object compacted in author order", `{ "b": 1,  "a": [true, null] }`, `{"b":1,"a":[true,null]}`},
		{"number", `42`, "42"},
		{"bool", `false`, "false"},
		{"array", `[1, "two"]`, `[1,"two"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResponseTemplate{Body: json.RawMessage(tt.raw)}
			assert.Equal(t, tt.want, r.BodyText())
		})
	}
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()

	cfg, err := ParseString(sampleConfig)
	require.NoError(t, err)

	_, ok := cfg.Endpoint("api/test")
	assert.True(t, ok)

	ep, ok := cfg.Endpoint("slash/path")
	require.True(t, ok, "leading slash fallback")
	assert.Equal(t, "slash", ep.Conditions()[0].BodyText())

	_, ok = cfg.Endpoint("missing")
	assert.False(t, ok)
}

func TestEndpointLookupTable(t *testing.T) {
	t.Parallel()

	cfg, err := ParseString(sampleConfig)
	require.NoError(t, err)
	cfg.Prepare()

	ep, ok := cfg.Endpoint("api/test")
	require.True(t, ok)
	conds := ep.Conditions()

	// Header-constrained and "contains" conditions are scan-only; the two
	// unconstrained GETs share a key and the first one wins.
	assert.Equal(t, 3, ep.tableSize())

	_, keyed := conds[0].Key()
	assert.False(t, keyed, "header constraint")
	_, keyed = conds[3].Key()
	assert.False(t, keyed, "contains operator")

	got, ok := ep.Lookup(RequestKey("GET", map[string]string{"sort": "asc", "page": "1"}, ""))
	require.True(t, ok)
	assert.Same(t, conds[1], got)
	assert.Equal(t, 25*time.Millisecond, got.DelayDuration())
	assert.Equal(t, `{"items":[1,2],"page":1}`, got.BodyText())

	got, ok = ep.Lookup(RequestKey("POST", nil, `{"age":36,"name":"ada"}`))
	require.True(t, ok)
	assert.Same(t, conds[2], got)

	got, ok = ep.Lookup(RequestKey("GET", nil, ""))
	require.True(t, ok)
	assert.Same(t, conds[4], got)
	assert.Equal(t, 204, got.Response.Status)

	_, ok = ep.Lookup(RequestKey("GET", map[string]string{"filter": "active"}, ""))
	assert.False(t, ok)
}

func TestEndpointConcurrentPrepare(t *testing.T) {
	t.Parallel()

	cfg, err := ParseString(sampleConfig)
	require.NoError(t, err)
	ep, _ := cfg.Endpoint("api/test")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ep.Lookup(RequestKey("GET", nil, ""))
			_ = ep.Conditions()
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, ep.tableSize())
}

func TestConditionAccessorsWithoutRequest(t *testing.T) {
	t.Parallel()

	c := &Condition{Method: "get", Response: ResponseTemplate{Status: 200}}
	assert.Nil(t, c.Queries())
	assert.Nil(t, c.Headers())
	_, has := c.ExpectedBody()
	assert.False(t, has)

	k, keyed := c.Key()
	assert.True(t, keyed)
	assert.Equal(t, "GET", k.Method)
	assert.Equal(t, "null", c.BodyText())
}

func TestRequestMatcherEmptyQueriesAreNotAbsent(t *testing.T) {
	t.Parallel()

	var c Condition
	require.NoError(t, json.Unmarshal([]byte(`{"method":"GET","request":{"queries":{}},"response":{"status":200,"headers":{}}}`), &c))
	assert.NotNil(t, c.Queries())
	assert.Empty(t, c.Queries())

	var d Condition
	require.NoError(t, json.Unmarshal([]byte(`{"method":"GET","request":{},"response":{"status":200,"headers":{}}}`), &d))
	assert.Nil(t, d.Queries())
}
