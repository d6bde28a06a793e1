package matching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockapi/pkg/project"
)

func TestMatchQueryValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op     string
		value  string
		actual string
		want   bool
	}{
		{project.OpIs, "active", "active", true},
		{project.OpIs, "active", "inactive", false},
		{project.OpIsNot, "active", "inactive", true},
		{project.OpIsNot, "active", "active", false},
		{project.OpContains, "act", "inactive", true},
		{project.OpContains, "xyz", "inactive", false},
		{project.OpNotContains, "act", "inactive", false},
		{project.OpNotContains, "xyz", "inactive", true},
		{project.OpContains, "", "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.op+"/"+tt.value+"/"+tt.actual, func(t *testing.T) {
			got, err := MatchQueryValue(project.QueryMatcher{Operator: tt.op, Value: tt.value}, tt.actual)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchQueryValueUnknownOperator(t *testing.T) {
	t.Parallel()

	ok, err := MatchQueryValue(project.QueryMatcher{Operator: "IS", Value: "x"}, "x")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrUnknownOperator))
}

func TestMatchQueries(t *testing.T) {
	t.Parallel()

	is := func(v string) project.QueryMatcher { return project.QueryMatcher{Operator: project.OpIs, Value: v} }

	tests := []struct {
		name     string
		expected map[string]project.QueryMatcher
		actual   map[string]string
		want     bool
	}{
		{"absent matcher, no queries", nil, nil, true},
		{"absent matcher, empty queries", nil, map[string]string{}, true},
		{"absent matcher rejects queries", nil, map[string]string{"a": "1"}, false},
		{"empty matcher accepts queries", map[string]project.QueryMatcher{}, map[string]string{"a": "1"}, true},
		{"all present", map[string]project.QueryMatcher{"a": is("1"), "b": is("2")}, map[string]string{"a": "1", "b": "2"}, true},
		{"extra request query ignored", map[string]project.QueryMatcher{"a": is("1")}, map[string]string{"a": "1", "z": "9"}, true},
		{"missing query", map[string]project.QueryMatcher{"a": is("1"), "b": is("2")}, map[string]string{"a": "1"}, false},
		{"wrong value", map[string]project.QueryMatcher{"a": is("1")}, map[string]string{"a": "2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchQueries(tt.expected, tt.actual)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := MatchQueries(map[string]project.QueryMatcher{"a": {Operator: "like", Value: "1"}}, map[string]string{"a": "1"})
	assert.ErrorIs(t, err, ErrUnknownOperator)
	assert.Contains(t, err.Error(), `query "a"`)
}
