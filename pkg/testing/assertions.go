package testing

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"testing"
)

// Response is a response received from the mock server.
type Response struct {
	// Status is the HTTP status code.
	Status int
	// Headers are the response headers.
	Headers http.Header
	// Body is the full response body.
	Body string
}

// AssertStatus asserts the status code.
func (r *Response) AssertStatus(t testing.TB, expected int) {
	t.Helper()
	if r.Status != expected {
		t.Errorf("status does not match\nexpected: %d\nactual: %d\nbody: %s", expected, r.Status, r.Body)
	}
}

// AssertBody asserts that the body exactly matches the expected string.
func (r *Response) AssertBody(t testing.TB, expected string) {
	t.Helper()
	if r.Body != expected {
		t.Errorf("body does not match\nexpected: %q\nactual: %q", expected, r.Body)
	}
}

// AssertBodyContains asserts that the body contains substr.
func (r *Response) AssertBodyContains(t testing.TB, substr string) {
	t.Helper()
	if !strings.Contains(r.Body, substr) {
		t.Errorf("body does not contain %q\nbody: %s", substr, r.Body)
	}
}

// AssertHeader asserts that header key has the expected value. Header names
// are case-insensitive.
func (r *Response) AssertHeader(t testing.TB, key, expected string) {
	t.Helper()
	values, ok := r.Headers[http.CanonicalHeaderKey(key)]
	if !ok || len(values) == 0 {
		t.Errorf("header %q not present", key)
		return
	}
	if values[0] != expected {
		t.Errorf("header %q does not match\nexpected: %q\nactual: %q", key, expected, values[0])
	}
}

// AssertJSONBody asserts that the body matches the expected JSON.
// The expected value can be a string, []byte, or any struct/map that will be JSON encoded.
func (r *Response) AssertJSONBody(t testing.TB, expected any) {
	t.Helper()

	var expectedJSON any
	var actualJSON any

	switch v := expected.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	case []byte:
		if err := json.Unmarshal(v, &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	default:
		// Marshal and unmarshal to normalize
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("failed to marshal expected value: %v", err)
			return
		}
		if err := json.Unmarshal(data, &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	}

	if err := json.Unmarshal([]byte(r.Body), &actualJSON); err != nil {
		t.Errorf("body is not valid JSON: %v\nbody: %s", err, r.Body)
		return
	}

	if !reflect.DeepEqual(actualJSON, expectedJSON) {
		expectedBytes, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualBytes, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("body does not match expected JSON\nexpected:\n%s\nactual:\n%s",
			string(expectedBytes), string(actualBytes))
	}
}

// AssertNotImplemented asserts the response sent when no condition matched.
func (r *Response) AssertNotImplemented(t testing.TB) {
	t.Helper()
	if r.Status != http.StatusNotAcceptable || r.Body != "Not implemented." {
		t.Errorf("expected 406 \"Not implemented.\", got %d %q", r.Status, r.Body)
	}
}
