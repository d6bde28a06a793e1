package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/getmockd/mockapi/pkg/project"
)

// Documents mirroring the project file format. Queries has no
// omitempty: nil encodes as null (no query string allowed) while an empty map
// accepts any query string.
type projectDoc struct {
	Description string                  `json:"description"`
	Endpoints   map[string]*endpointDoc `json:"endpoints"`
}

type endpointDoc struct {
	When []*conditionDoc `json:"when"`
}

type conditionDoc struct {
	Method   string      `json:"method"`
	Request  *requestDoc `json:"request,omitempty"`
	Response responseDoc `json:"response"`
	Delay    int64       `json:"delay,omitempty"`
}

type requestDoc struct {
	Queries map[string]project.QueryMatcher `json:"queries"`
	Headers map[string]string               `json:"headers,omitempty"`
	Body    json.RawMessage                 `json:"body,omitempty"`
}

type responseDoc struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// ProjectBuilder collects the endpoints of one project.
type ProjectBuilder struct {
	server *MockServer
	name   string
	doc    projectDoc
	err    error // First error encountered during building
}

func newProjectBuilder(m *MockServer, name string) *ProjectBuilder {
	return &ProjectBuilder{
		server: m,
		name:   name,
		doc: projectDoc{
			Description: name,
			Endpoints:   make(map[string]*endpointDoc),
		},
	}
}

// setError records the first error encountered during building.
func (p *ProjectBuilder) setError(err error) {
	if p.err == nil {
		p.err = err
	}
}

// Err returns any error encountered during building.
func (p *ProjectBuilder) Err() error {
	return p.err
}

// Name returns the project name.
func (p *ProjectBuilder) Name() string {
	return p.name
}

// Describe sets the project description.
func (p *ProjectBuilder) Describe(description string) *ProjectBuilder {
	p.doc.Description = description
	return p
}

// Mock starts a condition for method on the endpoint path. The condition is
// added to the project by Reply.
func (p *ProjectBuilder) Mock(method, path string) *MockBuilder {
	return &MockBuilder{
		project: p,
		path:    path,
		cond: &conditionDoc{
			Method: strings.ToUpper(method),
			Response: responseDoc{
				Status:  http.StatusOK,
				Headers: make(map[string]string),
			},
		},
	}
}

// Endpoints returns the configured endpoint paths in sorted order.
func (p *ProjectBuilder) Endpoints() []string {
	paths := make([]string, 0, len(p.doc.Endpoints))
	for path := range p.doc.Endpoints {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// JSON encodes the project and checks it with the server's parser.
func (p *ProjectBuilder) JSON() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	data, err := json.MarshalIndent(p.doc, "", "  ")
	if err != nil {
		return nil, err
	}
	if _, err := project.Parse(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Save uploads the project, creating or replacing it. The server drops its
// cached copy, so later requests see the new conditions.
func (p *ProjectBuilder) Save() error {
	data, err := p.JSON()
	if err != nil {
		return fmt.Errorf("project %s: %w", p.name, err)
	}
	return p.server.Upload(p.name, string(data))
}

// MustSave is Save that fails the test on error.
func (p *ProjectBuilder) MustSave() *ProjectBuilder {
	p.server.t.Helper()
	if err := p.Save(); err != nil {
		p.server.t.Fatalf("save project: %v", err)
	}
	return p
}

// URL returns the absolute URL of an endpoint path of this project.
func (p *ProjectBuilder) URL(path string) string {
	return p.server.baseURL + "/projects/" + p.name + "/" + strings.TrimPrefix(path, "/")
}

// MockBuilder builds one condition using a fluent API.
type MockBuilder struct {
	project *ProjectBuilder
	path    string
	cond    *conditionDoc
	err     error
}

func (b *MockBuilder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns any error encountered during building.
func (b *MockBuilder) Err() error {
	return b.err
}

func (b *MockBuilder) request() *requestDoc {
	if b.cond.Request == nil {
		b.cond.Request = &requestDoc{}
	}
	return b.cond.Request
}

// WithQueryParam requires query name to equal value.
func (b *MockBuilder) WithQueryParam(name, value string) *MockBuilder {
	return b.WithQueryParamOp(name, project.OpIs, value)
}

// WithQueryParamOp requires query name to satisfy op ("is", "is!",
// "contains" or "contains!") against value.
func (b *MockBuilder) WithQueryParamOp(name, op, value string) *MockBuilder {
	r := b.request()
	if r.Queries == nil {
		r.Queries = make(map[string]project.QueryMatcher)
	}
	r.Queries[name] = project.QueryMatcher{Operator: op, Value: value}
	return b
}

// WithAnyQuery accepts requests with any query string. Without it, a
// condition lacking query params only matches requests without one.
func (b *MockBuilder) WithAnyQuery() *MockBuilder {
	r := b.request()
	if r.Queries == nil {
		r.Queries = make(map[string]project.QueryMatcher)
	}
	return b
}

// WithRequestHeader requires a request header with exactly this value.
func (b *MockBuilder) WithRequestHeader(key, value string) *MockBuilder {
	r := b.request()
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return b
}

// WithRequestHeaders requires several request headers.
func (b *MockBuilder) WithRequestHeaders(headers map[string]string) *MockBuilder {
	for k, v := range headers {
		b.WithRequestHeader(k, v)
	}
	return b
}

// WithRequestBody requires the request body to be this JSON value. Strings
// are taken as JSON text.
func (b *MockBuilder) WithRequestBody(body any) *MockBuilder {
	raw, err := jsonText(body)
	if err != nil {
		b.setError(fmt.Errorf("WithRequestBody: %w", err))
		return b
	}
	b.request().Body = raw
	return b
}

// WithStatus sets the HTTP response status code.
// Default is 200 (OK).
func (b *MockBuilder) WithStatus(status int) *MockBuilder {
	b.cond.Response.Status = status
	return b
}

// WithBody sets the response body. A string is sent as-is; anything else is
// sent as its JSON encoding.
func (b *MockBuilder) WithBody(body any) *MockBuilder {
	if v, ok := body.([]byte); ok {
		body = string(v)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		b.setError(fmt.Errorf("WithBody: failed to marshal body: %w", err))
		return b
	}
	b.cond.Response.Body = raw
	return b
}

// WithJSON sets the response body from JSON and the Content-Type header.
func (b *MockBuilder) WithJSON(body any) *MockBuilder {
	raw, err := jsonText(body)
	if err != nil {
		b.setError(fmt.Errorf("WithJSON: %w", err))
		return b
	}
	b.cond.Response.Body = raw
	b.cond.Response.Headers["Content-Type"] = "application/json"
	return b
}

// WithHeader adds a response header.
func (b *MockBuilder) WithHeader(key, value string) *MockBuilder {
	b.cond.Response.Headers[key] = value
	return b
}

// WithHeaders sets multiple response headers at once.
func (b *MockBuilder) WithHeaders(headers map[string]string) *MockBuilder {
	for k, v := range headers {
		b.cond.Response.Headers[k] = v
	}
	return b
}

// WithDelay adds a response delay.
// Accepts duration strings like "100ms", "1s", "500ms".
func (b *MockBuilder) WithDelay(delay string) *MockBuilder {
	d, err := time.ParseDuration(delay)
	if err != nil {
		b.setError(fmt.Errorf("WithDelay: invalid duration %q: %w", delay, err))
		return b
	}
	if d < 0 {
		b.setError(fmt.Errorf("WithDelay: negative duration %q", delay))
		return b
	}
	b.cond.Delay = d.Milliseconds()
	return b
}

// WithDelayMs adds a response delay in milliseconds.
func (b *MockBuilder) WithDelayMs(delayMs int) *MockBuilder {
	b.cond.Delay = int64(delayMs)
	return b
}

// RespondWith is a shorthand for setting status and body together.
func (b *MockBuilder) RespondWith(status int, body any) *MockBuilder {
	return b.WithStatus(status).WithBody(body)
}

// RespondJSON is a shorthand for JSON response with status 200.
func (b *MockBuilder) RespondJSON(body any) *MockBuilder {
	return b.WithStatus(http.StatusOK).WithJSON(body)
}

// RespondCreated configures a 201 Created response.
func (b *MockBuilder) RespondCreated(body any) *MockBuilder {
	return b.WithStatus(http.StatusCreated).WithJSON(body)
}

// RespondNoContent configures a 204 No Content response.
func (b *MockBuilder) RespondNoContent() *MockBuilder {
	return b.WithStatus(http.StatusNoContent)
}

// RespondNotFound configures a 404 Not Found response.
func (b *MockBuilder) RespondNotFound() *MockBuilder {
	return b.WithStatus(http.StatusNotFound).WithJSON(map[string]string{
		"error": "not_found",
	})
}

// RespondServerError configures a 500 Internal Server Error response.
func (b *MockBuilder) RespondServerError(message string) *MockBuilder {
	return b.WithStatus(http.StatusInternalServerError).WithJSON(map[string]string{
		"error": message,
	})
}

// Reply appends the condition to its endpoint, after any added before, and
// returns the project for chaining.
func (b *MockBuilder) Reply() *ProjectBuilder {
	p := b.project
	if b.err != nil {
		p.setError(b.err)
		return p
	}
	ep, ok := p.doc.Endpoints[b.path]
	if !ok {
		ep = &endpointDoc{}
		p.doc.Endpoints[b.path] = ep
	}
	ep.When = append(ep.When, b.cond)
	return p
}

// jsonText returns v as JSON text. Strings and byte slices must already be
// JSON; other values are marshalled.
func jsonText(v any) (json.RawMessage, error) {
	var data []byte
	switch x := v.(type) {
	case string:
		data = []byte(x)
	case []byte:
		data = x
	default:
		var err error
		if data, err = json.Marshal(x); err != nil {
			return nil, err
		}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON: %q", data)
	}
	return json.RawMessage(data), nil
}
