package testing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getmockd/mockapi/pkg/api"
	"github.com/getmockd/mockapi/pkg/config"
	"github.com/getmockd/mockapi/pkg/engine"
)

// MockServer is a test helper running a mockapi server for one test.
type MockServer struct {
	t       testing.TB
	server  *engine.Server
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	projects map[string]*ProjectBuilder
}

// Option adjusts the server settings used by New.
type Option func(*config.Config)

// WithStrictBody selects deep-equality (true, the default) or subset body
// matching.
func WithStrictBody(strict bool) Option {
	return func(c *config.Config) { c.StrictBody = strict }
}

// WithDBRoot serves an existing database root instead of an empty one.
func WithDBRoot(dir string) Option {
	return func(c *config.Config) { c.DBRoot = dir }
}

// New starts a mock server on a free loopback port. It is stopped when the
// test completes.
func New(t testing.TB, opts ...Option) *MockServer {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.DBRoot = t.TempDir()
	cfg.MaxConnections = 16
	cfg.ShutdownTimeout = 5 * time.Second
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("failed to create mock server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}

	m := &MockServer{
		t:       t,
		server:  srv,
		baseURL: "http://" + srv.Addr().String(),
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		projects: make(map[string]*ProjectBuilder),
	}
	t.Cleanup(m.Stop)
	return m
}

// Stop stops the mock server. New registers it with t.Cleanup.
func (m *MockServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Stop(ctx); err != nil {
		m.t.Logf("mock server shutdown: %v", err)
	}
}

// URL returns the base URL of the mock server.
func (m *MockServer) URL() string {
	return m.baseURL
}

// Client returns the http.Client used by the helper methods. Connections are
// never reused since the server answers one request per connection.
func (m *MockServer) Client() *http.Client {
	return m.client
}

// Server returns the underlying engine.Server for advanced use cases.
func (m *MockServer) Server() *engine.Server {
	return m.server
}

// Project returns the builder for the named project, creating it on first
// use.
func (m *MockServer) Project(name string) *ProjectBuilder {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.projects[name]; ok {
		return p
	}
	p := newProjectBuilder(m, name)
	m.projects[name] = p
	return p
}

// Upload stores raw project JSON, creating the project or replacing it.
func (m *MockServer) Upload(name, text string) error {
	resp, err := m.do(http.MethodPost, "/projects/"+name, text, nil)
	if err != nil {
		return err
	}
	if resp.Status == http.StatusBadRequest && strings.Contains(resp.Body, api.MsgProjectExists) {
		resp, err = m.do(http.MethodPut, "/projects/"+name, text, nil)
		if err != nil {
			return err
		}
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("upload %s: %d %s", name, resp.Status, resp.Body)
	}
	return nil
}

// Do sends a request to the mock server. Transport failures fail the test.
func (m *MockServer) Do(method, path, body string, headers map[string]string) *Response {
	m.t.Helper()
	resp, err := m.do(method, path, body, headers)
	if err != nil {
		m.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// Get is Do with GET and no body.
func (m *MockServer) Get(path string, headers map[string]string) *Response {
	m.t.Helper()
	return m.Do(http.MethodGet, path, "", headers)
}

// Post is Do with POST.
func (m *MockServer) Post(path, body string, headers map[string]string) *Response {
	m.t.Helper()
	return m.Do(http.MethodPost, path, body, headers)
}

func (m *MockServer) do(method, path, body string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequest(method, m.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: string(data)}, nil
}

// Matched returns how many mock requests were resolved by tier.
func (m *MockServer) Matched(tier string) int {
	v, err := m.server.Metrics().Matches.WithLabels(tier)
	if err != nil {
		return 0
	}
	return int(v.Value())
}

// AssertMatched asserts that exactly n mock requests resolved by tier.
func (m *MockServer) AssertMatched(t testing.TB, tier string, n int) {
	t.Helper()
	if got := m.Matched(tier); got != n {
		t.Errorf("expected %d %q matches, got %d", n, tier, got)
	}
}
