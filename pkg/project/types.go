package project

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ohler55/ojg/oj"
)

// Query operators.
const (
	OpIs          = "is"
	OpIsNot       = "is!"
	OpContains    = "contains"
	OpNotContains = "contains!"
)

// Config is the root of a project configuration.
type Config struct {
	Description string               `json:"description"`
	Endpoints   map[string]*Endpoint `json:"endpoints"`
}

// Endpoint returns the endpoint configured for path. A path given without a
// leading slash also matches a key written with one.
func (c *Config) Endpoint(path string) (*Endpoint, bool) {
	if ep, ok := c.Endpoints[path]; ok && ep != nil {
		return ep, true
	}
	if !strings.HasPrefix(path, "/") {
		if ep, ok := c.Endpoints["/"+path]; ok && ep != nil {
			return ep, true
		}
	}
	return nil, false
}

// Prepare builds the derived lookup table of every endpoint. Calling it is
// optional; endpoints build their table on first use otherwise.
func (c *Config) Prepare() {
	for _, ep := range c.Endpoints {
		if ep != nil {
			ep.prepare()
		}
	}
}

// Endpoint is a mockable path holding conditions in declaration order.
type Endpoint struct {
	When []*Condition `json:"when"`

	once   sync.Once
	lookup keyTable
}

// Conditions returns the conditions in declaration order, with their derived
// values computed.
func (e *Endpoint) Conditions() []*Condition {
	e.prepare()
	return e.When
}

// Lookup returns the condition stored under k in the lookup table.
func (e *Endpoint) Lookup(k Key) (*Condition, bool) {
	e.prepare()
	return e.lookup.get(k)
}

func (e *Endpoint) tableSize() int {
	e.prepare()
	return e.lookup.len()
}

func (e *Endpoint) prepare() {
	e.once.Do(func() {
		e.lookup = make(keyTable, len(e.When))
		for _, c := range e.When {
			if c == nil {
				continue
			}
			c.derive()
			if c.keyed {
				e.lookup.add(c.key.Hash(), c)
			}
		}
	})
}

// Condition pairs a request matcher with the response sent when it matches.
type Condition struct {
	Method   string           `json:"method"`
	Request  *RequestMatcher  `json:"request,omitempty"`
	Response ResponseTemplate `json:"response"`
	Delay    uint64           `json:"delay,omitempty"`

	// Derived values, filled once by the owning Endpoint.
	ready    bool
	key      Key
	keyed    bool
	body     any
	hasBody  bool
	bodyText string
}

// DelayDuration is Delay expressed as a duration.
func (c *Condition) DelayDuration() time.Duration {
	return time.Duration(c.Delay) * time.Millisecond
}

// Queries returns the query matchers. A nil result means the condition has
// no query matcher at all, which is different from an empty one.
func (c *Condition) Queries() map[string]QueryMatcher {
	if c.Request == nil {
		return nil
	}
	return c.Request.Queries
}

// Headers returns the expected headers, nil when unconstrained.
func (c *Condition) Headers() map[string]string {
	if c.Request == nil {
		return nil
	}
	return c.Request.Headers
}

// ExpectedBody returns the parsed JSON body the request must carry and
// whether a body matcher is configured at all.
func (c *Condition) ExpectedBody() (any, bool) {
	if c.Request == nil {
		return nil, false
	}
	if c.ready {
		return c.body, c.hasBody
	}
	return parseRaw(c.Request.Body)
}

// Key returns the condition's canonical key and whether the condition is
// eligible for the lookup table. Conditions constrained by headers, or by
// query operators other than "is", are only reachable by scanning.
func (c *Condition) Key() (Key, bool) {
	if c.ready {
		return c.key, c.keyed
	}
	body, hasBody := c.ExpectedBody()
	return NewKey(c.Method, c.Queries(), body, hasBody), c.eligible()
}

// BodyText returns the response body as sent on the wire.
func (c *Condition) BodyText() string {
	if c.ready {
		return c.bodyText
	}
	return c.Response.BodyText()
}

func (c *Condition) derive() {
	c.body, c.hasBody = c.ExpectedBody()
	c.key = NewKey(c.Method, c.Queries(), c.body, c.hasBody)
	c.keyed = c.eligible()
	c.bodyText = c.Response.BodyText()
	c.ready = true
}

func (c *Condition) eligible() bool {
	if len(c.Headers()) > 0 {
		return false
	}
	for _, q := range c.Queries() {
		if q.Operator != OpIs {
			return false
		}
	}
	return true
}

// RequestMatcher constrains the request. Each part is independently optional.
type RequestMatcher struct {
	Queries map[string]QueryMatcher `json:"queries,omitempty"`
	Headers map[string]string       `json:"headers,omitempty"`
	Body    json.RawMessage         `json:"body,omitempty"`
}

// QueryMatcher compares one query parameter using Operator.
type QueryMatcher struct {
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// ResponseTemplate is the canned response of a condition.
type ResponseTemplate struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// BodyText renders Body for the wire: a JSON string is unwrapped to its raw
// text, any other value is written as compact JSON, and an absent body is the
// literal text "null".
func (r *ResponseTemplate) BodyText() string {
	raw := bytes.TrimSpace(r.Body)
	if len(raw) == 0 {
		return "null"
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// parseRaw parses an optional JSON value. Absent and null both count as "no
// value".
func parseRaw(raw json.RawMessage) (any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	v, err := oj.Parse(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}
