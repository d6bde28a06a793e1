package project

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/ohler55/ojg/oj"
)

// Key is the canonical identity of a (method, query matchers, body) triple.
// Matchers holding the same entries produce equal keys regardless of map
// iteration or insertion order. Endpoints index their lookup table by Hash.
type Key struct {
	Method  string
	Queries string // canonical encoding of the sorted query matchers
	Body    string // canonical JSON of the expected body, empty when absent
}

// NewKey builds a key from a condition's parts. body is only considered when
// hasBody is true.
func NewKey(method string, queries map[string]QueryMatcher, body any, hasBody bool) Key {
	k := Key{
		Method:  strings.ToUpper(method),
		Queries: canonicalQueries(queries),
	}
	if hasBody {
		k.Body = CanonicalJSON(body)
	}
	return k
}

// RequestKey builds the key an inbound request is looked up with: every query
// parameter becomes an "is" matcher and a non-empty body is parsed as JSON.
// A body that is not valid JSON yields a key no condition can have.
func RequestKey(method string, queries map[string]string, body string) Key {
	qm := make(map[string]QueryMatcher, len(queries))
	for name, value := range queries {
		qm[name] = QueryMatcher{Operator: OpIs, Value: value}
	}
	k := Key{
		Method:  strings.ToUpper(method),
		Queries: canonicalQueries(qm),
	}
	if strings.TrimSpace(body) == "" {
		return k
	}
	v, err := oj.ParseString(body)
	if err != nil {
		k.Body = "\x00" + body
		return k
	}
	k.Body = CanonicalJSON(v)
	return k
}

// Hash returns a 64-bit hash of the canonical key. Equal keys hash equal.
func (k Key) Hash() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(k.Method)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(k.Queries)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(k.Body)
	return d.Sum64()
}

// keyTable indexes keyed conditions by Key.Hash. Conditions sharing a hash
// are kept in declaration order and told apart by full key equality.
type keyTable map[uint64][]*Condition

// add stores c under h unless a condition with an equal key is already
// present, so the first declaration wins.
func (t keyTable) add(h uint64, c *Condition) bool {
	for _, other := range t[h] {
		if other.key == c.key {
			return false
		}
	}
	t[h] = append(t[h], c)
	return true
}

func (t keyTable) get(k Key) (*Condition, bool) {
	return t.find(k.Hash(), k)
}

func (t keyTable) find(h uint64, k Key) (*Condition, bool) {
	for _, c := range t[h] {
		if c.key == k {
			return c, true
		}
	}
	return nil, false
}

func (t keyTable) len() int {
	n := 0
	for _, bucket := range t {
		n += len(bucket)
	}
	return n
}

func (k Key) String() string {
	s := k.Method
	if k.Queries != "" {
		s += " " + k.Queries
	}
	if k.Body != "" {
		s += " " + k.Body
	}
	return s
}

func canonicalQueries(queries map[string]QueryMatcher) string {
	if len(queries) == 0 {
		return ""
	}
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)

	triples := make([][3]string, len(names))
	for i, name := range names {
		q := queries[name]
		triples[i] = [3]string{name, q.Operator, q.Value}
	}
	out, _ := json.Marshal(triples)
	return string(out)
}

// CanonicalJSON encodes v with object keys sorted, so equal JSON values
// produce equal text.
func CanonicalJSON(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return oj.JSON(v)
	}
	return string(out)
}
