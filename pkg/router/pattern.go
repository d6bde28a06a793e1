package router

import (
	"fmt"
	"regexp"
	"strings"
)

// Match holds the values a pattern extracted from a request target.
type Match struct {
	Path     string            // target with the query string removed
	Queries  map[string]string // parsed query string
	Params   map[string]string // ":name" segments of a literal pattern
	Captures []string          // participating groups of a regex pattern, in order
}

// Pattern decides whether a request target belongs to a route.
type Pattern interface {
	// match is given the full target, the target without its query string,
	// and the parsed query.
	match(target, path string, queries map[string]string) (*Match, bool)
	String() string
}

// Literal returns a pattern that matches paths segment by segment. Segments
// starting with ':' bind the corresponding path segment under that name; all
// others must be equal.
//
// Literal routes never match a target that carries query parameters.
func Literal(template string) Pattern {
	return literalPattern{
		template: template,
		segments: strings.Split(template, "/"),
	}
}

type literalPattern struct {
	template string
	segments []string
}

func (p literalPattern) String() string { return p.template }

func (p literalPattern) match(_, path string, queries map[string]string) (*Match, bool) {
	if len(queries) > 0 {
		return nil, false
	}
	parts := strings.Split(path, "/")
	if len(parts) != len(p.segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range p.segments {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			params[name] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return &Match{
		Path:    path,
		Queries: map[string]string{},
		Params:  params,
	}, true
}

// Regex returns a pattern matched against the full request target, query
// string included. Every participating capture group is exposed in order.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling route pattern %q: %w", expr, err)
	}
	return regexPattern{re: re}, nil
}

// MustRegex is like Regex but panics if expr does not compile.
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

type regexPattern struct {
	re *regexp.Regexp
}

func (p regexPattern) String() string { return p.re.String() }

func (p regexPattern) match(target, path string, queries map[string]string) (*Match, bool) {
	idx := p.re.FindStringSubmatchIndex(target)
	if idx == nil {
		return nil, false
	}
	captures := make([]string, 0, len(idx)/2-1)
	for i := 2; i+1 < len(idx); i += 2 {
		if idx[i] < 0 {
			continue
		}
		captures = append(captures, target[idx[i]:idx[i+1]])
	}
	return &Match{
		Path:     path,
		Queries:  queries,
		Params:   map[string]string{},
		Captures: captures,
	}, true
}

// SplitTarget separates the path from the query string at the first '?' and
// parses the query.
func SplitTarget(target string) (string, map[string]string) {
	path, rawQuery, ok := strings.Cut(target, "?")
	if !ok {
		return target, map[string]string{}
	}
	return path, ParseQuery(rawQuery)
}

// ParseQuery parses "k=v&k2=v2". Values are not URL-decoded; a pair without
// '=' is ignored, the value ends at a second '=' if present, and the last
// occurrence of a repeated key wins.
func ParseQuery(raw string) map[string]string {
	queries := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		parts := strings.Split(pair, "=")
		if len(parts) < 2 {
			continue
		}
		queries[parts[0]] = parts[1]
	}
	return queries
}
