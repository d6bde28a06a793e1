// Package project defines the per-project mock configuration: a set of
// endpoints, each holding an ordered list of conditions that pair a request
// matcher with a canned response.
//
// Configurations are parsed from JSON (or YAML, converted to JSON) and
// validated against an embedded JSON schema. Once parsed, a Config is treated
// as immutable and may be shared between goroutines. Each Endpoint memoizes a
// lookup table keyed by Key, the canonical, order-independent identity of a
// condition's method, query matchers and expected body.
package project
