// Package matching decides which condition of a project endpoint answers a
// request.
//
// Resolution runs in two tiers:
//
//   - Keyed: the request is turned into a project.Key (method, queries as
//     "is" matchers, canonical JSON body) and looked up in the endpoint's
//     table. This is O(1) and ignores headers.
//   - Scan: conditions are tried in declaration order against the full
//     predicate (method, queries, headers, body). The first one that holds
//     wins.
//
// Query operators are "is", "is!", "contains" and "contains!". A condition
// using any other operator never matches and the operator is logged.
//
// Body matching is strict by default: the request body must be JSON equal to
// the expected value. In subset mode every expected top-level field must be
// present and equal, and keys starting with "$" are evaluated as JSONPath
// expressions against the request body.
package matching
