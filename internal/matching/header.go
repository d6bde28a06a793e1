package matching

// HeaderLookup returns the value of a request header.
type HeaderLookup func(name string) (string, bool)

// MatchHeaders checks that every expected header is present with exactly the
// expected value. An empty or nil expectation accepts any headers.
func MatchHeaders(expected map[string]string, lookup HeaderLookup) bool {
	for name, want := range expected {
		got, ok := lookup(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}
