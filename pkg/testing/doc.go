// Package testing provides a testing SDK for using mockapi in Go tests.
//
// New starts a real mockapi server on a loopback port with a throwaway
// database. Projects are described with a fluent builder and uploaded through
// the server's own HTTP API, so tests exercise exactly what clients see.
//
// # Basic Usage
//
//	func TestMyClient(t *testing.T) {
//	    mock := mocktesting.New(t)
//
//	    mock.Project("shop").
//	        Mock("GET", "api/items").
//	        WithQueryParam("sort", "price").
//	        RespondJSON([]map[string]any{{"id": 1}}).
//	        Reply().
//	        MustSave()
//
//	    resp := mock.Get("/projects/shop/api/items?sort=price", nil)
//	    resp.AssertStatus(t, 200)
//	    resp.AssertJSONBody(t, `[{"id": 1}]`)
//	}
//
// # Request Matching
//
// Conditions are tried in the order they were added, as in a hand-written
// project file:
//
//	p := mock.Project("auth")
//	p.Mock("GET", "me").
//	    WithRequestHeader("Authorization", "Bearer good").
//	    RespondJSON(map[string]string{"name": "ada"}).
//	    Reply()
//	p.Mock("POST", "login").
//	    WithRequestBody(map[string]string{"user": "ada"}).
//	    RespondWith(201, "welcome").
//	    WithDelay("50ms").
//	    Reply()
//	p.MustSave()
//
// A condition without WithQueryParam only matches requests that carry no
// query string; call WithAnyQuery to accept any.
//
// # Assertions
//
// Response values carry helpers (AssertStatus, AssertBody, AssertHeader,
// AssertJSONBody). The server's metrics back AssertMatched, which counts
// resolutions by matching tier ("keyed", "scan" or "none").
package testing
