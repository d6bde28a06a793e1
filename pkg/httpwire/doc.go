// Package httpwire implements the minimal HTTP/1.1 wire format used by the
// mock server: reading exactly one request from a byte stream and writing one
// response back.
//
// There is no keep-alive, pipelining, chunked transfer-encoding or TLS. A
// request body is read only for POST and PUT, and only as many bytes as the
// Content-Length header announces. Every serialized response carries an
// explicit Content-Length.
//
// # Handlers
//
// Anything that turns a Request into a Response implements Handler. The
// router, the project handlers and the server all speak this single-method
// interface, so they can be composed without closures over shared state.
package httpwire
