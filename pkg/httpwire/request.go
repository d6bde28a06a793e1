package httpwire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wire errors. All of them are fatal for the connection that produced them.
var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrUnsupportedMethod    = errors.New("unsupported method")
	ErrBodyTooLarge         = errors.New("request body too large")
	ErrHeaderTooLarge       = errors.New("request header too large")
)

// MaxHeaderBytes caps the request line plus all header lines, line endings
// included.
const MaxHeaderBytes = 1 << 20

// DefaultMaxBodyBytes caps the Content-Length accepted by ReadRequest when no
// explicit limit is given.
const DefaultMaxBodyBytes int64 = 10 << 20

// Method is a supported HTTP request method.
type Method string

// Supported methods.
const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
	MethodPut  Method = "PUT"
)

// ParseMethod normalizes s to upper case and reports whether it is one of the
// supported methods.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(s)); m {
	case MethodGet, MethodPost, MethodPut:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
	}
}

// HasBody reports whether requests with this method carry a body.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodPut
}

func (m Method) String() string { return string(m) }

// Request is a parsed inbound request.
//
// Method, Path, Version, Headers and Body come from the wire. Queries, Params
// and Matches are filled in by the router once a route has been selected.
type Request struct {
	Method  Method
	Path    string // request target as received, query string included
	Version string
	Headers map[string]string // names kept exactly as sent
	Body    string

	Queries map[string]string
	Params  map[string]string
	Matches []string
}

// Header returns the value of the named header. An exact name match wins;
// otherwise the first case-insensitive match is returned.
func (r *Request) Header(name string) (string, bool) {
	if v, ok := r.Headers[name]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ReadRequest reads a single request from br.
//
// The request line must have the form "METHOD TARGET VERSION". Header lines
// are read until the first blank line and split on the first colon. A body is
// read only for POST and PUT; a missing or non-numeric Content-Length means an
// empty body. maxBody <= 0 selects DefaultMaxBodyBytes. A head longer than
// MaxHeaderBytes fails with ErrHeaderTooLarge.
func ReadRequest(br *bufio.Reader, maxBody int64) (*Request, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	budget := MaxHeaderBytes

	line, err := readLine(br, &budget)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRequestLine, line)
	}
	method, err := ParseMethod(fields[0])
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  method,
		Path:    fields[1],
		Version: fields[2],
		Headers: make(map[string]string),
	}

	for {
		line, err := readLine(br, &budget)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		req.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if !method.HasBody() {
		return req, nil
	}

	n := contentLength(req)
	if n == 0 {
		return req, nil
	}
	if n > maxBody {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrBodyTooLarge, n, maxBody)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	req.Body = string(buf)
	return req, nil
}

// readLine reads one CRLF or LF terminated line, charging its length against
// budget.
func readLine(br *bufio.Reader, budget *int) (string, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		*budget -= len(chunk)
		if *budget < 0 {
			return "", fmt.Errorf("%w: limit %d bytes", ErrHeaderTooLarge, MaxHeaderBytes)
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return "", err
		}
		break
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return string(line), nil
}

func contentLength(req *Request) int64 {
	v, ok := req.Header("Content-Length")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
