package httpwire

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Response is an outbound response. It is built once by a handler and
// serialized once.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// Bytes serializes the response as
//
//	HTTP/1.1 <status>\r\n<headers>Content-Length: <n>\r\n\r\n<body>
//
// Headers are written in sorted order. A Content-Length supplied in Headers is
// dropped in favour of the computed one.
func (r *Response) Bytes() []byte {
	var b bytes.Buffer
	b.Grow(64 + len(r.Body))

	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(r.Status))
	b.WriteString("\r\n")

	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.Headers[k])
		b.WriteString("\r\n")
	}

	b.WriteString("Content-Length: ")
	b.WriteString(strconv.Itoa(len(r.Body)))
	b.WriteString("\r\n\r\n")
	b.WriteString(r.Body)
	return b.Bytes()
}

// WriteTo writes the serialized response to w.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

// JSON builds a response whose body is data encoded as JSON. The
// Content-Type header is set to application/json.
func JSON(status int, data any) *Response {
	body, err := json.Marshal(data)
	if err != nil {
		return Error(500, "failed to encode response: "+err.Error())
	}
	return &Response{
		Status:  status,
		Body:    string(body),
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

// Error builds a JSON error response of the form {"error": message}.
func Error(status int, message string) *Response {
	body, _ := json.Marshal(map[string]string{"error": message})
	return &Response{
		Status:  status,
		Body:    string(body),
		Headers: map[string]string{"Content-Type": "application/json"},
	}
}

// Text builds a plain text response.
func Text(status int, body string) *Response {
	return &Response{
		Status:  status,
		Body:    body,
		Headers: map[string]string{"Content-Type": "text/plain"},
	}
}

// OK builds a 200 response with the given body. Content-Type defaults to
// text/plain unless headers already carry one.
func OK(body string, headers map[string]string) *Response {
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	if _, ok := h["Content-Type"]; !ok {
		h["Content-Type"] = "text/plain"
	}
	return &Response{Status: 200, Body: body, Headers: h}
}

// Result builds the {"result": value} acknowledgement used by write endpoints.
func Result(value string) *Response {
	return JSON(200, map[string]string{"result": value})
}
