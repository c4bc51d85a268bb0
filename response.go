package lancar

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Response wraps an *http.Response and allows exactly one logical body read.
// The first non-stream read buffers the body and later reads replay it. After
// Stream the body belongs to the caller and every other read yields nothing.
type Response struct {
	call *Call
	raw  *http.Response

	headersOnce sync.Once
	headers     map[string]string

	mu       sync.Mutex
	body     []byte
	readErr  error
	read     bool
	streamed bool
}

func newResponse(call *Call, raw *http.Response) *Response {
	return &Response{call: call, raw: raw}
}

// Call returns the call that produced this response.
func (r *Response) Call() *Call {
	return r.call
}

// Raw exposes the underlying message. Reading its body directly bypasses the cache.
func (r *Response) Raw() *http.Response {
	return r.raw
}

func (r *Response) StatusCode() int {
	return r.raw.StatusCode
}

func (r *Response) Status() string {
	return r.raw.Status
}

// Headers returns a copy of the response headers flattened to one value per
// name (multiple values joined by ", "). Keys are canonical header names.
func (r *Response) Headers() map[string]string {
	flat := r.flatHeaders()
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		out[k] = v
	}
	return out
}

// Header looks a header up case-insensitively.
func (r *Response) Header(name string) string {
	return r.flatHeaders()[http.CanonicalHeaderKey(name)]
}

func (r *Response) flatHeaders() map[string]string {
	r.headersOnce.Do(func() {
		r.headers = make(map[string]string, len(r.raw.Header))
		for name, values := range r.raw.Header {
			r.headers[http.CanonicalHeaderKey(name)] = strings.Join(values, ", ")
		}
	})
	return r.headers
}

func (r *Response) Cookies() []*http.Cookie {
	return r.raw.Cookies()
}

// Bytes returns the body, reading and caching it on first use.
func (r *Response) Bytes() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked()
}

// Text returns the body as a string.
func (r *Response) Text() (string, error) {
	body, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// JSON decodes the body into v using the request's JSON serializer. On failure
// it returns a *ParseError with the raw body text.
func (r *Response) JSON(v interface{}) error {
	body, err := r.Bytes()
	if err != nil {
		return err
	}
	if body == nil && r.isStreamed() {
		return nil
	}
	serializer := defaultJSONSerializer
	if r.call != nil && r.call.Request != nil {
		serializer = r.call.Request.Settings().JSONSerializer()
	}
	if err := serializer.Deserialize(bytes.NewReader(body), v); err != nil {
		return &ParseError{Call: r.call, Body: string(body), Cause: err}
	}
	return nil
}

// TryJSON is JSON without the error: it reports whether v was decoded. The
// body is still read and cached, so Text returns it afterwards.
func (r *Response) TryJSON(v interface{}) bool {
	return r.JSON(v) == nil
}

// DecodeJSON decodes the body of resp into a new T.
func DecodeJSON[T any](resp *Response) (T, error) {
	var v T
	err := resp.JSON(&v)
	return v, err
}

// DecodeJSONOrDefault decodes the body of resp into a new T and returns def
// when the body cannot be read or parsed, an empty body included.
func DecodeJSONOrDefault[T any](resp *Response, def T) T {
	v, err := DecodeJSON[T](resp)
	if err != nil {
		return def
	}
	return v
}

// Stream hands the body to the caller, who must close it. If the body was
// already buffered a reader over the buffered bytes is returned. A second
// Stream returns nil.
func (r *Response) Stream() (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamed {
		return nil, nil
	}
	if r.read {
		return io.NopCloser(bytes.NewReader(r.body)), nil
	}
	r.streamed = true
	if r.raw.Body == nil {
		return http.NoBody, nil
	}
	return r.raw.Body, nil
}

// Close releases the underlying body if it was neither read nor streamed.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.read || r.streamed || r.raw.Body == nil {
		return nil
	}
	r.read = true
	return r.raw.Body.Close()
}

func (r *Response) isStreamed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamed
}

func (r *Response) readLocked() ([]byte, error) {
	if r.streamed {
		return nil, nil
	}
	if r.read {
		return r.body, r.readErr
	}
	r.read = true
	if r.raw.Body == nil {
		r.body = []byte{}
		return r.body, nil
	}
	defer r.raw.Body.Close()
	body, err := io.ReadAll(r.raw.Body)
	if err != nil {
		r.readErr = fmt.Errorf("lancar: reading response body: %w", err)
		return nil, r.readErr
	}
	r.body = body
	return r.body, nil
}
