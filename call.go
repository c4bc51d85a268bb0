package lancar

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Call records one request attempt, successful or not. It is handed to hooks,
// carried by CallError and ParseError, and logged by the test transport.
type Call struct {
	ID           string
	Request      *Request
	HTTPRequest  *http.Request
	RequestBody  string
	HTTPResponse *http.Response
	Response     *Response
	StartedAt    time.Time
	EndedAt      time.Time

	// Redirect is where a followed 3xx response pointed; the next hop is a
	// separate Call.
	Redirect *url.URL

	// Succeeded is true when the status is 2xx, matches the allowed range or
	// was a followed redirect.
	Succeeded bool
	Err       error

	// ExceptionHandled may be set by an OnError hook to return the response
	// instead of Err.
	ExceptionHandled bool
}

// Duration is EndedAt-StartedAt; ok is false while the call is in flight.
func (c *Call) Duration() (time.Duration, bool) {
	if c.EndedAt.IsZero() {
		return 0, false
	}
	return c.EndedAt.Sub(c.StartedAt), true
}

// Completed reports whether a response was received.
func (c *Call) Completed() bool {
	return c.HTTPResponse != nil
}

func (c *Call) Method() string {
	if c.HTTPRequest != nil {
		return c.HTTPRequest.Method
	}
	return ""
}

// URL is the address this hop was sent to.
func (c *Call) URL() string {
	if c.HTTPRequest != nil && c.HTTPRequest.URL != nil {
		return c.HTTPRequest.URL.String()
	}
	if c.Request != nil {
		return c.Request.URL()
	}
	return ""
}

func (c *Call) String() string {
	s := fmt.Sprintf("%s %s", c.Method(), c.URL())
	if c.HTTPResponse != nil {
		s += fmt.Sprintf(" -> %d", c.HTTPResponse.StatusCode)
	} else if c.Err != nil {
		s += " -> failed"
	}
	return s
}
