package lancar

import (
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
)

// Middleware wraps a transport round trip. Middleware registered on a Client
// runs for every call, including calls served by a test transport.
type Middleware func(req *http.Request, next http.RoundTripper) (*http.Response, error)

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// DefaultTransportFactory returns a pooled transport with the standard proxy
// and dial settings.
func DefaultTransportFactory() http.RoundTripper {
	return cleanhttp.DefaultPooledTransport()
}

// chainMiddleware applies middleware in reverse order (last middleware wraps first)
func chainMiddleware(base http.RoundTripper, middleware []Middleware) http.RoundTripper {
	if len(middleware) == 0 {
		return base
	}

	current := base

	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return mw(r, next)
		})
	}

	return current
}

type idleCloser interface {
	CloseIdleConnections()
}
