package lancar

import (
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware blocks each call until limiter grants a token or the
// request context ends.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(req *http.Request, next http.RoundTripper) (*http.Response, error) {
		if err := limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		return next.RoundTrip(req)
	}
}

// PerHostRateLimitMiddleware keeps one limiter per request host.
func PerHostRateLimitMiddleware(rps float64, burst int) Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(host string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[host]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[host] = l
		}
		return l
	}

	return func(req *http.Request, next http.RoundTripper) (*http.Response, error) {
		if err := limiterFor(req.URL.Host).Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		return next.RoundTrip(req)
	}
}
