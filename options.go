package lancar

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option represents a configuration option
type Option func(*Client)

// WithBaseURL sets the URL Client.Request appends path segments to
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the client-level call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.settings.SetTimeout(d)
	}
}

// WithHeader adds a default header
func WithHeader(name, value string) Option {
	return func(c *Client) {
		c.headers = headerSet(c.headers, name, value)
	}
}

// WithCookie adds a default cookie
func WithCookie(name, value string) Option {
	return func(c *Client) {
		c.cookies[name] = value
	}
}

// WithAllowedHTTPStatus sets the client's allowed status range expression
func WithAllowedHTTPStatus(expr string) Option {
	return func(c *Client) {
		c.settings.SetAllowedHTTPStatus(expr)
	}
}

// WithSettings applies fn to the client settings layer
func WithSettings(fn func(*Settings)) Option {
	return func(c *Client) {
		fn(c.settings)
	}
}

// WithTransport makes the client send through rt
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.settings.SetTransportFactory(func() http.RoundTripper { return rt })
	}
}

// WithHTTPClient sends through the transport of a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}
		rt := client.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		c.settings.SetTransportFactory(func() http.RoundTripper { return rt })
		if client.Timeout > 0 {
			c.settings.SetTimeout(client.Timeout)
		}
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRateLimit limits the client to rps calls per second with the given burst
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, RateLimitMiddleware(rate.NewLimiter(rate.Limit(rps), burst)))
	}
}

// WithLogger sets the logger calls are reported to
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.settings.SetLogger(logger)
	}
}

// WithZapLogger reports calls to a zap logger
func WithZapLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.settings.SetLogger(NewZapLogger(logger))
	}
}

// WithSimpleLogger enables debug logging with a console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.settings.SetLogger(NewSimpleLogger())
	}
}

// WithMetrics enables Prometheus metrics collection on the default registerer
func WithMetrics() Option {
	return func(c *Client) {
		c.settings.SetMetrics(NewMetricsCollector())
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.settings.SetMetrics(collector)
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateBaseURL()...)
	errors = append(errors, c.validateSettings()...)
	errors = append(errors, c.validateMiddlewareConfig()...)

	if len(errors) > 0 {
		return &CallError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateBaseURL() []string {
	if c.baseURL == "" {
		return nil
	}
	if _, err := parseAbsoluteURL(c.baseURL); err != nil {
		return []string{fmt.Sprintf("baseURL %q must be an absolute URL", c.baseURL)}
	}
	return nil
}

func (c *Client) validateSettings() []string {
	var errors []string

	if c.settings.Timeout() < 0 {
		errors = append(errors, "timeout must be non-negative")
	}

	if c.settings.Timeout() > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	if expr := c.settings.AllowedHTTPStatus(); expr != "" && !validStatusExpr(expr) {
		errors = append(errors, fmt.Sprintf("allowed status expression %q is malformed", expr))
	}

	return errors
}

// validateMiddlewareConfig validates middleware configuration
func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}

func validStatusExpr(expr string) bool {
	for _, item := range strings.Split(expr, ",") {
		item = strings.TrimSpace(item)
		if item == "*" {
			continue
		}
		if lo, hi, ok := strings.Cut(item, "-"); ok {
			if !isDigits(strings.TrimSpace(lo)) || !isDigits(strings.TrimSpace(hi)) {
				return false
			}
			continue
		}
		if len(item) != 3 {
			return false
		}
		for i := 0; i < len(item); i++ {
			ch := item[i]
			if !(ch >= '0' && ch <= '9') && ch != 'x' && ch != 'X' && ch != '*' {
				return false
			}
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
