package lancar

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Client owns a lazily created transport, a client-level Settings layer,
// default headers and cookies, and an optional base URL. Mutators change the
// client in place and return it, so a client cached by a ClientFactory stays
// coherent for everyone holding it. Requests copy the defaults when built.
// It is safe for concurrent use.
type Client struct {
	baseURL  string
	settings *Settings

	mu         sync.RWMutex
	headers    Values
	cookies    map[string]string
	middleware []Middleware

	transportMu sync.Mutex
	transport   atomic.Pointer[transportBox]

	disposed        atomic.Bool
	validationError error
}

type transportBox struct {
	rt http.RoundTripper
	// owned is true when the transport came from DefaultTransportFactory.
	owned bool
}

// NewClient constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func NewClient(options ...Option) *Client {
	client := &Client{
		settings: newSettingsLayer(global),
		cookies:  make(map[string]string),
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Settings returns the client layer. Changes apply to requests built afterwards.
func (c *Client) Settings() *Settings {
	return c.settings
}

// Configure applies fn to the client settings layer.
func (c *Client) Configure(fn func(*Settings)) *Client {
	fn(c.settings)
	return c
}

// Headers returns a copy of the default headers.
func (c *Client) Headers() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers.clone()
}

// Cookies returns a copy of the default cookies.
func (c *Client) Cookies() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.cookies))
	for k, v := range c.cookies {
		out[k] = v
	}
	return out
}

// SetHeader sets a default header, replacing any value with the same name.
func (c *Client) SetHeader(name, value string) *Client {
	c.mu.Lock()
	c.headers = headerSet(c.headers, name, value)
	c.mu.Unlock()
	return c
}

func (c *Client) SetHeaders(headers Values) *Client {
	c.mu.Lock()
	for _, h := range headers {
		c.headers = headerSet(c.headers, h.Name, h.Value)
	}
	c.mu.Unlock()
	return c
}

func (c *Client) RemoveHeader(name string) *Client {
	c.mu.Lock()
	c.headers = headerDel(c.headers, name)
	c.mu.Unlock()
	return c
}

// SetCookie sets a default cookie; the last write for a name wins.
func (c *Client) SetCookie(name, value string) *Client {
	c.mu.Lock()
	c.cookies[name] = value
	c.mu.Unlock()
	return c
}

func (c *Client) SetCookies(cookies map[string]string) *Client {
	c.mu.Lock()
	for k, v := range cookies {
		c.cookies[k] = v
	}
	c.mu.Unlock()
	return c
}

func (c *Client) SetBasicAuth(username, password string) *Client {
	return c.SetHeader("Authorization", basicAuth(username, password))
}

func (c *Client) SetOAuthBearerToken(token string) *Client {
	return c.SetHeader("Authorization", "Bearer "+token)
}

func (c *Client) SetTimeout(d time.Duration) *Client {
	c.settings.SetTimeout(d)
	return c
}

// AllowHTTPStatus sets the client's allowed status range expression.
func (c *Client) AllowHTTPStatus(expr string) *Client {
	c.settings.SetAllowedHTTPStatus(expr)
	return c
}

func (c *Client) AllowAnyHTTPStatus() *Client {
	return c.AllowHTTPStatus("*")
}

// Use appends middleware to the client's chain.
func (c *Client) Use(middleware ...Middleware) *Client {
	c.mu.Lock()
	c.middleware = append(c.middleware, middleware...)
	c.mu.Unlock()
	return c
}

// Transport returns the client's transport, creating it on first use with the
// resolved TransportFactory. It is created at most once.
func (c *Client) Transport() http.RoundTripper {
	if box := c.transport.Load(); box != nil {
		return box.rt
	}

	c.transportMu.Lock()
	defer c.transportMu.Unlock()

	if box := c.transport.Load(); box != nil {
		return box.rt
	}
	var rt http.RoundTripper
	if factory, ok := c.settings.lookup(SettingTransportFactory); ok {
		rt = factory.(TransportFactory)()
	}
	owned := rt == nil
	if owned {
		rt = DefaultTransportFactory()
	}
	c.transport.Store(&transportBox{rt: rt, owned: owned})
	return rt
}

// roundTripper returns the transport a call should use: the active test
// transport if one is installed, otherwise the client transport, wrapped in
// the client middleware.
func (c *Client) roundTripper(test TestTransport) http.RoundTripper {
	var base http.RoundTripper
	if test != nil {
		base = test
	} else {
		base = c.Transport()
	}

	c.mu.RLock()
	middleware := append([]Middleware(nil), c.middleware...)
	c.mu.RUnlock()

	return chainMiddleware(base, middleware)
}

// Request builds a request against the base URL with segments appended.
func (c *Client) Request(segments ...string) (*Request, error) {
	if c.baseURL == "" {
		return nil, invalidURL("", nil)
	}
	u, err := parseAbsoluteURL(c.baseURL)
	if err != nil {
		return nil, err
	}
	appendPathSegments(u, segments)
	return newRequest(c, u), nil
}

// NewRequest builds a request against an absolute URL.
func (c *Client) NewRequest(rawURL string) (*Request, error) {
	u, err := parseAbsoluteURL(rawURL)
	if err != nil {
		return nil, err
	}
	return newRequest(c, u), nil
}

// Close disposes the client. Idle connections are released only for the
// default transport; a transport supplied through WithTransport, WithHTTPClient
// or a TransportFactory may be shared and is left to its owner.
// Requests already built keep their reference but can no longer be sent.
func (c *Client) Close() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}
	if box := c.transport.Load(); box != nil && box.owned {
		if closer, ok := box.rt.(idleCloser); ok {
			closer.CloseIdleConnections()
		}
	}
	return nil
}

func (c *Client) IsDisposed() bool {
	return c.disposed.Load()
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, invalidURL(raw, nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, invalidURL(raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, invalidURL(raw, nil)
	}
	return u, nil
}

func appendPathSegments(u *url.URL, segments []string) {
	for _, segment := range segments {
		for _, part := range strings.Split(strings.Trim(segment, "/"), "/") {
			if part == "" {
				continue
			}
			u.Path = strings.TrimSuffix(u.Path, "/") + "/" + part
		}
	}
	u.RawPath = ""
}
