package lancar

import (
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Request is a single unit of work built from a Client. Its URL, headers and
// cookies are fixed copies taken when it was built; builder methods return a
// new Request and never modify the receiver, so a chain can be forked safely.
// The settings layer is the request's own and may be mutated directly.
// A Request is sent at most once.
type Request struct {
	client   *Client
	url      *url.URL
	settings *Settings

	mu      sync.Mutex
	headers Values
	cookies map[string]string
	session *CookieSession

	sent atomic.Bool
}

func newRequest(c *Client, u *url.URL) *Request {
	c.mu.RLock()
	headers := c.headers.clone()
	cookies := make(map[string]string, len(c.cookies))
	for k, v := range c.cookies {
		cookies[k] = v
	}
	c.mu.RUnlock()

	return &Request{
		client:   c,
		url:      u,
		settings: newSettingsLayer(c.settings),
		headers:  headers,
		cookies:  cookies,
	}
}

func (r *Request) clone() *Request {
	u := *r.url
	if r.url.User != nil {
		user := *r.url.User
		u.User = &user
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cookies := make(map[string]string, len(r.cookies))
	for k, v := range r.cookies {
		cookies[k] = v
	}
	return &Request{
		client:   r.client,
		url:      &u,
		settings: r.settings.clone(),
		headers:  r.headers.clone(),
		cookies:  cookies,
		session:  r.session,
	}
}

func (r *Request) Client() *Client {
	return r.client
}

func (r *Request) URL() string {
	return r.url.String()
}

// Settings returns the request layer.
func (r *Request) Settings() *Settings {
	return r.settings
}

// Headers returns a copy of the request headers.
func (r *Request) Headers() Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.headers.clone()
}

// Cookies returns a copy of the request cookies, including any merged from
// responses once the request has been sent.
func (r *Request) Cookies() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.cookies))
	for k, v := range r.cookies {
		out[k] = v
	}
	return out
}

func (r *Request) CookieSession() *CookieSession {
	return r.session
}

// Sent reports whether the request has been sent.
func (r *Request) Sent() bool {
	return r.sent.Load()
}

func (r *Request) AppendPathSegments(segments ...string) *Request {
	n := r.clone()
	appendPathSegments(n.url, segments)
	return n
}

func (r *Request) SetQueryParam(name, value string) *Request {
	n := r.clone()
	q := n.url.Query()
	q.Set(name, value)
	n.url.RawQuery = q.Encode()
	return n
}

// SetQueryParams sets every pair; repeated names in params become repeated values.
func (r *Request) SetQueryParams(params Values) *Request {
	n := r.clone()
	q := n.url.Query()
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if !seen[p.Name] {
			q.Del(p.Name)
			seen[p.Name] = true
		}
		q.Add(p.Name, p.Value)
	}
	n.url.RawQuery = q.Encode()
	return n
}

func (r *Request) RemoveQueryParam(name string) *Request {
	n := r.clone()
	q := n.url.Query()
	q.Del(name)
	n.url.RawQuery = q.Encode()
	return n
}

func (r *Request) WithHeader(name, value string) *Request {
	n := r.clone()
	n.headers = headerSet(n.headers, name, value)
	return n
}

func (r *Request) WithHeaders(headers Values) *Request {
	n := r.clone()
	for _, h := range headers {
		n.headers = headerSet(n.headers, h.Name, h.Value)
	}
	return n
}

func (r *Request) WithoutHeader(name string) *Request {
	n := r.clone()
	n.headers = headerDel(n.headers, name)
	return n
}

func (r *Request) WithCookie(name, value string) *Request {
	n := r.clone()
	n.cookies[name] = value
	return n
}

func (r *Request) WithCookies(cookies map[string]string) *Request {
	n := r.clone()
	for k, v := range cookies {
		n.cookies[k] = v
	}
	return n
}

func (r *Request) WithBasicAuth(username, password string) *Request {
	return r.WithHeader("Authorization", basicAuth(username, password))
}

func (r *Request) WithOAuthBearerToken(token string) *Request {
	return r.WithHeader("Authorization", "Bearer "+token)
}

func (r *Request) WithTimeout(d time.Duration) *Request {
	n := r.clone()
	n.settings.SetTimeout(d)
	return n
}

// AllowHTTPStatus treats statuses matching expr as success for this request.
func (r *Request) AllowHTTPStatus(expr string) *Request {
	n := r.clone()
	n.settings.SetAllowedHTTPStatus(expr)
	return n
}

func (r *Request) AllowAnyHTTPStatus() *Request {
	return r.AllowHTTPStatus("*")
}

// WithCookieSession sends the session's cookies and merges response cookies back into it.
func (r *Request) WithCookieSession(session *CookieSession) *Request {
	n := r.clone()
	n.session = session
	return n
}

// Configure returns a new request with fn applied to its settings layer.
func (r *Request) Configure(fn func(*Settings)) *Request {
	n := r.clone()
	fn(n.settings)
	return n
}

// outgoingCookies returns session cookies overridden by request cookies, sorted by name.
func (r *Request) outgoingCookies() []Pair {
	merged := make(map[string]string)
	if r.session != nil {
		for k, v := range r.session.Cookies() {
			merged[k] = v
		}
	}
	r.mu.Lock()
	for k, v := range r.cookies {
		merged[k] = v
	}
	r.mu.Unlock()

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Pair, 0, len(names))
	for _, name := range names {
		out = append(out, Pair{Name: name, Value: merged[name]})
	}
	return out
}
