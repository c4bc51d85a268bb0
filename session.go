package lancar

import (
	"net/http"
	"sync"
	"time"
)

// CookieSession is a cookie mapping shared by several requests. Requests sent
// with the session carry its cookies, and cookies set by their responses are
// merged back into it, the last value for a name winning.
type CookieSession struct {
	mu      sync.RWMutex
	cookies map[string]string
}

func NewCookieSession() *CookieSession {
	return &CookieSession{cookies: make(map[string]string)}
}

// Request builds a request from client bound to this session.
func (s *CookieSession) Request(client *Client, segments ...string) (*Request, error) {
	req, err := client.Request(segments...)
	if err != nil {
		return nil, err
	}
	return req.WithCookieSession(s), nil
}

// Cookies returns a copy of the session cookies.
func (s *CookieSession) Cookies() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}

func (s *CookieSession) Set(name, value string) *CookieSession {
	s.mu.Lock()
	s.cookies[name] = value
	s.mu.Unlock()
	return s
}

func (s *CookieSession) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cookies)
}

func (s *CookieSession) Clear() {
	s.mu.Lock()
	s.cookies = make(map[string]string)
	s.mu.Unlock()
}

func (s *CookieSession) merge(cookies []*http.Cookie, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cookies {
		if cookieExpired(c, now) {
			delete(s.cookies, c.Name)
			continue
		}
		s.cookies[c.Name] = c.Value
	}
}
