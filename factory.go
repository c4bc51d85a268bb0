package lancar

import (
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ambiyansyah-risyal/lancar/internal/keylock"
)

// KeyPolicy derives the cache key a ClientFactory files a URL's client under.
type KeyPolicy func(u *url.URL) string

// HostKeyPolicy keys clients by lower-cased scheme and host; a default port is
// dropped, so "https://API.example.com:443/a" and "https://api.example.com/b"
// share a client.
func HostKeyPolicy(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

// BaseURLKeyPolicy keys clients by the URL text before the path, exactly as
// written (user info and explicit ports included).
func BaseURLKeyPolicy(u *url.URL) string {
	base := u.Scheme + "://"
	if u.User != nil {
		base += u.User.String() + "@"
	}
	return base + u.Host
}

// FactoryOption configures a ClientFactory.
type FactoryOption func(*ClientFactory)

// WithKeyPolicy selects how URLs map to cached clients. The default is HostKeyPolicy.
func WithKeyPolicy(policy KeyPolicy) FactoryOption {
	return func(f *ClientFactory) {
		f.keyPolicy = policy
	}
}

// WithClientOptions sets the options every client the factory creates is built with.
func WithClientOptions(options ...Option) FactoryOption {
	return func(f *ClientFactory) {
		f.clientOptions = append(f.clientOptions, options...)
	}
}

// WithFactoryName labels the factory in metrics.
func WithFactoryName(name string) FactoryOption {
	return func(f *ClientFactory) {
		f.name = name
	}
}

// WithFactoryMetrics reports the number of cached clients to collector.
func WithFactoryMetrics(collector *MetricsCollector) FactoryOption {
	return func(f *ClientFactory) {
		f.metrics = collector
	}
}

// ClientFactory maps URLs to shared clients. URLs whose keys are equal get the
// same *Client. Creating or configuring the client of one key is serialized;
// different keys proceed independently.
type ClientFactory struct {
	name          string
	keyPolicy     KeyPolicy
	clientOptions []Option
	metrics       *MetricsCollector

	locks *keylock.Locker

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewClientFactory(options ...FactoryOption) *ClientFactory {
	f := &ClientFactory{
		name:      "default",
		keyPolicy: HostKeyPolicy,
		locks:     keylock.New(),
		clients:   make(map[string]*Client),
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// KeyOf returns the cache key of rawURL.
func (f *ClientFactory) KeyOf(rawURL string) (string, error) {
	u, err := parseAbsoluteURL(rawURL)
	if err != nil {
		return "", err
	}
	return f.keyPolicy(u), nil
}

// Get returns the client cached for rawURL's key, creating it if needed.
func (f *ClientFactory) Get(rawURL string) (*Client, error) {
	key, err := f.KeyOf(rawURL)
	if err != nil {
		return nil, err
	}

	unlock := f.locks.Lock(key)
	defer unlock()

	return f.getOrCreateLocked(key), nil
}

// ConfigureClient runs fn on the client for rawURL's key while holding that
// key's lock. Concurrent calls for the same key run one after another; Get for
// the same key waits until fn returns.
func (f *ClientFactory) ConfigureClient(rawURL string, fn func(*Client)) error {
	if fn == nil {
		return &ArgumentError{Name: "fn", Value: nil, Err: ErrNilFunc}
	}
	key, err := f.KeyOf(rawURL)
	if err != nil {
		return err
	}

	f.locks.Do(key, func() {
		fn(f.getOrCreateLocked(key))
	})
	return nil
}

// getOrCreateLocked must be called with the key lock held.
func (f *ClientFactory) getOrCreateLocked(key string) *Client {
	f.mu.RLock()
	c, ok := f.clients[key]
	f.mu.RUnlock()
	if ok && !c.IsDisposed() {
		return c
	}

	c = NewClient(f.clientOptions...)

	f.mu.Lock()
	f.clients[key] = c
	n := len(f.clients)
	f.mu.Unlock()

	f.metrics.RecordFactoryClients(f.name, n)
	return c
}

// Clients returns a snapshot of the cache.
func (f *ClientFactory) Clients() map[string]*Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]*Client, len(f.clients))
	for k, c := range f.clients {
		out[k] = c
	}
	return out
}

// Close disposes every cached client and empties the cache.
func (f *ClientFactory) Close() error {
	f.mu.Lock()
	clients := f.clients
	f.clients = make(map[string]*Client)
	f.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
	f.metrics.RecordFactoryClients(f.name, 0)
	return nil
}

var defaultFactory atomic.Pointer[ClientFactory]

func init() {
	defaultFactory.Store(NewClientFactory())
}

// DefaultFactory is the factory behind the package-level URL entry points.
func DefaultFactory() *ClientFactory {
	return defaultFactory.Load()
}

// SetDefaultFactory replaces the default factory and returns the previous one.
func SetDefaultFactory(f *ClientFactory) *ClientFactory {
	return defaultFactory.Swap(f)
}
