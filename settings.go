package lancar

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// SettingKey names one option of a Settings layer.
type SettingKey int

const (
	SettingTimeout SettingKey = iota
	SettingCookiesEnabled
	SettingAllowedHTTPStatus
	SettingJSONSerializer
	SettingFormSerializer
	SettingBeforeCall
	SettingAfterCall
	SettingOnError
	SettingTransportFactory
	SettingLogger
	SettingMetrics
	SettingMaxRedirects
)

var settingNames = map[SettingKey]string{
	SettingTimeout:           "Timeout",
	SettingCookiesEnabled:    "CookiesEnabled",
	SettingAllowedHTTPStatus: "AllowedHTTPStatus",
	SettingJSONSerializer:    "JSONSerializer",
	SettingFormSerializer:    "FormSerializer",
	SettingBeforeCall:        "BeforeCall",
	SettingAfterCall:         "AfterCall",
	SettingOnError:           "OnError",
	SettingTransportFactory:  "TransportFactory",
	SettingLogger:            "Logger",
	SettingMetrics:           "Metrics",
	SettingMaxRedirects:      "MaxRedirects",
}

func (k SettingKey) String() string {
	if name, ok := settingNames[k]; ok {
		return name
	}
	return "Unknown"
}

// DefaultTimeout applies when no layer sets a timeout.
const DefaultTimeout = 100 * time.Second

// DefaultMaxRedirects applies when no layer sets MaxRedirects.
const DefaultMaxRedirects = 10

// CallHook observes (and for OnError, may mark as handled) a single call.
type CallHook func(call *Call)

// TransportFactory builds the transport a Client uses for its lifetime.
type TransportFactory func() http.RoundTripper

// Settings is one layer (global, client or request) of the configuration chain.
//
// A lookup returns the layer's own explicit value, else the parent's, else the
// hard-coded default. Creating a child layer copies the parent's explicit values
// at that moment; options that were unset keep deferring to the parent. Resetting
// or mutating a parent never rewrites a value a child already holds.
type Settings struct {
	mu     sync.RWMutex
	parent *Settings
	values map[SettingKey]interface{}

	// only populated on the global layer
	test atomic.Pointer[testSlot]
}

type testSlot struct {
	transport TestTransport
}

var global = &Settings{values: make(map[SettingKey]interface{})}

// GlobalSettings returns the process-wide root layer.
func GlobalSettings() *Settings {
	return global
}

func newSettingsLayer(parent *Settings) *Settings {
	s := &Settings{parent: parent, values: make(map[SettingKey]interface{})}
	if parent != nil {
		parent.mu.RLock()
		for k, v := range parent.values {
			s.values[k] = v
		}
		parent.mu.RUnlock()
	}
	return s
}

// clone returns a sibling layer with the same parent and a copy of the explicit values.
func (s *Settings) clone() *Settings {
	c := &Settings{parent: s.parent, values: make(map[SettingKey]interface{})}
	s.mu.RLock()
	for k, v := range s.values {
		c.values[k] = v
	}
	s.mu.RUnlock()
	return c
}

func (s *Settings) lookup(key SettingKey) (interface{}, bool) {
	for l := s; l != nil; l = l.parent {
		l.mu.RLock()
		v, ok := l.values[key]
		l.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

func (s *Settings) set(key SettingKey, value interface{}) *Settings {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return s
}

// IsSet reports whether this layer holds an explicit value for key.
func (s *Settings) IsSet(key SettingKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Unset drops this layer's explicit value for key so lookups defer to the parent.
func (s *Settings) Unset(key SettingKey) *Settings {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return s
}

// Reset drops every explicit value of this layer. Layers created earlier from this
// one keep the values they copied.
func (s *Settings) Reset() *Settings {
	s.mu.Lock()
	s.values = make(map[SettingKey]interface{})
	s.mu.Unlock()
	return s
}

// Timeout is the per-call deadline. Zero or negative means no deadline.
func (s *Settings) Timeout() time.Duration {
	if v, ok := s.lookup(SettingTimeout); ok {
		return v.(time.Duration)
	}
	return DefaultTimeout
}

func (s *Settings) SetTimeout(d time.Duration) *Settings {
	return s.set(SettingTimeout, d)
}

// MaxRedirects is how many redirects a send follows. Each hop is a separate
// Call. Zero returns 3xx responses as they are.
func (s *Settings) MaxRedirects() int {
	if v, ok := s.lookup(SettingMaxRedirects); ok {
		return v.(int)
	}
	return DefaultMaxRedirects
}

func (s *Settings) SetMaxRedirects(n int) *Settings {
	if n < 0 {
		n = 0
	}
	return s.set(SettingMaxRedirects, n)
}

func (s *Settings) CookiesEnabled() bool {
	if v, ok := s.lookup(SettingCookiesEnabled); ok {
		return v.(bool)
	}
	return true
}

func (s *Settings) SetCookiesEnabled(enabled bool) *Settings {
	return s.set(SettingCookiesEnabled, enabled)
}

// AllowedHTTPStatus is the status range expression treated as success in addition
// to 2xx, e.g. "404", "4xx", "400-499,503" or "*".
func (s *Settings) AllowedHTTPStatus() string {
	if v, ok := s.lookup(SettingAllowedHTTPStatus); ok {
		return v.(string)
	}
	return ""
}

func (s *Settings) SetAllowedHTTPStatus(expr string) *Settings {
	return s.set(SettingAllowedHTTPStatus, expr)
}

func (s *Settings) JSONSerializer() Serializer {
	if v, ok := s.lookup(SettingJSONSerializer); ok {
		return v.(Serializer)
	}
	return defaultJSONSerializer
}

func (s *Settings) SetJSONSerializer(serializer Serializer) *Settings {
	return s.set(SettingJSONSerializer, serializer)
}

func (s *Settings) FormSerializer() Serializer {
	if v, ok := s.lookup(SettingFormSerializer); ok {
		return v.(Serializer)
	}
	return defaultFormSerializer
}

func (s *Settings) SetFormSerializer(serializer Serializer) *Settings {
	return s.set(SettingFormSerializer, serializer)
}

func (s *Settings) BeforeCall() CallHook {
	return s.hook(SettingBeforeCall)
}

func (s *Settings) SetBeforeCall(hook CallHook) *Settings {
	return s.set(SettingBeforeCall, hook)
}

func (s *Settings) AfterCall() CallHook {
	return s.hook(SettingAfterCall)
}

func (s *Settings) SetAfterCall(hook CallHook) *Settings {
	return s.set(SettingAfterCall, hook)
}

// OnError fires when a call fails. Setting call.ExceptionHandled suppresses the error.
func (s *Settings) OnError() CallHook {
	return s.hook(SettingOnError)
}

func (s *Settings) SetOnError(hook CallHook) *Settings {
	return s.set(SettingOnError, hook)
}

func (s *Settings) hook(key SettingKey) CallHook {
	if v, ok := s.lookup(key); ok {
		return v.(CallHook)
	}
	return nil
}

func (s *Settings) TransportFactory() TransportFactory {
	if v, ok := s.lookup(SettingTransportFactory); ok {
		return v.(TransportFactory)
	}
	return DefaultTransportFactory
}

func (s *Settings) SetTransportFactory(factory TransportFactory) *Settings {
	return s.set(SettingTransportFactory, factory)
}

func (s *Settings) Logger() Logger {
	if v, ok := s.lookup(SettingLogger); ok {
		return v.(Logger)
	}
	return nopLogger{}
}

func (s *Settings) SetLogger(logger Logger) *Settings {
	return s.set(SettingLogger, logger)
}

func (s *Settings) Metrics() *MetricsCollector {
	if v, ok := s.lookup(SettingMetrics); ok {
		return v.(*MetricsCollector)
	}
	return nil
}

func (s *Settings) SetMetrics(collector *MetricsCollector) *Settings {
	return s.set(SettingMetrics, collector)
}
