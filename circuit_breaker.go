package lancar

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned by CircuitBreakerMiddleware while the breaker rejects calls.
var ErrCircuitOpen = errors.New("lancar: circuit breaker is open")

// CircuitState is the state of a CircuitBreaker.
type CircuitState int64

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds circuit breaker configuration. Zero values take
// the defaults: 5 failures, 60s recovery, 2 successes.
type CircuitBreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int

	// Name labels the breaker's state gauge when Metrics is set.
	Name    string
	Metrics *MetricsCollector
}

// CircuitBreaker stops calls to a failing host for RecoveryTimeout after
// FailureThreshold consecutive failures, then lets calls probe it again.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       int64
	failures    int64
	lastFailure int64
	successes   int64
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.Name == "" {
		config.Name = "default"
	}

	cb := &CircuitBreaker{config: config, state: int64(StateClosed)}
	cb.report()
	return cb
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt64(&cb.state))
}

// Allow reports whether a call may proceed. An open breaker whose recovery
// timeout has passed moves to half-open and lets the call through.
func (cb *CircuitBreaker) Allow() bool {
	now := time.Now().UnixNano()

	switch cb.State() {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if now-atomic.LoadInt64(&cb.lastFailure) < int64(cb.config.RecoveryTimeout) {
			return false
		}
		if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
			atomic.StoreInt64(&cb.successes, 0)
			cb.report()
			return true
		}
		return cb.State() == StateHalfOpen
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	atomic.StoreInt64(&cb.lastFailure, time.Now().UnixNano())

	switch cb.State() {
	case StateClosed:
		if atomic.AddInt64(&cb.failures, 1) >= int64(cb.config.FailureThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateOpen))
		}
	case StateHalfOpen:
		atomic.AddInt64(&cb.failures, 1)
		atomic.StoreInt64(&cb.state, int64(StateOpen))
		atomic.StoreInt64(&cb.successes, 0)
	}
	cb.report()
}

func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case StateClosed:
		atomic.StoreInt64(&cb.failures, 0)
	case StateHalfOpen:
		if atomic.AddInt64(&cb.successes, 1) >= int64(cb.config.SuccessThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateClosed))
			atomic.StoreInt64(&cb.failures, 0)
			atomic.StoreInt64(&cb.successes, 0)
		}
	}
	cb.report()
}

func (cb *CircuitBreaker) report() {
	cb.config.Metrics.RecordCircuitBreakerState(cb.config.Name, cb.State())
}

// CircuitBreakerMiddleware fails fast with ErrCircuitOpen while cb is open.
// Transport errors and 5xx responses count as failures.
func CircuitBreakerMiddleware(cb *CircuitBreaker) Middleware {
	return func(req *http.Request, next http.RoundTripper) (*http.Response, error) {
		if !cb.Allow() {
			return nil, ErrCircuitOpen
		}
		resp, err := next.RoundTrip(req)
		if err != nil || resp.StatusCode >= 500 {
			cb.RecordFailure()
		} else {
			cb.RecordSuccess()
		}
		return resp, err
	}
}

// WithCircuitBreaker guards the client's calls with a breaker built from config.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, CircuitBreakerMiddleware(NewCircuitBreaker(config)))
	}
}
