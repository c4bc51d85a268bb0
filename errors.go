package lancar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Error types carried by CallError.Type.
const (
	ErrorTypeTransport  = "Transport"
	ErrorTypeTimeout    = "Timeout"
	ErrorTypeCanceled   = "Canceled"
	ErrorTypeStatus     = "Status"
	ErrorTypeValidation = "Validation"
)

// Sentinel errors for common failure scenarios
var (
	// ErrInvalidURL is wrapped by ArgumentError when a URL is empty, unparsable or not absolute.
	ErrInvalidURL = errors.New("lancar: invalid url")

	// ErrClientDisposed is returned when sending through a closed Client.
	ErrClientDisposed = errors.New("lancar: client disposed")

	// ErrRequestAlreadySent is returned when a Request is sent a second time.
	ErrRequestAlreadySent = errors.New("lancar: request already sent")

	// ErrUnsupportedContent is returned when a serializer cannot handle a value.
	ErrUnsupportedContent = errors.New("lancar: unsupported content")

	// ErrNegativeCount is wrapped by ArgumentError when an expected call count is negative.
	ErrNegativeCount = errors.New("lancar: count must be non-negative")

	ErrNilFunc = errors.New("lancar: function must not be nil")
)

// ArgumentError reports an invalid argument passed to the library.
type ArgumentError struct {
	Name  string
	Value interface{}
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("lancar: invalid argument %s=%v: %v", e.Name, e.Value, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func invalidURL(raw string, cause error) error {
	err := ErrInvalidURL
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidURL, cause)
	}
	return &ArgumentError{Name: "url", Value: raw, Err: err}
}

// CallError is returned when a call fails: the transport errored, the deadline
// passed, the context was canceled, or the response status was not allowed.
// Call is always populated.
type CallError struct {
	Type       string
	Message    string
	Cause      error
	Call       *Call
	StatusCode int
}

// Error implements error interface.
func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Call != nil {
		msg = fmt.Sprintf("[%s] %s %s %s", e.Call.ID, e.Call.Method(), e.Call.URL(), msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *CallError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*CallError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *CallError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if c := e.Call; c != nil {
		info += fmt.Sprintf("Call ID: %s\n", c.ID)
		info += fmt.Sprintf("Method: %s\n", c.Method())
		info += fmt.Sprintf("URL: %s\n", c.URL())
		if !c.StartedAt.IsZero() {
			info += fmt.Sprintf("Started: %s\n", c.StartedAt.Format(time.RFC3339))
		}
		if d, ok := c.Duration(); ok {
			info += fmt.Sprintf("Duration: %v\n", d)
		}
		if c.RequestBody != "" {
			info += fmt.Sprintf("Request Body: %s\n", c.RequestBody)
		}
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// ParseError is returned when a response body cannot be deserialized. Body holds
// the raw text that failed to parse.
type ParseError struct {
	Call  *Call
	Body  string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Call != nil {
		return fmt.Sprintf("lancar: [%s] %s %s: response could not be deserialized: %v", e.Call.ID, e.Call.Method(), e.Call.URL(), e.Cause)
	}
	return fmt.Sprintf("lancar: response could not be deserialized: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a CallError caused by a deadline.
func IsTimeout(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr) && callErr.Type == ErrorTypeTimeout
}

// IsTransient determines if an error represents a transient failure that might succeed on retry.
// Returns true for transport errors, timeouts, 5xx responses and 429.
// Cancellation, argument and parse errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		switch callErr.Type {
		case ErrorTypeTransport, ErrorTypeTimeout:
			return true
		case ErrorTypeStatus:
			return callErr.StatusCode == 429 || callErr.StatusCode >= 500
		default:
			return false
		}
	}

	return false
}

// classifyTransportError maps a transport failure onto an error type.
func classifyTransportError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}
	return ErrorTypeTransport
}
