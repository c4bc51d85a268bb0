package lancar

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testCall() *Call {
	u, _ := url.Parse("http://example.com/a")
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Call{
		ID:          "call-1",
		HTTPRequest: &http.Request{Method: http.MethodPost, URL: u},
		RequestBody: `{"a":1}`,
		StartedAt:   start,
		EndedAt:     start.Add(150 * time.Millisecond),
	}
}

func TestCallError(t *testing.T) {
	// Test error without cause
	err := &CallError{
		Type:    ErrorTypeStatus,
		Message: "call failed with status code 500",
	}

	expectedMsg := "Status: call failed with status code 500"
	if err.Error() != expectedMsg {
		t.Errorf("Expected '%s', got '%s'", expectedMsg, err.Error())
	}

	// Test error with cause and call
	cause := errors.New("connection refused")
	errWithCause := &CallError{
		Type:    ErrorTypeTransport,
		Message: "call failed",
		Cause:   cause,
		Call:    testCall(),
	}

	expectedMsgWithCause := "[call-1] POST http://example.com/a Transport: call failed (connection refused)"
	if errWithCause.Error() != expectedMsgWithCause {
		t.Errorf("Expected '%s', got '%s'", expectedMsgWithCause, errWithCause.Error())
	}
}

func TestCallErrorUnwrap(t *testing.T) {
	cause := errors.New("original error")
	err := &CallError{Type: ErrorTypeTransport, Message: "test message", Cause: cause}

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Expected unwrapped error to be %v, got %v", cause, unwrapped)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestCallErrorUnwrapNilCause(t *testing.T) {
	err := &CallError{Type: ErrorTypeStatus, Message: "test message"}

	if unwrapped := err.Unwrap(); unwrapped != nil {
		t.Errorf("Expected unwrapped error to be nil, got %v", unwrapped)
	}
}

func TestCallErrorIs(t *testing.T) {
	err := &CallError{Type: ErrorTypeTimeout, Message: "deadline"}

	if !errors.Is(err, &CallError{Type: ErrorTypeTimeout}) {
		t.Error("Expected errors with the same type to match")
	}
	if errors.Is(err, &CallError{Type: ErrorTypeStatus}) {
		t.Error("Expected errors with different types not to match")
	}
}

func TestCallErrorNilReceiver(t *testing.T) {
	var err *CallError

	if err.Error() != "<nil>" {
		t.Errorf("Expected <nil>, got %q", err.Error())
	}
	if err.Unwrap() != nil {
		t.Error("Expected nil unwrap")
	}
	if err.DebugInfo() != "Error: <nil>" {
		t.Errorf("Expected nil debug info, got %q", err.DebugInfo())
	}
}

func TestCallErrorDebugInfo(t *testing.T) {
	err := &CallError{
		Type:       ErrorTypeStatus,
		Message:    "call failed with status code 503",
		Call:       testCall(),
		StatusCode: 503,
		Cause:      errors.New("upstream"),
	}

	info := err.DebugInfo()
	for _, want := range []string{
		"Error Type: Status",
		"Call ID: call-1",
		"Method: POST",
		"URL: http://example.com/a",
		"Started: 2024-01-02T03:04:05Z",
		"Duration: 150ms",
		`Request Body: {"a":1}`,
		"Status Code: 503",
		"Cause: upstream",
	} {
		if !strings.Contains(info, want) {
			t.Errorf("Expected debug info to contain %q, got:\n%s", want, info)
		}
	}
}

func TestParseError(t *testing.T) {
	cause := errors.New("invalid character")
	err := &ParseError{Call: testCall(), Body: "<html>", Cause: cause}

	if !strings.Contains(err.Error(), "response could not be deserialized") {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected ParseError to unwrap to its cause")
	}
}

func TestArgumentError(t *testing.T) {
	err := invalidURL("nope", errors.New("missing scheme"))

	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("Expected ArgumentError, got %T", err)
	}
	if argErr.Name != "url" || argErr.Value != "nope" {
		t.Errorf("Unexpected argument error fields %+v", argErr)
	}
	if !errors.Is(err, ErrInvalidURL) {
		t.Error("Expected ErrInvalidURL")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(&CallError{Type: ErrorTypeTimeout}) {
		t.Error("Expected timeout error to be detected")
	}
	if IsTimeout(&CallError{Type: ErrorTypeTransport}) {
		t.Error("Expected transport error not to be a timeout")
	}
	if IsTimeout(errors.New("plain")) {
		t.Error("Expected plain error not to be a timeout")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), false},
		{&CallError{Type: ErrorTypeTransport}, true},
		{&CallError{Type: ErrorTypeTimeout}, true},
		{&CallError{Type: ErrorTypeCanceled}, false},
		{&CallError{Type: ErrorTypeStatus, StatusCode: 503}, true},
		{&CallError{Type: ErrorTypeStatus, StatusCode: 429}, true},
		{&CallError{Type: ErrorTypeStatus, StatusCode: 404}, false},
		{&ParseError{Cause: errors.New("x")}, false},
	}

	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassifyTransportError(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	canceled, cancel2 := context.WithCancel(context.Background())
	cancel2()

	tests := []struct {
		ctx  context.Context
		err  error
		want string
	}{
		{context.Background(), context.DeadlineExceeded, ErrorTypeTimeout},
		{expired, errors.New("whatever"), ErrorTypeTimeout},
		{canceled, context.Canceled, ErrorTypeCanceled},
		{context.Background(), &url.Error{Op: "Get", URL: "x", Err: context.Canceled}, ErrorTypeCanceled},
		{context.Background(), errors.New("connection refused"), ErrorTypeTransport},
	}

	for _, tt := range tests {
		if got := classifyTransportError(tt.ctx, tt.err); got != tt.want {
			t.Errorf("classifyTransportError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
