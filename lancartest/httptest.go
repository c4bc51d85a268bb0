// Package lancartest fakes the network for code that uses lancar. While an
// HTTPTest is open every call made through lancar, on any client, is answered
// from a queue of canned responses and recorded in a call log that assertions
// run against.
//
//	ht := lancartest.New(t)
//	defer ht.Close()
//
//	ht.RespondWithJSON(map[string]int{"id": 1}, 201)
//	// ... code under test ...
//	ht.ShouldHaveCalled("https://api.example.com/users*").
//	    WithVerb("POST").
//	    WithContentType("application/json*").
//	    Times(1)
//
// The fake transport is process-wide, so tests that open an HTTPTest must not
// run in parallel with each other.
package lancartest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ambiyansyah-risyal/lancar"
)

// TestingT is the subset of *testing.T assertions report through. If the
// value also has FailNow, a failed assertion calls it.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// ErrSimulatedTimeout is the cause of calls answered by SimulateTimeout.
var ErrSimulatedTimeout = fmt.Errorf("lancartest: simulated timeout: %w", context.DeadlineExceeded)

// responder produces the canned answer for one call.
type responder func(req *http.Request) (*http.Response, error)

// HTTPTest is an installed fake transport plus its call log.
type HTTPTest struct {
	t TestingT

	mu    sync.Mutex
	queue []responder
	calls []*lancar.Call

	closed atomic.Bool
}

// New installs a fresh HTTPTest. If t supports Cleanup, Close is registered with it.
func New(t TestingT) *HTTPTest {
	ht := &HTTPTest{t: t}
	lancar.InstallTestTransport(ht)
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { _ = ht.Close() })
	}
	return ht
}

// RoundTrip answers req with the next queued response, or an empty 200 when
// the queue is empty.
func (ht *HTTPTest) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_ = req.Body.Close()
	}

	ht.mu.Lock()
	var next responder
	if len(ht.queue) > 0 {
		next = ht.queue[0]
		ht.queue = ht.queue[1:]
	}
	ht.mu.Unlock()

	if next == nil {
		return newResponse(req, http.StatusOK, nil, nil), nil
	}
	return next(req)
}

// LogCall appends call to the call log.
func (ht *HTTPTest) LogCall(call *lancar.Call) {
	ht.mu.Lock()
	ht.calls = append(ht.calls, call)
	ht.mu.Unlock()
}

// RespondWith queues a response. A zero status means 200.
func (ht *HTTPTest) RespondWith(body string, status int, headers ...lancar.Pair) *HTTPTest {
	payload := []byte(body)
	return ht.enqueue(func(req *http.Request) (*http.Response, error) {
		return newResponse(req, status, headers, payload), nil
	})
}

// RespondWithJSON queues a response whose body is v serialized with the
// global JSON serializer. Content-Type defaults to application/json.
func (ht *HTTPTest) RespondWithJSON(v interface{}, status int, headers ...lancar.Pair) *HTTPTest {
	body, err := lancar.GlobalSettings().JSONSerializer().Serialize(v)
	if err != nil {
		if ht.t != nil {
			ht.t.Helper()
			ht.t.Errorf("lancartest: serializing canned JSON response: %v", err)
		}
		return ht
	}
	if !hasHeader(headers, "Content-Type") {
		headers = append([]lancar.Pair{{Name: "Content-Type", Value: lancar.ContentTypeJSON}}, headers...)
	}
	return ht.RespondWith(body, status, headers...)
}

// SimulateTimeout queues a call that fails as if its deadline passed.
func (ht *HTTPTest) SimulateTimeout() *HTTPTest {
	return ht.SimulateError(ErrSimulatedTimeout)
}

// SimulateError queues a call that fails with err at the transport.
func (ht *HTTPTest) SimulateError(err error) *HTTPTest {
	return ht.enqueue(func(*http.Request) (*http.Response, error) {
		return nil, err
	})
}

func (ht *HTTPTest) enqueue(r responder) *HTTPTest {
	ht.mu.Lock()
	ht.queue = append(ht.queue, r)
	ht.mu.Unlock()
	return ht
}

// Pending returns the number of queued responses not yet used.
func (ht *HTTPTest) Pending() int {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	return len(ht.queue)
}

// CallLog returns the calls made so far, in completion order.
func (ht *HTTPTest) CallLog() []*lancar.Call {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	return append([]*lancar.Call(nil), ht.calls...)
}

// ShouldHaveCalled asserts that at least one call matched urlPattern.
func (ht *HTTPTest) ShouldHaveCalled(urlPattern string) *Assertion {
	return newAssertion(ht.t, ht.CallLog(), false).withURLPattern(urlPattern)
}

// ShouldNotHaveCalled asserts that no call matched urlPattern. Each chained
// predicate asserts that no call matches everything accumulated so far.
func (ht *HTTPTest) ShouldNotHaveCalled(urlPattern string) *Assertion {
	return newAssertion(ht.t, ht.CallLog(), true).withURLPattern(urlPattern)
}

// ShouldHaveMadeACall asserts that any call was made.
func (ht *HTTPTest) ShouldHaveMadeACall() *Assertion {
	return ht.ShouldHaveCalled("*")
}

// Close uninstalls the fake transport and resets the global settings. It is
// safe to call more than once.
func (ht *HTTPTest) Close() error {
	if !ht.closed.CompareAndSwap(false, true) {
		return nil
	}
	lancar.UninstallTestTransport(ht)
	lancar.GlobalSettings().Reset()
	return nil
}

func newResponse(req *http.Request, status int, headers []lancar.Pair, body []byte) *http.Response {
	if status == 0 {
		status = http.StatusOK
	}
	h := make(http.Header)
	for _, p := range headers {
		h.Add(p.Name, p.Value)
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func hasHeader(headers []lancar.Pair, name string) bool {
	for _, p := range headers {
		if http.CanonicalHeaderKey(p.Name) == http.CanonicalHeaderKey(name) {
			return true
		}
	}
	return false
}
