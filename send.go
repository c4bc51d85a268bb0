package lancar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Send issues the request with method and an optional body.
//
// A response whose status is 2xx or matches the allowed range is returned
// normally. Transport failures, timeouts, cancellation and other statuses
// return a *CallError unless an OnError hook set call.ExceptionHandled, in
// which case the response (nil after a transport failure) is returned.
//
// Redirects are followed up to Settings.MaxRedirects. Every hop is its own
// Call; Authorization and cookies are only sent to the original host.
func (r *Request) Send(ctx context.Context, method string, content Content) (*Response, error) {
	if !r.sent.CompareAndSwap(false, true) {
		return nil, ErrRequestAlreadySent
	}
	if r.client.IsDisposed() {
		return nil, ErrClientDisposed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s := r.settings
	logger := s.Logger()
	metrics := s.Metrics()

	var body []byte
	var contentType string
	if content != nil {
		var err error
		body, contentType, err = content.Encode(s)
		if err != nil {
			return nil, fmt.Errorf("lancar: serializing request body: %w", err)
		}
	}

	cancel := context.CancelFunc(func() {})
	if timeout := s.Timeout(); timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	test := activeTestTransport()
	hc := &http.Client{
		Transport: r.client.roundTripper(test),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	target := r.url
	var call *Call
	for hop := 0; ; hop++ {
		httpReq, err := r.buildHTTPRequest(ctx, method, target, body, contentType)
		if err != nil {
			cancel()
			return nil, err
		}
		call = r.roundTrip(ctx, hc, httpReq, body)

		next := r.redirectTarget(call, hop)
		if next == nil && call.HTTPResponse != nil {
			call.HTTPResponse.Body = &cancelOnClose{ReadCloser: call.HTTPResponse.Body, cancel: cancel}
		}
		r.finishCall(call, next, test)
		if next == nil {
			break
		}

		logger.Debug("Following redirect", "call_id", call.ID, "status", call.HTTPResponse.StatusCode, "location", next.String())
		drainBody(call.HTTPResponse)
		method, body, contentType = redirectMethod(call.HTTPResponse.StatusCode, method, body, contentType)
		target = next
	}

	if call.HTTPResponse == nil {
		cancel()
	}

	statusCode := 0
	if call.HTTPResponse != nil {
		statusCode = call.HTTPResponse.StatusCode
	}
	if call.Err == nil {
		duration, _ := call.Duration()
		logger.Debug("Request completed", "call_id", call.ID, "status", statusCode, "duration", duration)
		return call.Response, nil
	}

	callErr, _ := call.Err.(*CallError)
	errType := ErrorTypeTransport
	if callErr != nil {
		errType = callErr.Type
	}
	metrics.RecordError(errType, call.Method(), call.HTTPRequest.URL.Host)

	if hook := s.OnError(); hook != nil {
		hook(call)
	}

	if call.ExceptionHandled {
		logger.Debug("Request failure handled", "call_id", call.ID, "type", errType, "status", statusCode)
		return call.Response, nil
	}

	logger.Warn("Request failed", "call_id", call.ID, "method", call.Method(), "url", call.URL(), "type", errType, "status", statusCode, "error", call.Err.Error())
	return nil, call.Err
}

// roundTrip sends one hop and records its outcome on a new Call. Status
// classification is left to finishCall.
func (r *Request) roundTrip(ctx context.Context, hc *http.Client, httpReq *http.Request, body []byte) *Call {
	s := r.settings
	call := &Call{
		ID:          uuid.NewString(),
		Request:     r,
		HTTPRequest: httpReq,
		RequestBody: string(body),
		StartedAt:   time.Now(),
	}
	method, host := httpReq.Method, httpReq.URL.Host

	if hook := s.BeforeCall(); hook != nil {
		hook(call)
	}

	s.Logger().Debug("Sending request", "call_id", call.ID, "method", method, "url", call.URL())
	s.Metrics().RecordRequestStart(method, host)

	httpResp, err := hc.Do(httpReq)

	call.EndedAt = time.Now()
	s.Metrics().RecordRequestEnd(method, host)

	if err != nil {
		call.Err = &CallError{
			Type:    classifyTransportError(ctx, err),
			Message: "call failed",
			Cause:   err,
			Call:    call,
		}
		return call
	}

	call.HTTPResponse = httpResp
	call.Response = newResponse(call, httpResp)
	if s.CookiesEnabled() {
		r.mergeResponseCookies(httpResp)
	}
	return call
}

// finishCall classifies the hop, logs it with the test transport and runs
// AfterCall. A hop that is redirected to next counts as succeeded.
func (r *Request) finishCall(call *Call, next *url.URL, test TestTransport) {
	s := r.settings
	if resp := call.HTTPResponse; resp != nil {
		call.Redirect = next
		call.Succeeded = next != nil || IsSuccessStatus(resp.StatusCode) || StatusAllowed(s.AllowedHTTPStatus(), resp.StatusCode)
		if !call.Succeeded {
			call.Err = &CallError{
				Type:       ErrorTypeStatus,
				Message:    fmt.Sprintf("call failed with status code %d", resp.StatusCode),
				Call:       call,
				StatusCode: resp.StatusCode,
			}
			// Buffer the body so it can be inspected from the error and the connection is released.
			_, _ = call.Response.Bytes()
		}
	}

	if test != nil {
		test.LogCall(call)
	}

	if hook := s.AfterCall(); hook != nil {
		hook(call)
	}

	duration, _ := call.Duration()
	statusCode := 0
	if call.HTTPResponse != nil {
		statusCode = call.HTTPResponse.StatusCode
	}
	s.Metrics().RecordRequest(call.Method(), call.HTTPRequest.URL.Host, statusCode, duration)
}

// redirectTarget returns the URL the hop's response redirects to, or nil when
// it should be returned as it is.
func (r *Request) redirectTarget(call *Call, hop int) *url.URL {
	resp := call.HTTPResponse
	if resp == nil || hop >= r.settings.MaxRedirects() {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return nil
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil
	}
	next, err := call.HTTPRequest.URL.Parse(loc)
	if err != nil || (next.Scheme != "http" && next.Scheme != "https") {
		return nil
	}
	return next
}

// redirectMethod keeps the method and body for 307 and 308; other redirects
// continue as a bodiless GET (HEAD stays HEAD).
func redirectMethod(status int, method string, body []byte, contentType string) (string, []byte, string) {
	if status == http.StatusTemporaryRedirect || status == http.StatusPermanentRedirect {
		return method, body, contentType
	}
	if method == http.MethodHead {
		return method, nil, ""
	}
	return http.MethodGet, nil, ""
}

func drainBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

func (r *Request) buildHTTPRequest(ctx context.Context, method string, target *url.URL, body []byte, contentType string) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("lancar: creating request: %w", err)
	}

	sameHost := strings.EqualFold(target.Host, r.url.Host)
	headers := r.Headers()
	for _, h := range headers {
		if !sameHost && strings.EqualFold(h.Name, "Authorization") {
			continue
		}
		httpReq.Header.Set(h.Name, h.Value)
	}
	if _, ok := headerGet(headers, "Content-Type"); !ok && body != nil && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if sameHost && r.settings.CookiesEnabled() {
		for _, c := range r.outgoingCookies() {
			httpReq.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	return httpReq, nil
}

func (r *Request) mergeResponseCookies(resp *http.Response) {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}
	now := time.Now()

	r.mu.Lock()
	for _, c := range cookies {
		if cookieExpired(c, now) {
			delete(r.cookies, c.Name)
			continue
		}
		r.cookies[c.Name] = c.Value
	}
	r.mu.Unlock()

	if r.session != nil {
		r.session.merge(cookies, now)
	}
}

func cookieExpired(c *http.Cookie, now time.Time) bool {
	return c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now))
}

// cancelOnClose releases the call's timeout context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// Get sends a GET request.
func (r *Request) Get(ctx context.Context) (*Response, error) {
	return r.Send(ctx, http.MethodGet, NoContent)
}

func (r *Request) Head(ctx context.Context) (*Response, error) {
	return r.Send(ctx, http.MethodHead, NoContent)
}

func (r *Request) Delete(ctx context.Context) (*Response, error) {
	return r.Send(ctx, http.MethodDelete, NoContent)
}

func (r *Request) Options(ctx context.Context) (*Response, error) {
	return r.Send(ctx, http.MethodOptions, NoContent)
}

func (r *Request) PostJSON(ctx context.Context, v interface{}) (*Response, error) {
	return r.Send(ctx, http.MethodPost, JSONContent(v))
}

func (r *Request) PutJSON(ctx context.Context, v interface{}) (*Response, error) {
	return r.Send(ctx, http.MethodPut, JSONContent(v))
}

func (r *Request) PatchJSON(ctx context.Context, v interface{}) (*Response, error) {
	return r.Send(ctx, http.MethodPatch, JSONContent(v))
}

func (r *Request) PostString(ctx context.Context, s string) (*Response, error) {
	return r.Send(ctx, http.MethodPost, StringContent(s, ""))
}

func (r *Request) PostBytes(ctx context.Context, b []byte, contentType string) (*Response, error) {
	return r.Send(ctx, http.MethodPost, BytesContent(b, contentType))
}

// PostForm sends v URL-encoded with the form serializer.
func (r *Request) PostForm(ctx context.Context, v interface{}) (*Response, error) {
	return r.Send(ctx, http.MethodPost, FormContent(v))
}
