package lancar

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"

	"github.com/ambiyansyah-risyal/lancar/internal/singleflight"
)

// DeduplicationKeyFunc identifies requests that may share one in-flight call.
type DeduplicationKeyFunc func(*http.Request) string

// DeduplicationCondition decides whether a request is eligible for deduplication.
type DeduplicationCondition func(*http.Request) bool

// DefaultDeduplicationKeyFunc keys on method, URL and the credentials a
// request carries, so callers with different identities never share.
func DefaultDeduplicationKeyFunc(req *http.Request) string {
	h := fnv.New64a()
	h.Write([]byte(req.Method))
	h.Write([]byte{0})
	h.Write([]byte(req.URL.String()))
	for _, name := range []string{"Authorization", "Cookie", "Accept"} {
		h.Write([]byte{0})
		h.Write([]byte(req.Header.Get(name)))
	}
	return fmt.Sprintf("%x", h.Sum64())
}

// DefaultDeduplicationCondition enables deduplication for bodiless safe methods.
func DefaultDeduplicationCondition(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return req.Body == nil || req.Body == http.NoBody
	}
	return false
}

type sharedResponse struct {
	resp *http.Response
	body []byte
}

// DeduplicationMiddleware lets concurrent identical requests share one round
// trip. The first request's response body is read in full and every caller
// receives its own copy. The shared round trip is not tied to any single
// caller's context: a caller that is cancelled or times out returns alone, and
// the round trip is cancelled only when no caller is left waiting. Requests
// for which cond is false pass straight through.
func DeduplicationMiddleware(keyFn DeduplicationKeyFunc, cond DeduplicationCondition) Middleware {
	if keyFn == nil {
		keyFn = DefaultDeduplicationKeyFunc
	}
	if cond == nil {
		cond = DefaultDeduplicationCondition
	}
	var group singleflight.Group[*sharedResponse]

	return func(req *http.Request, next http.RoundTripper) (*http.Response, error) {
		if !cond(req) {
			return next.RoundTrip(req)
		}

		shared, err, _ := group.Do(req.Context(), keyFn(req), func(ctx context.Context) (*sharedResponse, error) {
			resp, err := next.RoundTrip(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, err
			}
			return &sharedResponse{resp: resp, body: body}, nil
		})
		if err != nil {
			return nil, err
		}
		return shared.copyFor(req), nil
	}
}

func (s *sharedResponse) copyFor(req *http.Request) *http.Response {
	resp := *s.resp
	resp.Header = s.resp.Header.Clone()
	resp.Body = io.NopCloser(bytes.NewReader(s.body))
	resp.ContentLength = int64(len(s.body))
	resp.Request = req
	return &resp
}

// WithDeduplication coalesces concurrent identical GET, HEAD and OPTIONS calls.
func WithDeduplication() Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, DeduplicationMiddleware(nil, nil))
	}
}
