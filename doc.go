// Package lancar is a fluent HTTP client:
//
//   - Requests are built by chaining URL, header, cookie and auth builders
//   - Settings resolve request → client → global, each layer overriding the next
//   - A ClientFactory shares one *Client per host (or per base URL)
//   - Typed call errors carry the full call record, including the response
//   - The lancartest package swaps the transport for queued fake responses and
//     asserts on the calls made
//
// Typical usage:
//
//	req, err := lancar.NewRequest("https://api.example.com")
//	if err != nil {
//	    return err
//	}
//	resp, err := req.AppendPathSegments("users", "42").
//	    WithOAuthBearerToken(token).
//	    Get(ctx)
//	if err != nil {
//	    return err
//	}
//	user, err := lancar.DecodeJSON[User](resp)
//
// Clients are configured with functional options (NewClient(WithBaseURL(...),
// WithTimeout(...))) or in place through their Set* mutators. Request builders
// never mutate the receiver and a Request is sent at most once.
//
// Non-2xx statuses fail with *CallError unless allowed by a status range such
// as "4xx,5xx" or "400-404"; an OnError hook may mark a failure handled.
package lancar
