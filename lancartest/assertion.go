package lancartest

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/ambiyansyah-risyal/lancar"
)

// AssertionError describes a failed call assertion.
type AssertionError struct {
	// Conditions are the human-readable predicates accumulated before the failure.
	Conditions []string
	// Expected is the count given to Times, or -1 when any non-zero count was expected.
	Expected int
	// Actual is the number of logged calls matching every condition.
	Actual int
	// Negated is true for ShouldNotHaveCalled assertions.
	Negated bool
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString("lancartest: expected ")
	switch {
	case e.Negated && e.Expected < 0:
		b.WriteString("no calls")
	case e.Negated:
		fmt.Fprintf(&b, "any number of calls other than %d", e.Expected)
	case e.Expected < 0:
		b.WriteString("any calls")
	case e.Expected == 1:
		b.WriteString("1 call")
	default:
		fmt.Fprintf(&b, "%d calls", e.Expected)
	}
	b.WriteString(" to be made")
	if len(e.Conditions) > 0 {
		b.WriteString(" with ")
		b.WriteString(strings.Join(e.Conditions, " and "))
	}
	switch e.Actual {
	case 0:
		b.WriteString(", but no matching calls were made")
	case 1:
		b.WriteString(", but 1 matching call was made")
	default:
		fmt.Fprintf(&b, ", but %d matching calls were made", e.Actual)
	}
	return b.String()
}

// Assertion narrows the call log one predicate at a time. Every chained method
// filters the candidate calls and asserts again straight away. After the
// first failure later methods do nothing; Err returns the failure.
type Assertion struct {
	t          TestingT
	calls      []*lancar.Call
	negated    bool
	conditions []string
	err        error
}

func newAssertion(t TestingT, calls []*lancar.Call, negated bool) *Assertion {
	return &Assertion{t: t, calls: calls, negated: negated}
}

// Err returns the first failure, or nil.
func (a *Assertion) Err() error {
	return a.err
}

// Calls returns the calls still matching every condition.
func (a *Assertion) Calls() []*lancar.Call {
	return append([]*lancar.Call(nil), a.calls...)
}

// With narrows the candidates to calls satisfying match and asserts.
func (a *Assertion) With(match func(*lancar.Call) bool, description string) *Assertion {
	if a.err != nil {
		return a
	}
	if description != "" {
		a.conditions = append(a.conditions, description)
	}
	kept := a.calls[:0:0]
	for _, c := range a.calls {
		if match(c) {
			kept = append(kept, c)
		}
	}
	a.calls = kept
	a.check(-1)
	return a
}

// Without narrows the candidates to calls not satisfying match and asserts.
func (a *Assertion) Without(match func(*lancar.Call) bool, description string) *Assertion {
	return a.With(func(c *lancar.Call) bool { return !match(c) }, description)
}

// Times asserts that exactly n candidates remain (for ShouldNotHaveCalled,
// that the count is not n).
func (a *Assertion) Times(n int) *Assertion {
	if a.err != nil {
		return a
	}
	if n < 0 {
		a.fail(&lancar.ArgumentError{Name: "n", Value: n, Err: lancar.ErrNegativeCount})
		return a
	}
	a.check(n)
	return a
}

func (a *Assertion) withURLPattern(pattern string) *Assertion {
	if pattern == "*" || pattern == "" {
		a.check(-1)
		return a
	}
	return a.With(func(c *lancar.Call) bool {
		return MatchWildcard(pattern, c.URL())
	}, "URL pattern "+pattern)
}

// WithVerb matches the HTTP method, case-insensitively.
func (a *Assertion) WithVerb(method string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		return strings.EqualFold(c.Method(), method)
	}, "verb "+strings.ToUpper(method))
}

func (a *Assertion) WithoutVerb(method string) *Assertion {
	return a.Without(func(c *lancar.Call) bool {
		return strings.EqualFold(c.Method(), method)
	}, "verb other than "+strings.ToUpper(method))
}

// WithQueryParam matches calls carrying the query parameter name.
func (a *Assertion) WithQueryParam(name string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		return hasQueryParam(c, name)
	}, "query parameter "+name)
}

// WithQueryParamValue matches calls where any value of name matches pattern.
func (a *Assertion) WithQueryParamValue(name, pattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		return queryParamMatches(c, name, pattern)
	}, fmt.Sprintf("query parameter %s=%s", name, pattern))
}

func (a *Assertion) WithoutQueryParam(name string) *Assertion {
	return a.Without(func(c *lancar.Call) bool {
		return hasQueryParam(c, name)
	}, "no query parameter "+name)
}

func (a *Assertion) WithoutQueryParamValue(name, pattern string) *Assertion {
	return a.Without(func(c *lancar.Call) bool {
		return queryParamMatches(c, name, pattern)
	}, fmt.Sprintf("no query parameter %s=%s", name, pattern))
}

// WithQueryParams matches calls carrying every named parameter.
func (a *Assertion) WithQueryParams(names ...string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		for _, name := range names {
			if !hasQueryParam(c, name) {
				return false
			}
		}
		return true
	}, "query parameters "+strings.Join(names, ", "))
}

// WithQueryParamValues matches calls where every pair's value pattern matches.
func (a *Assertion) WithQueryParamValues(params lancar.Values) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		for _, p := range params {
			if !queryParamMatches(c, p.Name, p.Value) {
				return false
			}
		}
		return true
	}, "query parameters "+params.Encode())
}

// WithoutQueryParams matches calls carrying none of the named parameters.
func (a *Assertion) WithoutQueryParams(names ...string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		for _, name := range names {
			if hasQueryParam(c, name) {
				return false
			}
		}
		return true
	}, "no query parameters "+strings.Join(names, ", "))
}

// WithHeader matches calls whose header name has a value matching pattern.
func (a *Assertion) WithHeader(name, pattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		return headerMatches(c, name, pattern)
	}, fmt.Sprintf("header %s: %s", name, pattern))
}

// WithoutHeader matches calls that do not send header name.
func (a *Assertion) WithoutHeader(name string) *Assertion {
	return a.Without(func(c *lancar.Call) bool {
		return headerMatches(c, name, "*")
	}, "no header "+name)
}

// WithContentType matches the Content-Type header against pattern.
func (a *Assertion) WithContentType(pattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		return headerMatches(c, "Content-Type", pattern)
	}, "content type "+pattern)
}

// WithRequestBody matches the request body text against pattern.
func (a *Assertion) WithRequestBody(pattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		return MatchWildcard(pattern, c.RequestBody)
	}, "body "+pattern)
}

// WithRequestJSON matches calls whose body is JSON equal to v once both are
// decoded, so key order and whitespace do not matter.
func (a *Assertion) WithRequestJSON(v interface{}) *Assertion {
	expected, err := json.Marshal(v)
	if err != nil {
		if a.err == nil {
			a.fail(fmt.Errorf("lancartest: serializing expected JSON: %w", err))
		}
		return a
	}
	return a.With(func(c *lancar.Call) bool {
		return jsonEqual(expected, []byte(c.RequestBody))
	}, "JSON body "+string(expected))
}

// WithRequestJSONPath matches calls whose JSON body has a value at path (gjson
// syntax) matching pattern.
func (a *Assertion) WithRequestJSONPath(path, pattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		if !gjson.Valid(c.RequestBody) {
			return false
		}
		res := gjson.Get(c.RequestBody, path)
		return res.Exists() && MatchWildcard(pattern, res.String())
	}, fmt.Sprintf("JSON %s=%s", path, pattern))
}

// WithBasicAuth matches Basic credentials, username and password each against
// its own pattern. A malformed credential does not match.
func (a *Assertion) WithBasicAuth(userPattern, passwordPattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		if c.HTTPRequest == nil {
			return false
		}
		user, pass, ok := c.HTTPRequest.BasicAuth()
		return ok && MatchWildcard(userPattern, user) && MatchWildcard(passwordPattern, pass)
	}, fmt.Sprintf("basic auth %s:%s", userPattern, passwordPattern))
}

// WithOAuthBearerToken matches a Bearer token against pattern.
func (a *Assertion) WithOAuthBearerToken(pattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		auth := header(c, "Authorization")
		const prefix = "Bearer "
		if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
			return false
		}
		return MatchWildcard(pattern, auth[len(prefix):])
	}, "OAuth bearer token "+pattern)
}

// WithCookie matches calls sending cookie name with a value matching pattern.
func (a *Assertion) WithCookie(name, pattern string) *Assertion {
	return a.With(func(c *lancar.Call) bool {
		if c.HTTPRequest == nil {
			return false
		}
		cookie, err := c.HTTPRequest.Cookie(name)
		return err == nil && MatchWildcard(pattern, cookie.Value)
	}, fmt.Sprintf("cookie %s=%s", name, pattern))
}

func (a *Assertion) check(expected int) {
	n := len(a.calls)
	pass := n > 0
	if expected >= 0 {
		pass = n == expected
	}
	if a.negated {
		pass = !pass
	}
	if pass {
		return
	}
	a.fail(&AssertionError{
		Conditions: append([]string(nil), a.conditions...),
		Expected:   expected,
		Actual:     n,
		Negated:    a.negated,
	})
}

func (a *Assertion) fail(err error) {
	a.err = err
	if a.t == nil {
		return
	}
	a.t.Helper()
	a.t.Errorf("%v", err)
	if f, ok := a.t.(interface{ FailNow() }); ok {
		f.FailNow()
	}
}

func hasQueryParam(c *lancar.Call, name string) bool {
	if c.HTTPRequest == nil || c.HTTPRequest.URL == nil {
		return false
	}
	_, ok := c.HTTPRequest.URL.Query()[name]
	return ok
}

func queryParamMatches(c *lancar.Call, name, pattern string) bool {
	if c.HTTPRequest == nil || c.HTTPRequest.URL == nil {
		return false
	}
	for _, v := range c.HTTPRequest.URL.Query()[name] {
		if MatchWildcard(pattern, v) {
			return true
		}
	}
	return false
}

func header(c *lancar.Call, name string) string {
	if c.HTTPRequest == nil {
		return ""
	}
	return c.HTTPRequest.Header.Get(name)
}

func headerMatches(c *lancar.Call, name, pattern string) bool {
	if c.HTTPRequest == nil {
		return false
	}
	for _, v := range c.HTTPRequest.Header.Values(http.CanonicalHeaderKey(name)) {
		if MatchWildcard(pattern, v) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b []byte) bool {
	var x, y interface{}
	if err := json.Unmarshal(a, &x); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &y); err != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}
