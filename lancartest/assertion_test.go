package lancartest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambiyansyah-risyal/lancar"
)

type newUser struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// seedCalls makes a POST with a JSON body, basic auth, a header and query
// parameters, then a GET with a bearer token and a cookie.
func seedCalls(t *testing.T) (*HTTPTest, *recordingT) {
	t.Helper()
	ht, rt := newTest(t)
	client := lancar.NewClient(lancar.WithBaseURL("http://api.example.com"))
	ctx := context.Background()

	req, err := client.Request("users")
	require.NoError(t, err)
	_, err = req.
		SetQueryParam("page", "2").
		SetQueryParam("tag", "a").
		WithHeader("X-Tenant", "acme").
		WithBasicAuth("user", "pa55").
		PostJSON(ctx, newUser{Name: "ann", Age: 3})
	require.NoError(t, err)

	req, err = client.Request("users", "1")
	require.NoError(t, err)
	_, err = req.
		WithOAuthBearerToken("tok-123").
		WithCookie("sid", "abc").
		Get(ctx)
	require.NoError(t, err)

	return ht, rt
}

func TestAssertionChainPasses(t *testing.T) {
	ht, rt := seedCalls(t)

	a := ht.ShouldHaveCalled("http://api.example.com/users*").
		WithVerb("post").
		WithQueryParam("page").
		WithQueryParamValue("tag", "a").
		WithQueryParams("page", "tag").
		WithQueryParamValues(lancar.Values{{Name: "page", Value: "2"}}).
		WithHeader("x-tenant", "ac*").
		WithContentType("application/json*").
		WithRequestJSON(map[string]interface{}{"age": 3, "name": "ann"}).
		WithRequestJSONPath("name", "a*").
		WithRequestBody(`*"ann"*`).
		WithBasicAuth("user", "p*").
		Times(1)

	assert.NoError(t, a.Err())
	assert.Equal(t, 0, rt.count())
	require.Len(t, a.Calls(), 1)
	assert.Equal(t, "POST", a.Calls()[0].Method())
}

func TestAssertionWithoutPredicates(t *testing.T) {
	ht, rt := seedCalls(t)

	ht.ShouldHaveCalled("*").WithoutVerb("POST").Times(1)
	ht.ShouldHaveCalled("*").WithoutHeader("X-Tenant").WithOAuthBearerToken("tok-*").Times(1)
	ht.ShouldHaveCalled("*").WithoutQueryParam("page").WithCookie("sid", "abc").Times(1)
	ht.ShouldHaveCalled("*").WithoutQueryParams("page", "tag").Times(1)
	ht.ShouldHaveCalled("*").WithoutQueryParamValue("tag", "b").Times(2)
	ht.ShouldHaveMadeACall().Times(2)

	assert.Equal(t, 0, rt.count())
}

func TestAssertionFailureReportsConditions(t *testing.T) {
	ht, rt := seedCalls(t)

	a := ht.ShouldHaveCalled("http://api.example.com/users*").WithVerb("PUT").WithHeader("X-Never", "*")

	var assertErr *AssertionError
	require.ErrorAs(t, a.Err(), &assertErr)
	assert.Equal(t, []string{"URL pattern http://api.example.com/users*", "verb PUT"}, assertErr.Conditions)
	assert.Equal(t, 0, assertErr.Actual)
	assert.Equal(t,
		"lancartest: expected any calls to be made with URL pattern http://api.example.com/users* and verb PUT, but no matching calls were made",
		a.Err().Error())
	assert.Equal(t, 1, rt.count(), "later predicates do not report again")
}

func TestAssertionTimes(t *testing.T) {
	ht, rt := seedCalls(t)

	a := ht.ShouldHaveCalled("*/users*").Times(3)

	var assertErr *AssertionError
	require.ErrorAs(t, a.Err(), &assertErr)
	assert.Equal(t, 3, assertErr.Expected)
	assert.Equal(t, 2, assertErr.Actual)
	assert.Contains(t, a.Err().Error(), "expected 3 calls to be made")
	assert.Contains(t, a.Err().Error(), "but 2 matching calls were made")
	assert.Equal(t, 1, rt.count())
}

func TestAssertionNegativeTimes(t *testing.T) {
	ht, rt := seedCalls(t)

	a := ht.ShouldHaveCalled("*").Times(-1)

	var argErr *lancar.ArgumentError
	require.ErrorAs(t, a.Err(), &argErr)
	assert.True(t, errors.Is(a.Err(), lancar.ErrNegativeCount))
	assert.Equal(t, 1, rt.count())
}

func TestShouldNotHaveCalled(t *testing.T) {
	ht, rt := seedCalls(t)

	assert.NoError(t, ht.ShouldNotHaveCalled("*/orders*").Err())
	assert.NoError(t, ht.ShouldNotHaveCalled("*/orders*").WithVerb("GET").Err())
	assert.Equal(t, 0, rt.count())

	// every step asserts nothing matches so far
	a := ht.ShouldNotHaveCalled("*/users/1").WithVerb("DELETE")

	var assertErr *AssertionError
	require.ErrorAs(t, a.Err(), &assertErr)
	assert.True(t, assertErr.Negated)
	assert.Equal(t, 1, assertErr.Actual)
	assert.Contains(t, a.Err().Error(), "expected no calls to be made with URL pattern */users/1")
	assert.Equal(t, 1, rt.count())
}

func TestShouldNotHaveCalledWithNoCalls(t *testing.T) {
	ht, rt := newTest(t)

	ht.ShouldNotHaveCalled("*")
	ht.ShouldNotHaveCalled("*").Times(2)
	assert.Equal(t, 0, rt.count())

	assert.Error(t, ht.ShouldHaveMadeACall().Err())
	assert.Equal(t, 1, rt.count())
}

func TestWithBasicAuthMalformedCredentialDoesNotMatch(t *testing.T) {
	ht, _ := newTest(t)

	req, err := lancar.NewClient().NewRequest("http://api.example.com")
	require.NoError(t, err)
	_, err = req.WithHeader("Authorization", "Basic %%%not-base64").Get(context.Background())
	require.NoError(t, err)

	assert.Error(t, ht.ShouldHaveMadeACall().WithBasicAuth("*", "*").Err())
}

func TestWithRequestJSONPathIgnoresNonJSONBodies(t *testing.T) {
	ht, _ := newTest(t)

	req, err := lancar.NewClient().NewRequest("http://api.example.com")
	require.NoError(t, err)
	_, err = req.PostString(context.Background(), "name=ann")
	require.NoError(t, err)

	assert.Error(t, ht.ShouldHaveMadeACall().WithRequestJSONPath("name", "*").Err())
	assert.NoError(t, ht.ShouldHaveMadeACall().WithContentType("text/plain*").WithRequestBody("name=*").Err())
}

func TestWithRequestJSONUnserializableExpectation(t *testing.T) {
	ht, rt := seedCalls(t)

	a := ht.ShouldHaveMadeACall().WithRequestJSON(make(chan int))

	assert.Error(t, a.Err())
	assert.Equal(t, 1, rt.count())
}

func TestCustomPredicate(t *testing.T) {
	ht, rt := seedCalls(t)

	ht.ShouldHaveMadeACall().With(func(c *lancar.Call) bool {
		d, ok := c.Duration()
		return ok && d >= 0
	}, "a recorded duration").Times(2)

	assert.Equal(t, 0, rt.count())
}

func TestAssertionErrorMessages(t *testing.T) {
	tests := []struct {
		err  AssertionError
		want string
	}{
		{
			AssertionError{Expected: 1, Actual: 0},
			"lancartest: expected 1 call to be made, but no matching calls were made",
		},
		{
			AssertionError{Conditions: []string{"verb GET"}, Expected: 0, Actual: 1},
			"lancartest: expected 0 calls to be made with verb GET, but 1 matching call was made",
		},
		{
			AssertionError{Expected: 2, Actual: 2, Negated: true},
			"lancartest: expected any number of calls other than 2 to be made, but 2 matching calls were made",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}
