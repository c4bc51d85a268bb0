package lancar

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func testResponse(body string, header http.Header) (*Response, *trackingBody) {
	tb := &trackingBody{Reader: strings.NewReader(body)}
	if header == nil {
		header = http.Header{}
	}
	raw := &http.Response{StatusCode: 200, Status: "200 OK", Header: header, Body: tb}
	return newResponse(&Call{ID: "c"}, raw), tb
}

func TestResponseBodyReadOnceAndCached(t *testing.T) {
	resp, body := testResponse("hello", nil)

	first, err := resp.Text()
	require.NoError(t, err)
	second, err := resp.Text()
	require.NoError(t, err)
	b, err := resp.Bytes()
	require.NoError(t, err)

	assert.Equal(t, "hello", first)
	assert.Equal(t, first, second)
	assert.Equal(t, []byte("hello"), b)
	assert.True(t, body.closed)
}

func TestResponseStreamForfeitsLaterReads(t *testing.T) {
	resp, _ := testResponse("hello", nil)

	stream, err := resp.Stream()
	require.NoError(t, err)
	data, _ := io.ReadAll(stream)
	assert.Equal(t, "hello", string(data))

	text, err := resp.Text()
	assert.NoError(t, err)
	assert.Empty(t, text)

	var v map[string]interface{}
	assert.NoError(t, resp.JSON(&v))
	assert.Nil(t, v)

	again, err := resp.Stream()
	assert.NoError(t, err)
	assert.Nil(t, again)
}

func TestResponseStreamAfterRead(t *testing.T) {
	resp, _ := testResponse("hello", nil)
	_, _ = resp.Text()

	stream, err := resp.Stream()
	require.NoError(t, err)
	data, _ := io.ReadAll(stream)
	assert.Equal(t, "hello", string(data))
}

func TestResponseJSON(t *testing.T) {
	resp, _ := testResponse(`{"name":"lancar","stars":5}`, nil)

	type repo struct {
		Name  string `json:"name"`
		Stars int    `json:"stars"`
	}
	got, err := DecodeJSON[repo](resp)
	require.NoError(t, err)
	assert.Equal(t, repo{Name: "lancar", Stars: 5}, got)

	// decoding again replays the cached body
	again, err := DecodeJSON[map[string]interface{}](resp)
	require.NoError(t, err)
	assert.Equal(t, "lancar", again["name"])
}

func TestResponseJSONParseError(t *testing.T) {
	resp, _ := testResponse("<html>oops</html>", nil)

	var v map[string]string
	err := resp.JSON(&v)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
	assert.Equal(t, "<html>oops</html>", parseErr.Body)
	assert.Same(t, resp.Call(), parseErr.Call)

	text, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, "<html>oops</html>", text, "raw text stays readable after a parse failure")
}

func TestResponseHeaders(t *testing.T) {
	header := http.Header{}
	header.Add("Content-Type", "application/json")
	header.Add("X-Multi", "a")
	header.Add("X-Multi", "b")
	header.Add("Set-Cookie", "sid=1; Path=/")
	resp, _ := testResponse("", header)

	headers := resp.Headers()
	assert.Equal(t, "a, b", headers["X-Multi"])
	assert.Equal(t, "application/json", resp.Header("content-type"))
	assert.Equal(t, "a, b", resp.Header("x-multi"))
	assert.Empty(t, resp.Header("missing"))

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
}

func TestResponseClose(t *testing.T) {
	resp, body := testResponse("unused", nil)

	require.NoError(t, resp.Close())
	assert.True(t, body.closed)
	assert.NoError(t, resp.Close())
}

func TestResponseStatus(t *testing.T) {
	resp, _ := testResponse("", nil)

	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "200 OK", resp.Status())
	assert.NotNil(t, resp.Raw())
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

func TestResponseReadErrorIsSticky(t *testing.T) {
	raw := &http.Response{StatusCode: 200, Header: http.Header{}, Body: failingBody{}}
	resp := newResponse(&Call{}, raw)

	_, err1 := resp.Bytes()
	_, err2 := resp.Text()
	assert.Error(t, err1)
	assert.Equal(t, err1, err2)
}

func TestResponseHeadersReturnsCopy(t *testing.T) {
	header := http.Header{}
	header.Set("X-Trace", "t1")
	resp, _ := testResponse("", header)

	headers := resp.Headers()
	headers["X-Trace"] = "changed"
	delete(headers, "X-Trace")
	headers["X-Added"] = "1"

	assert.Equal(t, "t1", resp.Header("X-Trace"))
	assert.Empty(t, resp.Header("X-Added"))
	assert.Equal(t, map[string]string{"X-Trace": "t1"}, resp.Headers())
}

func TestResponseTryJSON(t *testing.T) {
	resp, _ := testResponse(`{"id":7}`, nil)
	var ok struct{ ID int }
	assert.True(t, resp.TryJSON(&ok))
	assert.Equal(t, 7, ok.ID)

	bad, _ := testResponse("not json", nil)
	var v map[string]interface{}
	assert.False(t, bad.TryJSON(&v))
	text, err := bad.Text()
	require.NoError(t, err)
	assert.Equal(t, "not json", text)
}

func TestDecodeJSONOrDefault(t *testing.T) {
	type user struct {
		Name string `json:"name"`
	}

	resp, _ := testResponse(`{"name":"ann"}`, nil)
	assert.Equal(t, user{Name: "ann"}, DecodeJSONOrDefault(resp, user{Name: "fallback"}))

	empty, _ := testResponse("", nil)
	assert.Equal(t, user{}, DecodeJSONOrDefault(empty, user{}))
	assert.Nil(t, DecodeJSONOrDefault[map[string]interface{}](empty, nil))

	bad, _ := testResponse("<html>", nil)
	assert.Equal(t, user{Name: "fallback"}, DecodeJSONOrDefault(bad, user{Name: "fallback"}))
	text, err := bad.Text()
	require.NoError(t, err)
	assert.Equal(t, "<html>", text)
}
