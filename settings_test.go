package lancar

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetGlobal restores the global layer when the test ends.
func resetGlobal(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { GlobalSettings().Reset() })
}

func TestSettingsDefaults(t *testing.T) {
	s := newSettingsLayer(nil)

	assert.Equal(t, DefaultTimeout, s.Timeout())
	assert.True(t, s.CookiesEnabled())
	assert.Empty(t, s.AllowedHTTPStatus())
	assert.IsType(t, JSONSerializer{}, s.JSONSerializer())
	assert.IsType(t, FormSerializer{}, s.FormSerializer())
	assert.Nil(t, s.BeforeCall())
	assert.Nil(t, s.AfterCall())
	assert.Nil(t, s.OnError())
	assert.NotNil(t, s.TransportFactory())
	assert.Equal(t, NopLogger(), s.Logger())
	assert.Nil(t, s.Metrics())
}

func TestSettingsLookupFallsBackToParent(t *testing.T) {
	parent := newSettingsLayer(nil)
	child := newSettingsLayer(parent)

	parent.SetAllowedHTTPStatus("404")
	assert.Equal(t, "404", child.AllowedHTTPStatus(), "unset child option defers to parent")
	assert.False(t, child.IsSet(SettingAllowedHTTPStatus))

	child.SetAllowedHTTPStatus("5xx")
	assert.Equal(t, "5xx", child.AllowedHTTPStatus())
	assert.Equal(t, "404", parent.AllowedHTTPStatus(), "set writes to the receiving layer only")

	child.Unset(SettingAllowedHTTPStatus)
	assert.Equal(t, "404", child.AllowedHTTPStatus())
}

func TestSettingsCopyOnCreate(t *testing.T) {
	parent := newSettingsLayer(nil)
	parent.SetTimeout(5 * time.Second)

	child := newSettingsLayer(parent)
	require.True(t, child.IsSet(SettingTimeout))

	parent.SetTimeout(time.Minute)
	assert.Equal(t, 5*time.Second, child.Timeout(), "child keeps the value copied at creation")

	parent.Reset()
	assert.Equal(t, 5*time.Second, child.Timeout(), "reset never reaches values a child captured")
	assert.Equal(t, DefaultTimeout, parent.Timeout())

	late := newSettingsLayer(parent)
	assert.Equal(t, DefaultTimeout, late.Timeout(), "a layer created after reset sees defaults")
}

func TestGlobalResetDoesNotAffectClients(t *testing.T) {
	resetGlobal(t)

	GlobalSettings().SetTimeout(3 * time.Second)
	c := NewClient()
	GlobalSettings().Reset()

	assert.Equal(t, 3*time.Second, c.Settings().Timeout())
	assert.Equal(t, DefaultTimeout, NewClient().Settings().Timeout())
}

func TestSettingsThreeTiers(t *testing.T) {
	resetGlobal(t)

	GlobalSettings().SetAllowedHTTPStatus("404")
	c := NewClient(WithBaseURL("http://example.com"))
	c.SetTimeout(2 * time.Second)

	req, err := c.Request("a")
	require.NoError(t, err)
	req = req.WithTimeout(time.Second)

	assert.Equal(t, time.Second, req.Settings().Timeout())
	assert.Equal(t, 2*time.Second, c.Settings().Timeout())
	assert.Equal(t, "404", req.Settings().AllowedHTTPStatus())
	assert.True(t, req.Settings().CookiesEnabled())
}

func TestSettingsHooksAndTransportFactory(t *testing.T) {
	s := newSettingsLayer(nil)

	var fired []string
	s.SetBeforeCall(func(*Call) { fired = append(fired, "before") }).
		SetAfterCall(func(*Call) { fired = append(fired, "after") }).
		SetOnError(func(*Call) { fired = append(fired, "error") })

	s.BeforeCall()(nil)
	s.AfterCall()(nil)
	s.OnError()(nil)
	assert.Equal(t, []string{"before", "after", "error"}, fired)

	rt := RoundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	s.SetTransportFactory(func() http.RoundTripper { return rt })
	assert.NotNil(t, s.TransportFactory()())
}

func TestSettingsConcurrentAccess(t *testing.T) {
	parent := newSettingsLayer(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			parent.SetTimeout(time.Duration(i) * time.Second)
		}(i)
		go func() {
			defer wg.Done()
			child := newSettingsLayer(parent)
			_ = child.Timeout()
			_ = child.CookiesEnabled()
		}()
	}
	wg.Wait()
}

func TestSettingKeyString(t *testing.T) {
	assert.Equal(t, "Timeout", SettingTimeout.String())
	assert.Equal(t, "Metrics", SettingMetrics.String())
	assert.Equal(t, "Unknown", SettingKey(99).String())
}

func TestSettingsMaxRedirects(t *testing.T) {
	s := newSettingsLayer(nil)
	assert.Equal(t, DefaultMaxRedirects, s.MaxRedirects())

	s.SetMaxRedirects(3)
	assert.Equal(t, 3, newSettingsLayer(s).MaxRedirects())

	s.SetMaxRedirects(-1)
	assert.Equal(t, 0, s.MaxRedirects())
	assert.Equal(t, "MaxRedirects", SettingMaxRedirects.String())
}
