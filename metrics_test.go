package lancar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	if collector == nil {
		t.Fatal("NewMetricsCollectorWithRegistry() returned nil")
	}

	if collector.requestsTotal == nil {
		t.Error("requestsTotal metric not initialized")
	}

	if collector.requestDuration == nil {
		t.Error("requestDuration metric not initialized")
	}

	if collector.requestsInFlight == nil {
		t.Error("requestsInFlight metric not initialized")
	}

	if collector.errorsTotal == nil {
		t.Error("errorsTotal metric not initialized")
	}

	if collector.factoryClients == nil {
		t.Error("factoryClients metric not initialized")
	}

	if collector.GetRegistry() != registry {
		t.Error("Registry not set correctly")
	}
}

func TestRecordRequest(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordRequest("GET", "example.com", 200, 100*time.Millisecond)
	collector.RecordRequest("GET", "example.com", 200, 50*time.Millisecond)

	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "200", "example.com")); got != 2 {
		t.Errorf("Expected 2 requests recorded, got %v", got)
	}
}

func TestRecordRequestInFlight(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordRequestStart("GET", "example.com")
	collector.RecordRequestStart("GET", "example.com")
	collector.RecordRequestEnd("GET", "example.com")

	if got := testutil.ToFloat64(collector.requestsInFlight.WithLabelValues("GET", "example.com")); got != 1 {
		t.Errorf("Expected 1 request in flight, got %v", got)
	}
}

func TestRecordErrorAndFactoryClients(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	collector.RecordError(ErrorTypeTimeout, "GET", "example.com")
	collector.RecordFactoryClients("default", 3)

	if got := testutil.ToFloat64(collector.errorsTotal.WithLabelValues(ErrorTypeTimeout, "GET", "example.com")); got != 1 {
		t.Errorf("Expected 1 timeout error, got %v", got)
	}
	if got := testutil.ToFloat64(collector.factoryClients.WithLabelValues("default")); got != 3 {
		t.Errorf("Expected 3 factory clients, got %v", got)
	}
}

func TestNilMetricsCollector(t *testing.T) {
	var collector *MetricsCollector

	// Every method must be safe on a nil collector
	collector.RecordRequest("GET", "example.com", 200, time.Second)
	collector.RecordRequestStart("GET", "example.com")
	collector.RecordRequestEnd("GET", "example.com")
	collector.RecordError(ErrorTypeTransport, "GET", "example.com")
	collector.RecordFactoryClients("default", 1)

	if collector.GetRegistry() != nil {
		t.Error("Expected nil registry")
	}
}

func TestClientRecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := NewClient(WithBaseURL(server.URL), WithMetricsCollector(collector))
	host := mustHost(t, server.URL)

	req, _ := client.Request("ok")
	if _, err := req.Get(context.Background()); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	req, _ = client.Request("fail")
	if _, err := req.Get(context.Background()); err == nil {
		t.Fatal("Expected status error")
	}

	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "200", host)); got != 1 {
		t.Errorf("Expected one 200 recorded, got %v", got)
	}
	if got := testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "500", host)); got != 1 {
		t.Errorf("Expected one 500 recorded, got %v", got)
	}
	if got := testutil.ToFloat64(collector.errorsTotal.WithLabelValues(ErrorTypeStatus, "GET", host)); got != 1 {
		t.Errorf("Expected one status error recorded, got %v", got)
	}
	if got := testutil.ToFloat64(collector.requestsInFlight.WithLabelValues("GET", host)); got != 0 {
		t.Errorf("Expected no requests in flight, got %v", got)
	}
}

func TestFactoryRecordsClients(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	factory := NewClientFactory(WithFactoryName("test"), WithFactoryMetrics(collector))

	_, _ = factory.Get("http://a.example.com")
	_, _ = factory.Get("http://b.example.com")

	if got := testutil.ToFloat64(collector.factoryClients.WithLabelValues("test")); got != 2 {
		t.Errorf("Expected 2 cached clients, got %v", got)
	}

	_ = factory.Close()
	if got := testutil.ToFloat64(collector.factoryClients.WithLabelValues("test")); got != 0 {
		t.Errorf("Expected 0 cached clients after Close, got %v", got)
	}
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u.Host
}
