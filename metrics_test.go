package panelbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollectorNilIsNoOp(t *testing.T) {
	var mc *MetricsCollector
	mc.RecordRequest("GET", "/api/users", 200, time.Millisecond)
	mc.RecordRequestStart("GET", "/api/users")
	mc.RecordRequestEnd("GET", "/api/users")
	mc.RecordRetry("GET", "/api/users", 1)
	mc.RecordRateLimitRejection(ClassAPI)
	mc.RecordCircuitBreakerState("default", StateOpen)
	mc.RecordAuthRefresh(BackendASPNet, true)
	mc.RecordRetryBudgetExceeded("/api/users")
	mc.RecordError("Server", "GET", "/api/users")
}

func TestMetricsCollectorRecords(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordRequest("GET", "/api/users", 200, 50*time.Millisecond)
	mc.RecordRequest("GET", "/api/users", 200, 70*time.Millisecond)
	mc.RecordRetry("GET", "/api/users", 1)
	mc.RecordRateLimitRejection(ClassLogin)
	mc.RecordCircuitBreakerState("default", StateOpen)
	mc.RecordAuthRefresh(BackendASPNet, false)
	mc.RecordError("Server", "GET", "/api/users")

	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("GET", "200", "/api/users")); got != 2 {
		t.Errorf("requestsTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(mc.retriesTotal.WithLabelValues("GET", "/api/users", "1")); got != 1 {
		t.Errorf("retriesTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.rateLimitRejections.WithLabelValues("login")); got != 1 {
		t.Errorf("rateLimitRejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.circuitBreakerState.WithLabelValues("default")); got != 1 {
		t.Errorf("circuitBreakerState = %v, want 1 (open)", got)
	}
	if got := testutil.ToFloat64(mc.authRefreshTotal.WithLabelValues("aspnet", "failure")); got != 1 {
		t.Errorf("authRefreshTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.errorsTotal.WithLabelValues("Server", "GET", "/api/users")); got != 1 {
		t.Errorf("errorsTotal = %v, want 1", got)
	}
}

func TestMetricsCollectorInFlightGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)

	mc.RecordRequestStart("GET", "/api/users")
	mc.RecordRequestStart("GET", "/api/users")
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "/api/users")); got != 2 {
		t.Errorf("requestsInFlight = %v, want 2", got)
	}

	mc.RecordRequestEnd("GET", "/api/users")
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "/api/users")); got != 1 {
		t.Errorf("requestsInFlight after end = %v, want 1", got)
	}
}

func TestClientRecordsMetrics(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"message":"warming up"}`))
			return
		}
		w.Write([]byte(`{"result":{}}`))
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	mc := NewMetricsCollectorWithRegistry(registry)
	client := New(
		WithBaseURL(server.URL),
		WithRetryConfig(fastRetry(2)),
		WithMetricsCollector(mc),
	)

	if _, err := client.Do(context.Background(), Endpoint{Path: "/api/users"}, nil); err != nil {
		t.Fatalf("Do returned error: %v", err)
	}

	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("GET", "200", "/api/users")); got != 1 {
		t.Errorf("requestsTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.retriesTotal.WithLabelValues("GET", "/api/users", "1")); got != 1 {
		t.Errorf("retriesTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "/api/users")); got != 0 {
		t.Errorf("requestsInFlight after settle = %v, want 0", got)
	}
}
