package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRegistryServesPrometheusFormat(t *testing.T) {
	reg := New("", 0, func() float64 { return 3 })
	reg.ObserveRequest("GET", "Channel message", "shared", 200, 12*time.Millisecond)
	reg.ObserveBucketWait("Channel message", 5*time.Millisecond)
	reg.IncGlobalRateLimit()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"discord_proxy_requests_total",
		"discord_proxy_bucket_wait_seconds",
		"discord_proxy_global_rate_limit_total",
		"discord_proxy_ratelimiter_cache_size",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q", want)
		}
	}
}

func TestRegistryAppliesNamespacePrefix(t *testing.T) {
	reg := New("myproxy", 0, func() float64 { return 0 })
	reg.ObserveRequest("GET", "Channel", "", 200, time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "myproxy_discord_proxy_requests_total") {
		t.Fatalf("expected namespaced metric name, got:\n%s", rec.Body.String())
	}
}

func TestRegistryDropsIdleSeries(t *testing.T) {
	reg := New("", 10*time.Millisecond, func() float64 { return 0 })
	defer reg.Close()
	reg.ObserveRequest("GET", "Channel", "shared", 200, time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest("GET", "/metrics", nil)
		rec := httptest.NewRecorder()
		reg.Handler().ServeHTTP(rec, req)
		if !strings.Contains(rec.Body.String(), `method="GET",route="Channel",status="200"`) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected idle series to be dropped within the timeout")
}
