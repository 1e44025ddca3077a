package proxy

import (
	"net/http"
	"testing"
)

func TestParseRateLimitHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Bucket", "abcd1234")
	h.Set("X-RateLimit-Limit", "10")
	h.Set("X-RateLimit-Remaining", "7")
	h.Set("X-RateLimit-Reset-After", "2.5")
	h.Set("X-RateLimit-Scope", "shared")

	rl := parseRateLimitHeaders(h)

	if rl.Bucket != "abcd1234" || rl.Limit != 10 || rl.Remaining != 7 {
		t.Fatalf("unexpected parse: %+v", rl)
	}
	if rl.Scope != "shared" {
		t.Fatalf("expected shared scope, got %q", rl.Scope)
	}
	if rl.ResetAt.IsZero() {
		t.Fatal("expected ResetAt to be set")
	}
}

func TestParseRateLimitHeadersGlobalRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Global", "true")
	h.Set("Retry-After", "1.2")

	rl := parseRateLimitHeaders(h)
	if !rl.Global {
		t.Fatal("expected Global true")
	}
	if rl.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", rl.RetryAfter)
	}
}

func TestParseRateLimitHeadersEmpty(t *testing.T) {
	rl := parseRateLimitHeaders(http.Header{})
	if rl != nil {
		t.Fatalf("expected nil for a response with no rate-limit headers, got %+v", rl)
	}
}

func TestStripHopByHop(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "keep-alive")
	h.Set("X-Custom", "keep-me")

	stripHopByHop(h)

	if h.Get("Connection") != "" {
		t.Fatal("expected Connection header stripped")
	}
	if h.Get("X-Custom") != "keep-me" {
		t.Fatal("expected non-hop-by-hop header preserved")
	}
}
