package proxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mtreilly/discord-http-proxy/internal/ratelimit"
)

// hopByHopHeaders are connection-scoped headers that must never be
// forwarded between the proxy and either side of it.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func stripHopByHop(h http.Header) {
	for _, k := range hopByHopHeaders {
		h.Del(k)
	}
}

// parseRateLimitHeaders extracts Discord's X-RateLimit-* response headers
// (and Retry-After, present on 429s) into the ratelimit package's wire
// format. A response carrying none of these headers (e.g. /gateway,
// /gateway/bot) yields nil, the bucket's "no headers" sentinel, rather than
// a zero-value Headers — a zero-value Remaining of 0 would otherwise wedge
// that route's bucket at zero capacity forever.
func parseRateLimitHeaders(h http.Header) *ratelimit.Headers {
	bucket := h.Get("X-RateLimit-Bucket")
	limit := parseIntHeader(h, "X-RateLimit-Limit")
	remaining := parseIntHeader(h, "X-RateLimit-Remaining")
	resetAfter := parseFloatHeader(h, "X-RateLimit-Reset-After")
	global := h.Get("X-RateLimit-Global") == "true"

	if bucket == "" && limit == 0 && remaining == 0 && resetAfter == 0 && !global {
		return nil
	}

	out := &ratelimit.Headers{
		Bucket:    bucket,
		Limit:     limit,
		Remaining: remaining,
		Scope:     ratelimit.Scope(h.Get("X-RateLimit-Scope")),
		Global:    global,
	}

	if resetAfter > 0 {
		out.ResetAt = time.Now().Add(durationFromSeconds(resetAfter))
	}

	if retryAfter := parseFloatHeader(h, "Retry-After"); retryAfter > 0 {
		out.RetryAfter = durationFromSeconds(retryAfter)
	}

	return out
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseIntHeader(h http.Header, key string) int {
	v := h.Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func parseFloatHeader(h http.Header, key string) float64 {
	v := h.Get(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
