// Package proxy implements the request pipeline that sits between an
// incoming HTTP request and the Discord REST API: classify the route,
// acquire a rate-limit ticket, rewrite and forward the request, then feed
// the response's rate-limit headers back to the ticket.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mtreilly/discord-http-proxy/internal/metrics"
	"github.com/mtreilly/discord-http-proxy/internal/ratelimit"
	"github.com/mtreilly/discord-http-proxy/internal/route"
	"github.com/mtreilly/discord-http-proxy/logger"
)

// Config controls the pipeline's non-ratelimit behavior.
type Config struct {
	UpstreamBaseURL string // e.g. "https://discord.com"
	RequestTimeout  time.Duration
	Pool            PoolConfig
}

func (c Config) withDefaults() Config {
	if c.UpstreamBaseURL == "" {
		c.UpstreamBaseURL = "https://discord.com"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	return c
}

// Handler is the proxy's http.Handler: it owns the upstream transport, the
// per-token ratelimiter map, and the metrics registry.
type Handler struct {
	cfg          Config
	ratelimiters *ratelimit.RatelimiterMap
	upstream     *http.Client
	metrics      *metrics.Registry
	log          *logger.Logger
}

// NewHandler wires a pipeline. rlMap and reg must already be constructed;
// the handler does not own their lifecycle.
func NewHandler(cfg Config, rlMap *ratelimit.RatelimiterMap, reg *metrics.Registry, log *logger.Logger) *Handler {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		cfg:          cfg,
		ratelimiters: rlMap,
		upstream:     &http.Client{Transport: newPooledTransport(cfg.Pool)},
		metrics:      reg,
		log:          log,
	}
}

var methodWhitelist = map[string]bool{
	http.MethodDelete: true,
	http.MethodGet:    true,
	http.MethodPatch:  true,
	http.MethodPost:   true,
	http.MethodPut:    true,
}

// ServeHTTP implements http.Handler. /metrics is carved out before any
// ratelimit or proxying logic runs, mirroring the original proxy's
// service closure special-casing the metrics path ahead of handle_request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.metrics != nil && r.URL.Path == "/metrics" {
		h.metrics.Handler().ServeHTTP(w, r)
		return
	}

	if err := h.handle(w, r); err != nil {
		h.log.Error("proxy.request_failed", "error", err.Error(), "path", r.URL.Path, "method", r.Method)
		writeError(w, err)
	}
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) error {
	if !methodWhitelist[r.Method] {
		return newError(InvalidMethod, r.Method, nil)
	}

	apiPath, trimmedPath := NormalizePath(r.URL.Path)
	rt := route.Classify(r.Method, trimmedPath)

	rl, token := h.ratelimiters.GetOrInsert(r.Header.Get("Authorization"))

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	waitStart := time.Now()
	ticket, err := rl.Ticket(ctx, rt.Key)
	if h.metrics != nil {
		h.metrics.ObserveBucketWait(rt.Name, time.Since(waitStart))
	}
	if err != nil {
		return newError(AcquiringTicket, rt.Key, err)
	}

	upstreamReq, err := h.buildUpstreamRequest(r, apiPath, trimmedPath, string(token))
	if err != nil {
		ticket.Deliver(nil)
		return newError(InvalidURI, apiPath+trimmedPath, err)
	}
	// The upstream round trip runs under the same RequestTimeout deadline.
	upstreamReq = upstreamReq.WithContext(ctx)

	dispatched := time.Now()
	resp, err := h.upstream.Do(upstreamReq)
	took := time.Since(dispatched)
	if err != nil {
		ticket.Deliver(nil)
		return newError(RequestIssue, trimmedPath, err)
	}
	defer resp.Body.Close()

	headers := parseRateLimitHeaders(resp.Header)
	if delivErr := ticket.Deliver(headers); delivErr != nil {
		h.log.Warn("proxy.ticket_deliver_failed", "error", delivErr.Error(), "route", rt.Key)
	}

	var scope ratelimit.Scope
	if headers != nil {
		scope = headers.Scope
		if headers.Global && resp.StatusCode == http.StatusTooManyRequests && h.metrics != nil {
			h.metrics.IncGlobalRateLimit()
		}
	}

	copyResponse(w, resp)

	if h.metrics != nil {
		h.metrics.ObserveRequest(r.Method, rt.Name, string(scope), resp.StatusCode, took)
	}
	h.log.Debug("proxy.request", "method", r.Method, "route", rt.Name, "path", r.URL.Path, "status", resp.StatusCode)

	return nil
}

// buildUpstreamRequest rewrites an incoming request into one addressed at
// Discord: Authorization is replaced with the resolved token, Host is set
// to the upstream host, hop-by-hop headers are stripped, and the URI is
// reconstructed from the normalized api/version prefix plus the remaining
// path and the original query string.
func (h *Handler) buildUpstreamRequest(r *http.Request, apiPath, trimmedPath, token string) (*http.Request, error) {
	u, err := url.Parse(h.cfg.UpstreamBaseURL + apiPath + trimmedPath)
	if err != nil {
		return nil, err
	}
	u.RawQuery = r.URL.RawQuery

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), r.Body)
	if err != nil {
		return nil, err
	}

	upstreamReq.Header = r.Header.Clone()
	stripHopByHop(upstreamReq.Header)
	upstreamReq.Header.Set("Authorization", token)
	upstreamReq.Host = u.Host
	upstreamReq.ContentLength = r.ContentLength

	return upstreamReq, nil
}

func copyResponse(w http.ResponseWriter, resp *http.Response) {
	dst := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	stripHopByHop(dst)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func writeError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		reqErr.writeJSON(w)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
