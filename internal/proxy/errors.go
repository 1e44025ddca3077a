package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind enumerates the ways a request through the proxy can fail. Each kind
// maps to a fixed HTTP status code returned to the caller.
type Kind int

const (
	// AcquiringTicket: the ratelimiter could not grant a ticket (context
	// cancelled while queued, or the bucket was torn down mid-wait).
	AcquiringTicket Kind = iota
	// InvalidMethod: the incoming request used a method Discord's REST API
	// never accepts (only DELETE/GET/PATCH/POST/PUT are forwarded).
	InvalidMethod
	// InvalidPath: the normalized path did not classify to any known or
	// syntactically plausible Discord route.
	InvalidPath
	// InvalidURI: the reconstructed upstream URI failed to parse.
	InvalidURI
	// RequestIssue: the upstream HTTP round trip itself failed (DNS,
	// connection refused, TLS, timeout).
	RequestIssue
)

// RequestError is returned by the pipeline for every failure that prevents
// proxying a request through to Discord. It carries enough detail to log
// usefully and enough structure to pick an HTTP status for the caller.
type RequestError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *RequestError) Error() string {
	prefix := map[Kind]string{
		AcquiringTicket: "error when acquiring ratelimiting ticket",
		InvalidMethod:   "invalid method",
		InvalidPath:     "invalid path",
		InvalidURI:      "generated uri for discord api is invalid",
		RequestIssue:    "error executing request",
	}[e.Kind]

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Detail)
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode maps a RequestError's Kind to the status returned to the
// client. Unlike the connection this was distilled from, net/http requires
// every handler to produce a real response, so each kind gets a concrete
// code instead of a dropped connection.
func (e *RequestError) StatusCode() int {
	switch e.Kind {
	case AcquiringTicket:
		return http.StatusInternalServerError
	case InvalidMethod:
		return http.StatusNotImplemented
	case InvalidPath:
		return http.StatusNotImplemented
	case InvalidURI:
		return http.StatusInternalServerError
	case RequestIssue:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, detail string, err error) *RequestError {
	return &RequestError{Kind: kind, Detail: detail, Err: err}
}

var kindNames = map[Kind]string{
	AcquiringTicket: "AcquiringTicket",
	InvalidMethod:   "InvalidMethod",
	InvalidPath:     "InvalidPath",
	InvalidURI:      "InvalidURI",
	RequestIssue:    "RequestIssue",
}

// writeJSON writes the proxy's own short JSON error body. Passthrough
// errors from Discord itself are never wrapped this way: only failures the
// proxy detects before or around the upstream round trip go through here.
func (e *RequestError) writeJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode())
	json.NewEncoder(w).Encode(map[string]string{
		"error":   kindNames[e.Kind],
		"message": e.Error(),
	})
}
