package ratelimit

import (
	"errors"
	"sync/atomic"
	"time"
)

// Scope identifies the breadth of a rate-limit decision reported by upstream.
type Scope string

const (
	ScopeUnspecified Scope = ""
	ScopeUser        Scope = "user"
	ScopeGlobal      Scope = "global"
	ScopeShared      Scope = "shared"
)

// Headers is the parsed form of Discord's X-RateLimit-* response headers.
// A nil *Headers delivered to a Ticket is the "no headers" sentinel.
type Headers struct {
	Bucket     string
	Limit      int
	Remaining  int
	ResetAt    time.Time
	Scope      Scope
	Global     bool          // X-RateLimit-Global: true
	RetryAfter time.Duration // Retry-After, only meaningful on a 429
}

// ErrTicketAlreadyResolved is returned by a second call to Deliver.
var ErrTicketAlreadyResolved = errors.New("ratelimit: ticket headers already delivered")

// Ticket is a one-shot handshake between a bucket and a request holder: the
// holder is promised one slot of reserved capacity and is obligated to call
// Deliver exactly once with either the parsed upstream headers or nil.
type Ticket struct {
	bucket   *bucketActor
	routeKey string
	resolved atomic.Bool
	timer    *time.Timer
}

// Deliver reports the upstream response's rate-limit headers (or nil, the
// "no headers" sentinel) back to the bucket that issued this ticket. It is
// an error to call Deliver more than once; the second call is a no-op
// returning ErrTicketAlreadyResolved.
func (t *Ticket) Deliver(h *Headers) error {
	if !t.resolved.CompareAndSwap(false, true) {
		return ErrTicketAlreadyResolved
	}
	t.timer.Stop()
	if h != nil && h.Global && h.RetryAfter > 0 {
		// Applied before Deliver returns, so a ticket requested right after
		// this call already waits out the ratelimiter-wide block.
		t.bucket.rl.blockGlobal(h.RetryAfter)
	}
	select {
	case t.bucket.deliverCh <- &headerDelivery{routeKey: t.routeKey, headers: h}:
	case <-t.bucket.stopCh:
		// Bucket's actor is gone (evicted/closed); nothing left to deliver to.
	}
	return nil
}

func (t *Ticket) expire() {
	if t.resolved.CompareAndSwap(false, true) {
		select {
		case t.bucket.reclaimCh <- struct{}{}:
		case <-t.bucket.stopCh:
		}
	}
}
