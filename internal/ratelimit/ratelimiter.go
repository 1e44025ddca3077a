package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtreilly/discord-http-proxy/logger"
)

// ErrBucketClosed is returned when a ticket is requested against a
// ratelimiter that has already been torn down (e.g. evicted from the
// token cache).
var ErrBucketClosed = errors.New("ratelimit: bucket closed")

const defaultTicketTimeout = 20 * time.Second

// ratelimiterState is the state shared by every bucketActor that belongs
// to one Ratelimiter: the route->bucket binding table and the ratelimiter-
// wide global-scope deadline.
type ratelimiterState struct {
	mu          sync.Mutex
	routeBucket map[string]string
	buckets     map[string]*bucketActor
	globalUntil atomic.Int64 // unix nano; 0 means not blocked

	ticketTimeout time.Duration
	log           *logger.Logger
}

// Ratelimiter is per-token rate-limit state: a route->bucket-id map and a
// bucket-id->bucket map, per spec.md §3/§4.2. Handles are cheap to share;
// callers never need their own copy of the underlying maps.
type Ratelimiter struct {
	state *ratelimiterState
}

// NewRatelimiter builds an empty per-token ratelimiter. ticketTimeout bounds
// how long a granted ticket may go without a Deliver call before its slot
// is reclaimed (spec.md §4.2, "the timeout is equal to the upstream request
// deadline plus a small grace" — callers should pass that sum in).
func NewRatelimiter(ticketTimeout time.Duration, log *logger.Logger) *Ratelimiter {
	if ticketTimeout <= 0 {
		ticketTimeout = defaultTicketTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &Ratelimiter{
		state: &ratelimiterState{
			routeBucket:   make(map[string]string),
			buckets:       make(map[string]*bucketActor),
			ticketTimeout: ticketTimeout,
			log:           log,
		},
	}
}

// Ticket blocks until a capacity reservation against routeKey's bucket is
// granted (or ctx is done / a ratelimiter-wide global block is active).
func (r *Ratelimiter) Ticket(ctx context.Context, routeKey string) (*Ticket, error) {
	if err := r.state.waitGlobal(ctx); err != nil {
		return nil, err
	}
	return r.state.bucketFor(routeKey).ticket(ctx, routeKey)
}

// Close stops every bucket actor owned by this ratelimiter. Call this only
// once the ratelimiter is no longer reachable (e.g. on LRU eviction).
func (r *Ratelimiter) Close() {
	r.state.mu.Lock()
	actors := make([]*bucketActor, 0, len(r.state.buckets))
	seen := make(map[*bucketActor]struct{}, len(r.state.buckets))
	for _, a := range r.state.buckets {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		actors = append(actors, a)
	}
	r.state.mu.Unlock()

	for _, a := range actors {
		a.close()
	}
}

func (s *ratelimiterState) waitGlobal(ctx context.Context) error {
	for {
		untilNano := s.globalUntil.Load()
		if untilNano == 0 {
			return nil
		}
		until := time.Unix(0, untilNano)
		wait := time.Until(until)
		if wait <= 0 {
			return nil
		}

		s.log.Debug("ratelimit.global.wait", "wait_ms", wait.Milliseconds())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Re-check: another response may have extended the deadline
			// while we were waiting.
		}
	}
}

func (s *ratelimiterState) blockGlobal(retryAfter time.Duration) {
	deadline := time.Now().Add(retryAfter).UnixNano()
	for {
		cur := s.globalUntil.Load()
		if cur >= deadline {
			return
		}
		if s.globalUntil.CompareAndSwap(cur, deadline) {
			s.log.Warn("ratelimit.global.block", "retry_after_ms", retryAfter.Milliseconds())
			return
		}
	}
}

// bucketFor returns the bucket actor serving routeKey, creating a
// permissive fallback bucket on first use if the route's real bucket id
// has not yet been learned from an upstream response.
func (s *ratelimiterState) bucketFor(routeKey string) *bucketActor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.routeBucket[routeKey]; ok {
		if a, ok := s.buckets[id]; ok {
			return a
		}
	}

	fallbackID := "unknown:" + routeKey
	if a, ok := s.buckets[fallbackID]; ok {
		return a
	}

	a := newBucketActor(fallbackID, s, s.ticketTimeout, s.log)
	s.buckets[fallbackID] = a
	s.routeBucket[routeKey] = fallbackID
	return a
}

// bind records that routeKey's real bucket id is bucketID, aliasing the
// actor that just learned it under that id so that any other route
// sharing the same upstream bucket converges onto one actor.
func (s *ratelimiterState) bind(routeKey, bucketID string, actor *bucketActor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.routeBucket[routeKey] = bucketID
	if existing, ok := s.buckets[bucketID]; !ok {
		s.buckets[bucketID] = actor
	} else if existing != actor {
		// Another route already discovered and registered this canonical
		// bucket first; this actor's queued-but-not-yet-granted requests
		// (if any) keep draining under their original fallback id, and
		// they finish naturally since no new requests for routeKey will be
		// routed to them again. This only happens when two distinct routes
		// race to discover the same real bucket for the first time.
		s.log.Debug("ratelimit.bucket.alias_race", "bucket", bucketID, "route", routeKey)
	}
}
