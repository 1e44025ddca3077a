package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mtreilly/discord-http-proxy/logger"
)

// ticketReq is a queued request for capacity on a bucket. cancelled is set
// by the caller's goroutine when its context is done; the actor checks it
// lazily when it would otherwise grant the request, so a cancelled waiter
// never blocks the ones behind it and never needs its own goroutine.
type ticketReq struct {
	routeKey  string
	cancelled atomic.Bool
	resp      chan *Ticket
}

type headerDelivery struct {
	routeKey string
	headers  *Headers
}

// bucketActor owns one Bucket's state exclusively; all reads and writes to
// remaining/limit/resetAt/queue happen on its single goroutine, so no lock
// is needed across the ticket-acquire / header-delivery race the spec
// warns about.
type bucketActor struct {
	id  string
	rl  *ratelimiterState
	log *logger.Logger

	reqCh     chan *ticketReq
	deliverCh chan *headerDelivery
	reclaimCh chan struct{}
	stopCh    chan struct{}

	ticketTimeout time.Duration

	// state, touched only inside run()
	remaining int
	limit     int
	resetAt   time.Time
	known     bool // true once this actor has been bound to a real (learned) bucket id
	queue     []*ticketReq
}

func newBucketActor(id string, rl *ratelimiterState, ticketTimeout time.Duration, log *logger.Logger) *bucketActor {
	b := &bucketActor{
		id:            id,
		rl:            rl,
		log:           log,
		reqCh:         make(chan *ticketReq),
		deliverCh:     make(chan *headerDelivery),
		reclaimCh:     make(chan struct{}),
		stopCh:        make(chan struct{}),
		ticketTimeout: ticketTimeout,
		remaining:     1,
		limit:         1,
	}
	go b.run()
	return b
}

func (b *bucketActor) ticket(ctx context.Context, routeKey string) (*Ticket, error) {
	req := &ticketReq{routeKey: routeKey, resp: make(chan *Ticket, 1)}

	select {
	case b.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.stopCh:
		return nil, ErrBucketClosed
	}

	select {
	case t := <-req.resp:
		return t, nil
	case <-ctx.Done():
		req.cancelled.Store(true)
		return nil, ctx.Err()
	case <-b.stopCh:
		req.cancelled.Store(true)
		return nil, ErrBucketClosed
	}
}

func (b *bucketActor) close() {
	close(b.stopCh)
}

func (b *bucketActor) run() {
	resetTimer := time.NewTimer(time.Hour)
	resetTimer.Stop()
	defer resetTimer.Stop()

	for {
		select {
		case <-b.stopCh:
			return

		case req := <-b.reqCh:
			b.queue = append(b.queue, req)
			b.tryGrant(resetTimer)

		case d := <-b.deliverCh:
			b.applyHeaders(d, resetTimer)
			b.tryGrant(resetTimer)

		case <-b.reclaimCh:
			if b.remaining < b.limit {
				b.remaining++
			}
			b.tryGrant(resetTimer)

		case <-resetTimer.C:
			b.tryGrant(resetTimer)
		}
	}
}

func (b *bucketActor) applyHeaders(d *headerDelivery, resetTimer *time.Timer) {
	h := d.headers
	if h == nil {
		// "no headers": capacity was already decremented at grant time. A
		// bucket that has never learned a reset time has nothing that would
		// ever refill it, so the slot is handed back instead.
		if b.resetAt.IsZero() && b.remaining < b.limit {
			b.remaining++
		}
		return
	}

	if h.Global && h.RetryAfter > 0 {
		// The ratelimiter-wide block was already applied by Ticket.Deliver.
		return
	}

	if h.Limit > 0 {
		b.limit = h.Limit
	}
	b.remaining = h.Remaining
	if !h.ResetAt.IsZero() {
		b.resetAt = h.ResetAt
		resetTimer.Stop()
		if wait := time.Until(h.ResetAt); wait > 0 {
			resetTimer.Reset(wait)
		} else {
			resetTimer.Reset(time.Millisecond)
		}
	}

	if h.Bucket != "" && !b.known {
		b.known = true
		b.rl.bind(d.routeKey, h.Bucket, b)
	}
}

// tryGrant drains the FIFO queue while the bucket has capacity. A lazily
// evaluated refill happens here too: once resetAt has passed, the next
// attempted grant refills remaining to limit before deciding whether to
// grant or keep queuing (spec's Refilling state).
func (b *bucketActor) tryGrant(resetTimer *time.Timer) {
	for len(b.queue) > 0 {
		if !b.resetAt.IsZero() && !time.Now().Before(b.resetAt) && b.remaining <= 0 {
			b.remaining = b.limit
		}
		if b.remaining <= 0 {
			return
		}

		req := b.queue[0]
		b.queue = b.queue[1:]

		if req.cancelled.Load() {
			continue
		}

		b.remaining--
		req.resp <- b.issueTicket(req.routeKey)
	}
}

func (b *bucketActor) issueTicket(routeKey string) *Ticket {
	t := &Ticket{bucket: b, routeKey: routeKey}
	t.timer = time.AfterFunc(b.ticketTimeout, t.expire)
	return t
}
