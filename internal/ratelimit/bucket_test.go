package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/mtreilly/discord-http-proxy/logger"
)

func TestBucketActorGrantsImmediatelyWhenUnknown(t *testing.T) {
	rl := NewRatelimiter(time.Second, logger.Default())
	defer rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ticket, err := rl.Ticket(ctx, "GET:/channels/:id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ticket.Deliver(nil); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
}

func TestBucketActorQueuesUntilCapacityAvailable(t *testing.T) {
	rl := NewRatelimiter(2*time.Second, logger.Default())
	defer rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := rl.Ticket(ctx, "GET:/channels/:id")
	if err != nil {
		t.Fatalf("first ticket: %v", err)
	}

	second := make(chan *Ticket, 1)
	go func() {
		tk, err := rl.Ticket(ctx, "GET:/channels/:id")
		if err != nil {
			t.Errorf("second ticket: %v", err)
			return
		}
		second <- tk
	}()

	select {
	case <-second:
		t.Fatal("second ticket should not be granted before the first delivers headers")
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Deliver(&Headers{Bucket: "abc", Limit: 5, Remaining: 4, ResetAt: time.Now().Add(time.Second)}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second ticket was never granted after capacity was reported")
	}
}

func TestTicketExpiresAndReclaimsCapacity(t *testing.T) {
	rl := NewRatelimiter(30*time.Millisecond, logger.Default())
	defer rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := rl.Ticket(ctx, "GET:/channels/:id")
	if err != nil {
		t.Fatalf("first ticket: %v", err)
	}
	_ = first // deliberately never delivered; let it expire

	tk, err := rl.Ticket(ctx, "GET:/channels/:id")
	if err != nil {
		t.Fatalf("second ticket never granted after expiry: %v", err)
	}
	tk.Deliver(nil)
}

func TestDeliverTwiceReturnsError(t *testing.T) {
	rl := NewRatelimiter(time.Second, logger.Default())
	defer rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tk, err := rl.Ticket(ctx, "GET:/channels/:id")
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	if err := tk.Deliver(nil); err != nil {
		t.Fatalf("first deliver: %v", err)
	}
	if err := tk.Deliver(nil); err != ErrTicketAlreadyResolved {
		t.Fatalf("expected ErrTicketAlreadyResolved, got %v", err)
	}
}

func TestDeliverAfterBucketClosedDoesNotDeadlock(t *testing.T) {
	rl := NewRatelimiter(time.Second, logger.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tk, err := rl.Ticket(ctx, "GET:/channels/:id")
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}

	rl.Close() // simulate the owning bucket/ratelimiter being evicted mid-flight

	done := make(chan struct{})
	go func() {
		tk.Deliver(&Headers{Bucket: "abc", Limit: 1, Remaining: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver on a closed bucket must not block forever")
	}
}

func TestGlobalBlockDelaysSubsequentTickets(t *testing.T) {
	rl := NewRatelimiter(time.Second, logger.Default())
	defer rl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tk, err := rl.Ticket(ctx, "POST:/channels/:id/messages")
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	tk.Deliver(&Headers{Global: true, RetryAfter: 80 * time.Millisecond})

	start := time.Now()
	tk2, err := rl.Ticket(ctx, "GET:/channels/:id")
	if err != nil {
		t.Fatalf("second ticket: %v", err)
	}
	if time.Since(start) < 60*time.Millisecond {
		t.Fatal("expected global block to delay the next ticket")
	}
	tk2.Deliver(nil)
}
