package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mtreilly/discord-http-proxy/logger"
)

// entry is a doubly-linked-list node, the same shape cache.LRUCache uses,
// with a last-used timestamp added for decay.
type entry[K comparable, V any] struct {
	key      K
	value    V
	lastUsed int64 // unix nano, read/written only while mu is held
	prev     *entry[K, V]
	next     *entry[K, V]
}

// ExpiringLRU is a generic concurrent map bounded by both entry count
// (oldest-by-last-use evicted on insert) and per-entry idle time (entries
// untouched for longer than expiration are swept by a background task).
//
// Insert and Get share one mutex: the decay task never awaits anything
// while holding it, so it can never deadlock against a caller blocked
// elsewhere (spec requires readers and the reaper to never contend across
// a suspension point).
type ExpiringLRU[K comparable, V any] struct {
	mu           sync.Mutex
	items        map[K]*entry[K, V]
	head         *entry[K, V]
	tail         *entry[K, V]
	maxSize      int // 0 means disabled; negative means unbounded
	expiration   time.Duration
	reapInterval time.Duration

	evictions int64
	log       *logger.Logger
	onEvict   func(K, V)

	stop chan struct{}
	done chan struct{}
}

// Option customizes an ExpiringLRU.
type Option[K comparable, V any] func(*ExpiringLRU[K, V])

// WithLogger injects a logger used for reaper diagnostics.
func WithLogger[K comparable, V any](l *logger.Logger) Option[K, V] {
	return func(e *ExpiringLRU[K, V]) {
		if l != nil {
			e.log = l
		}
	}
}

// WithOnEvict registers a callback invoked (outside the internal lock)
// whenever an entry leaves the cache by LRU eviction or decay (Remove does
// not invoke it).
// Use it to release resources owned by the evicted value (e.g. stopping a
// ratelimiter's bucket actors).
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(e *ExpiringLRU[K, V]) {
		e.onEvict = fn
	}
}

const (
	// Unbounded disables the max-size eviction check entirely.
	Unbounded = -1

	defaultExpiration   = time.Hour
	defaultReapInterval = 10 * time.Minute
)

// NewExpiringLRU builds the cache and starts its decay task. A maxSize of 0
// disables the cache (insert becomes a no-op, per spec); any negative
// maxSize, such as Unbounded, disables the size bound. Zero
// expiration/reapInterval fall back to the
// spec defaults (3600s / 600s).
func NewExpiringLRU[K comparable, V any](maxSize int, expiration, reapInterval time.Duration, opts ...Option[K, V]) *ExpiringLRU[K, V] {
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	if reapInterval <= 0 {
		reapInterval = defaultReapInterval
	}

	e := &ExpiringLRU[K, V]{
		items:        make(map[K]*entry[K, V]),
		maxSize:      maxSize,
		expiration:   expiration,
		reapInterval: reapInterval,
		log:          logger.Default(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	go e.runReaper()

	return e
}

// Insert adds or replaces a value, evicting the least-recently-used entry
// if the cache is at capacity. A maxSize of 0 makes this a no-op.
func (e *ExpiringLRU[K, V]) Insert(key K, value V) {
	if e.maxSize == 0 {
		return
	}

	e.mu.Lock()

	now := time.Now().UnixNano()

	if ent, ok := e.items[key]; ok {
		ent.value = value
		ent.lastUsed = now
		e.moveToFront(ent)
		e.mu.Unlock()
		return
	}

	ent := &entry[K, V]{key: key, value: value, lastUsed: now}
	e.items[key] = ent
	e.prepend(ent)

	var evicted *entry[K, V]
	if e.maxSize > 0 && len(e.items) > e.maxSize {
		evicted = e.evictOldest()
	}
	onEvict := e.onEvict
	e.mu.Unlock()

	if evicted != nil && onEvict != nil {
		onEvict(evicted.key, evicted.value)
	}
}

// Get looks up a value and refreshes its recency atomically with the read.
func (e *ExpiringLRU[K, V]) Get(key K) (V, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	ent.lastUsed = time.Now().UnixNano()
	e.moveToFront(ent)

	return ent.value, true
}

// Remove deletes an entry if present.
func (e *ExpiringLRU[K, V]) Remove(key K) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ent, ok := e.items[key]; ok {
		e.unlink(ent)
		delete(e.items, key)
	}
}

// Len returns the current entry count. It is a soft upper bound on maxSize:
// it may briefly exceed maxSize during concurrent inserts; the next insert
// corrects it.
func (e *ExpiringLRU[K, V]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Evictions returns the lifetime LRU-eviction count (not decay removals).
func (e *ExpiringLRU[K, V]) Evictions() int64 {
	return atomic.LoadInt64(&e.evictions)
}

// Close stops the decay task. It does not clear entries.
func (e *ExpiringLRU[K, V]) Close() {
	close(e.stop)
	<-e.done
}

func (e *ExpiringLRU[K, V]) prepend(ent *entry[K, V]) {
	ent.prev = nil
	ent.next = e.head
	if e.head != nil {
		e.head.prev = ent
	}
	e.head = ent
	if e.tail == nil {
		e.tail = ent
	}
}

func (e *ExpiringLRU[K, V]) unlink(ent *entry[K, V]) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	}
	if e.head == ent {
		e.head = ent.next
	}
	if e.tail == ent {
		e.tail = ent.prev
	}
	ent.prev = nil
	ent.next = nil
}

func (e *ExpiringLRU[K, V]) moveToFront(ent *entry[K, V]) {
	if e.head == ent {
		return
	}
	e.unlink(ent)
	e.prepend(ent)
}

// evictOldest drops the least-recently-used entry and returns it so the
// caller can invoke onEvict once the lock is released.
func (e *ExpiringLRU[K, V]) evictOldest() *entry[K, V] {
	if e.tail == nil {
		return nil
	}
	ent := e.tail
	e.unlink(ent)
	delete(e.items, ent.key)
	atomic.AddInt64(&e.evictions, 1)
	return ent
}

// runReaper ticks every reapInterval and drops every entry whose idle time
// exceeds expiration in a single sweep. A missed tick is not caught up: the
// next tick sweeps everything that is expired at that point, which is
// sufficient because decay is advisory cleanup, not a correctness bound.
//
// If the sweep itself panics, the reaper restarts rather than leaving the
// cache without a reaper for the rest of the process lifetime.
func (e *ExpiringLRU[K, V]) runReaper() {
	defer close(e.done)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("ratelimit.expiringlru.reaper_panic", "recovered", r)
				}
			}()
			e.reapLoop()
		}()

		select {
		case <-e.stop:
			return
		default:
			// Reaper goroutine panicked; restart the loop immediately.
		}
	}
}

func (e *ExpiringLRU[K, V]) reapLoop() {
	ticker := time.NewTicker(e.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *ExpiringLRU[K, V]) sweep() {
	e.mu.Lock()

	now := time.Now().UnixNano()
	cutoff := e.expiration.Nanoseconds()

	var expired []*entry[K, V]
	for _, ent := range e.items {
		if now-ent.lastUsed > cutoff {
			expired = append(expired, ent)
		}
	}

	for _, ent := range expired {
		e.unlink(ent)
		delete(e.items, ent.key)
	}

	remaining := len(e.items)
	onEvict := e.onEvict
	e.mu.Unlock()

	if len(expired) > 0 {
		e.log.Debug("ratelimit.expiringlru.reap", "removed", len(expired), "remaining", remaining)
	}

	if onEvict != nil {
		for _, ent := range expired {
			onEvict(ent.key, ent.value)
		}
	}
}
