// Package cache provides the entity cache used for product reads: TTL-bound
// full entries, partial entries seeded from listings, and one in-flight fetch
// per key.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

var ErrEmptyKey = errors.New("cache key is empty")

// State of one key
type State int

const (
	StateAbsent State = iota
	StatePartial
	StateFull
	// StateExpired is a full entry past its TTL. Its value can still be shown
	// but the next GetOrFetch refetches it.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePartial:
		return "PARTIAL"
	case StateFull:
		return "FULL"
	case StateExpired:
		return "EXPIRED"
	default:
		return "ABSENT"
	}
}

type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
	Partial   bool
}

// FetchFunc loads the full value of key
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

type Options struct {
	// Name tags log lines, e.g. "products"
	Name         string
	TTL          time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

const (
	DefaultTTL          = 60 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)

type EntityCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[T]
	// flights holds the fetch in progress per key. Invalidate and Clear mark
	// it stale: its waiters still get the value but it is never stored.
	flights map[string]*flight

	group   singleflight.Group
	fetch   FetchFunc[T]
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// NewEntityCache panics when fetch is nil
func NewEntityCache[T any](fetch FetchFunc[T], opts Options) *EntityCache[T] {
	if fetch == nil {
		panic("cache: nil fetch function")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "entity"
	}

	return &EntityCache[T]{
		entries: make(map[string]*Entry[T]),
		flights: make(map[string]*flight),
		fetch:   fetch,
		ttl:     opts.TTL,
		timeout: opts.FetchTimeout,
		now:     opts.Now,
		log:     logger.Named("cache." + opts.Name),
	}
}

// GetOrFetch returns the fresh full value of key, joining or starting the
// fetch for it otherwise. The fetch is detached from ctx: a caller that gives
// up gets ctx.Err() while the fetch completes and fills the cache.
func (c *EntityCache[T]) GetOrFetch(ctx context.Context, key string) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrEmptyKey
	}

	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(detached, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *EntityCache[T]) load(ctx context.Context, key string) (T, error) {
	// a fetch for key may have finished between the caller's check and now
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	// singleflight runs one load per key at a time, so f is the only flight
	f := &flight{}
	c.mu.Lock()
	c.flights[key] = f
	c.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.log.Debug("Fetching entry", map[string]interface{}{"key": key})
	value, err := c.safeFetch(fctx, key)

	c.mu.Lock()
	delete(c.flights, key)
	switch {
	case err != nil:
	case f.stale:
		c.log.Debug("Dropping fetch result invalidated in flight", map[string]interface{}{"key": key})
	default:
		c.entries[key] = &Entry[T]{Value: value, FetchedAt: c.now()}
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Debug("Fetch failed", map[string]interface{}{"key": key, "error": err.Error()})
		var zero T
		return zero, err
	}
	return value, nil
}

type flight struct {
	stale bool
}

func (c *EntityCache[T]) safeFetch(ctx context.Context, key string) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch %q panicked: %v", key, r)
		}
	}()
	return c.fetch(ctx, key)
}

func (c *EntityCache[T]) fresh(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.Partial || c.expired(e) {
		var zero T
		return zero, false
	}
	return e.Value, true
}

func (c *EntityCache[T]) expired(e *Entry[T]) bool {
	return !e.Partial && c.now().Sub(e.FetchedAt) >= c.ttl
}

// SeedPartial stores value as a partial entry unless a full one, fresh or
// expired, is already held. It reports whether the value was stored.
func (c *EntityCache[T]) SeedPartial(key string, value T) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !e.Partial {
		return false
	}
	c.entries[key] = &Entry[T]{Value: value, FetchedAt: c.now(), Partial: true}
	return true
}

// Prefetch warms key in the background. It does nothing for fresh keys and
// joins a fetch already in flight. Failures are only logged.
func (c *EntityCache[T]) Prefetch(key string) {
	if key == "" {
		return
	}
	if _, ok := c.fresh(key); ok {
		return
	}

	go func() {
		if _, err := c.GetOrFetch(context.Background(), key); err != nil {
			c.log.Warn("Prefetch failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}()
}

// Peek returns whatever is stored for key without fetching
func (c *EntityCache[T]) Peek(key string) (T, State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, StateAbsent, false
	}
	return e.Value, c.stateOf(e), true
}

func (c *EntityCache[T]) State(key string) State {
	_, state, _ := c.Peek(key)
	return state
}

func (c *EntityCache[T]) stateOf(e *Entry[T]) State {
	switch {
	case e.Partial:
		return StatePartial
	case c.expired(e):
		return StateExpired
	default:
		return StateFull
	}
}

// Invalidate drops key. A fetch for key already in flight still answers its
// waiters, including callers that join it after Invalidate, but does not
// store its result. The next GetOrFetch once it finished fetches again.
func (c *EntityCache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	if f, ok := c.flights[key]; ok {
		f.stale = true
	}
	c.mu.Unlock()
}

// Clear drops every entry and invalidates every fetch in flight
func (c *EntityCache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry[T])
	for _, f := range c.flights {
		f.stale = true
	}
	c.mu.Unlock()
}

// PruneExpired removes full entries past their TTL and returns how many
// were removed. Partial entries are kept.
func (c *EntityCache[T]) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *EntityCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
