package httpclient

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

const (
	DefaultResponseTTL = 60 * time.Second

	keySeparator = "|"
)

// CacheKey builds the key of an idempotent read. Query parameters are sorted
// by name and by value so their order never matters.
func CacheKey(scope, path string, query url.Values) string {
	path = normalizePath(path)

	var b strings.Builder
	b.WriteString(scope)
	b.WriteString(keySeparator)
	b.WriteString(FamilyOf(path))
	b.WriteString(keySeparator)
	b.WriteString(path)
	if q := canonicalQuery(query); q != "" {
		b.WriteString("?")
		b.WriteString(q)
	}
	return b.String()
}

func scopePrefix(scope string) string {
	return scope + keySeparator
}

// FamilyOf names the resource family of a path: its first segment.
// /products/42 and /products/explore both belong to "products".
func FamilyOf(path string) string {
	path = strings.TrimPrefix(normalizePath(path), "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func canonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	sorted := make(url.Values, len(query))
	for k, vs := range query {
		cp := append([]string(nil), vs...)
		sort.Strings(cp)
		sorted[k] = cp
	}
	// Encode sorts by key
	return sorted.Encode()
}

// ResponseCache holds successful idempotent reads in memory and writes every
// change through to a Store.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[string]Envelope
	// reads sent upstream and not yet stored; an invalidation matching one
	// marks it stale so its body is never stored
	pending map[*pendingRead]struct{}
	// serializes store writes with store deletes so a stale body cannot be
	// saved after the invalidation that covers it
	storeMu sync.Mutex
	store   Store
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger
}

type pendingRead struct {
	scope  string
	family string
	path   string
	stale  bool
}

// NewResponseCache uses a MemoryStore when store is nil
func NewResponseCache(store Store, ttl time.Duration, now func() time.Time) *ResponseCache {
	if store == nil {
		store = NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ResponseCache{
		entries: make(map[string]Envelope),
		pending: make(map[*pendingRead]struct{}),
		store:   store,
		ttl:     ttl,
		now:     now,
		log:     logger.Named("httpcache"),
	}
}

func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Load warms the cache from the store. Expired envelopes are skipped and
// deleted from the store. It returns the number of entries loaded.
func (c *ResponseCache) Load(ctx context.Context) (int, error) {
	envs, err := c.store.Load(ctx, "")
	if err != nil {
		return 0, err
	}

	loaded := 0
	c.mu.Lock()
	var stale []string
	for _, env := range envs {
		if env.Key == "" {
			continue
		}
		if c.expired(env) {
			stale = append(stale, env.Key)
			continue
		}
		c.entries[env.Key] = env
		loaded++
	}
	c.mu.Unlock()

	for _, key := range stale {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn("Failed to delete stale cached response", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	c.log.Info("Response cache warmed", map[string]interface{}{
		"loaded":  loaded,
		"expired": len(stale),
	})
	return loaded, nil
}

func (c *ResponseCache) expired(env Envelope) bool {
	return c.now().Sub(env.StoredAt) >= c.ttl
}

// Get returns the envelope for key when it is within TTL
func (c *ResponseCache) Get(key string) (Envelope, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	env, ok := c.entries[key]
	if !ok || c.expired(env) {
		return Envelope{}, false
	}
	return env, true
}

// Put stores env, stamping it with the current time when StoredAt is zero.
// A store failure is logged; the in-memory entry is kept.
func (c *ResponseCache) Put(ctx context.Context, env Envelope) Envelope {
	env, _ = c.commit(ctx, nil, env)
	return env
}

// track registers a read about to go upstream. The read's body is only
// stored through commit, and only when no invalidation covering its scope,
// family or path ran in between.
func (c *ResponseCache) track(env Envelope) *pendingRead {
	p := &pendingRead{
		scope:  env.Scope,
		family: env.Family,
		path:   normalizePath(env.Path),
	}
	c.mu.Lock()
	c.pending[p] = struct{}{}
	c.mu.Unlock()
	return p
}

// untrack forgets p. It is a no-op for nil or already committed reads.
func (c *ResponseCache) untrack(p *pendingRead) {
	if p == nil {
		return
	}
	c.mu.Lock()
	delete(c.pending, p)
	c.mu.Unlock()
}

// commit stores env unless p went stale. It reports whether env was stored.
func (c *ResponseCache) commit(ctx context.Context, p *pendingRead, env Envelope) (Envelope, bool) {
	if env.StoredAt.IsZero() {
		env.StoredAt = c.now()
	}

	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	if p != nil {
		delete(c.pending, p)
		if p.stale {
			c.mu.Unlock()
			c.log.Debug("Dropping response invalidated in flight", map[string]interface{}{
				"key": env.Key,
			})
			return env, false
		}
	}
	c.entries[env.Key] = env
	c.mu.Unlock()

	if err := c.store.Save(ctx, env); err != nil {
		c.log.Warn("Failed to persist cached response", map[string]interface{}{
			"key":   env.Key,
			"error": err.Error(),
		})
	}
	return env, true
}

// markStale flags the pending reads matching match. Callers hold c.mu.
func (c *ResponseCache) markStale(match func(*pendingRead) bool) {
	for p := range c.pending {
		if match(p) {
			p.stale = true
		}
	}
}

// InvalidateFamily drops every cached read of family, across all scopes
func (c *ResponseCache) InvalidateFamily(ctx context.Context, family string) int {
	return c.removeWhere(ctx, func(env Envelope) bool {
		return env.Family == family
	}, func(p *pendingRead) bool {
		return p.family == family
	})
}

// InvalidatePath drops every cached read of path, whatever its scope or query
func (c *ResponseCache) InvalidatePath(ctx context.Context, path string) int {
	path = normalizePath(path)
	return c.removeWhere(ctx, func(env Envelope) bool {
		return env.Path == path
	}, func(p *pendingRead) bool {
		return p.path == path
	})
}

// InvalidateScope drops every cached read made under scope
func (c *ResponseCache) InvalidateScope(ctx context.Context, scope string) int {
	prefix := scopePrefix(scope)

	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	c.markStale(func(p *pendingRead) bool { return p.scope == scope })
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if err := c.store.DeletePrefix(ctx, prefix); err != nil {
		c.log.Warn("Failed to prune cached responses", map[string]interface{}{
			"scope": scope,
			"error": err.Error(),
		})
	}
	return removed
}

// PruneExpired drops entries past their TTL and returns how many went
func (c *ResponseCache) PruneExpired(ctx context.Context) int {
	return c.removeWhere(ctx, c.expired, nil)
}

// Clear drops everything, including what only the store still holds
func (c *ResponseCache) Clear(ctx context.Context) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	c.entries = make(map[string]Envelope)
	c.markStale(func(*pendingRead) bool { return true })
	c.mu.Unlock()

	return c.store.DeletePrefix(ctx, "")
}

func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// removeWhere drops the entries matching match and marks the pending reads
// matching stale, if given, so they are not stored afterwards
func (c *ResponseCache) removeWhere(ctx context.Context, match func(Envelope) bool, stale func(*pendingRead) bool) int {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.Lock()
	if stale != nil {
		c.markStale(stale)
	}
	var keys []string
	for key, env := range c.entries {
		if match(env) {
			delete(c.entries, key)
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn("Failed to delete cached response", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return len(keys)
}
