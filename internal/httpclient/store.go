package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Envelope is one cached read. Key is the cache key built by CacheKey.
type Envelope struct {
	Key        string    `json:"key"`
	Scope      string    `json:"scope"`
	Family     string    `json:"family"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	Body       []byte    `json:"body"`
	StoredAt   time.Time `json:"stored_at"`
}

// Store persists envelopes across restarts. Keys are cache keys; Load and
// DeletePrefix match on a cache key prefix, "" meaning every key.
type Store interface {
	Load(ctx context.Context, prefix string) ([]Envelope, error)
	Save(ctx context.Context, env Envelope) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// MemoryStore keeps envelopes in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Envelope
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Envelope)}
}

func (s *MemoryStore) Load(ctx context.Context, prefix string) ([]Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Envelope, 0, len(s.entries))
	for key, env := range s.entries {
		if strings.HasPrefix(key, prefix) {
			out = append(out, env)
		}
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, env Envelope) error {
	s.mu.Lock()
	s.entries[env.Key] = env
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	return nil
}

// RedisStore keeps envelopes as JSON strings under namespace+key. Each key
// carries a TTL so entries nobody reads again do not pile up.
type RedisStore struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

const scanBatch = 200

func NewRedisStore(client *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, prefix string) ([]Envelope, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cached responses: %w", err)
	}

	out := make([]Envelope, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var env Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			// unreadable entries are dropped rather than failing the warm-up
			s.client.Del(ctx, keys[i])
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func (s *RedisStore) Save(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode cached response: %w", err)
	}
	if err := s.client.Set(ctx, s.namespace+env.Key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cached response: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.namespace+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cached response: %w", err)
	}
	return nil
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cached responses: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) scan(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(s.namespace+prefix) + "*"

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to scan cached responses: %w", err)
	}
	return keys, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
