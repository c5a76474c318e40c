package httpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// CredentialStore holds the auth token of each scope. Token returns "" when
// the scope has none.
type CredentialStore interface {
	Token(ctx context.Context, scope string) (string, error)
	SetToken(ctx context.Context, scope, token string) error
	Clear(ctx context.Context, scope string) error
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens and JWTs without exp report false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired reports whether token is a JWT whose exp is not after now
func TokenExpired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	return ok && !exp.After(now)
}

// MemoryCredentials keeps tokens in process memory
type MemoryCredentials struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{tokens: make(map[string]string)}
}

func (m *MemoryCredentials) Token(ctx context.Context, scope string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[scope], nil
}

func (m *MemoryCredentials) SetToken(ctx context.Context, scope, token string) error {
	m.mu.Lock()
	m.tokens[scope] = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryCredentials) Clear(ctx context.Context, scope string) error {
	m.mu.Lock()
	delete(m.tokens, scope)
	m.mu.Unlock()
	return nil
}

// RedisCredentials keeps tokens under prefix+scope. A JWT is stored until its
// exp claim; other tokens never expire on their own.
type RedisCredentials struct {
	client *redis.Client
	prefix string
}

func NewRedisCredentials(client *redis.Client, prefix string) *RedisCredentials {
	return &RedisCredentials{client: client, prefix: prefix}
}

func (r *RedisCredentials) Token(ctx context.Context, scope string) (string, error) {
	token, err := r.client.Get(ctx, r.prefix+scope).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return token, nil
}

func (r *RedisCredentials) SetToken(ctx context.Context, scope, token string) error {
	var ttl time.Duration
	if exp, ok := TokenExpiry(token); ok {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return ErrAuthExpired
		}
	}
	if err := r.client.Set(ctx, r.prefix+scope, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (r *RedisCredentials) Clear(ctx context.Context, scope string) error {
	if err := r.client.Del(ctx, r.prefix+scope).Err(); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
