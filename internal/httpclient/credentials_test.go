package httpclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)

	assert.True(t, TokenExpired(signedToken(t, time.Now().Add(-time.Second)), time.Now()))
	assert.False(t, TokenExpired(signedToken(t, exp), time.Now()))
	assert.False(t, TokenExpired("opaque-token", time.Now()))
}

func TestMemoryCredentials(t *testing.T) {
	ctx := context.Background()
	creds := NewMemoryCredentials()

	token, err := creds.Token(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, creds.SetToken(ctx, "s1", "abc"))
	token, _ = creds.Token(ctx, "s1")
	assert.Equal(t, "abc", token)

	require.NoError(t, creds.Clear(ctx, "s1"))
	token, _ = creds.Token(ctx, "s1")
	assert.Empty(t, token)
}

func TestRedisCredentials(t *testing.T) {
	mr, client := setupRedisTest(t)
	creds := NewRedisCredentials(client, "test:credential:")
	ctx := context.Background()

	token, err := creds.Token(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, token)

	jwtToken := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, creds.SetToken(ctx, "s1", jwtToken))
	token, err = creds.Token(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, jwtToken, token)

	ttl := mr.TTL("test:credential:s1")
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	require.NoError(t, creds.SetToken(ctx, "s2", "opaque"))
	assert.Equal(t, time.Duration(0), mr.TTL("test:credential:s2"))

	err = creds.SetToken(ctx, "s3", signedToken(t, time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, ErrAuthExpired)

	require.NoError(t, creds.Clear(ctx, "s1"))
	assert.False(t, mr.Exists("test:credential:s1"))
}
