package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

func TestWarmResponseCache_LogsOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Initialize(logger.Config{Level: "info", Format: "json", Output: buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	store := httpclient.NewMemoryStore()
	seed := httpclient.NewResponseCache(store, time.Minute, nil)
	seed.Put(context.Background(), httpclient.Envelope{
		Key:        httpclient.CacheKey(httpclient.PublicScope, "/products/p1", nil),
		Scope:      httpclient.PublicScope,
		Family:     "products",
		Path:       "/products/p1",
		StatusCode: 200,
		Body:       []byte(`{"id":"p1"}`),
	})

	responses := httpclient.NewResponseCache(store, time.Minute, nil)
	buf.Reset()
	warmResponseCache(responses, time.Second)

	assert.Equal(t, 1, responses.Len())

	warmed := 0
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "Response cache warmed" {
			warmed++
			assert.EqualValues(t, 1, entry["loaded"])
		}
	}
	assert.Equal(t, 1, warmed)
}
