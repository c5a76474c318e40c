package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLoggerTest(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	Initialize(Config{Level: level, Format: "json", Output: buf})
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
	return buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_Fields(t *testing.T) {
	buf := setupLoggerTest(t, "debug")

	Info("Cart line added", map[string]interface{}{
		"line_key": "p1|size:M",
		"quantity": 2,
	})
	Error("Upstream failed", errors.New("boom"), nil)

	entries := lines(t, buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "Cart line added", entries[0]["message"])
	assert.Equal(t, "p1|size:M", entries[0]["line_key"])
	assert.Equal(t, float64(2), entries[0]["quantity"])
	assert.Contains(t, entries[0]["caller"], "logger_test.go")

	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "boom", entries[1]["error"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := setupLoggerTest(t, "warn")

	Debug("hidden")
	Info("hidden")
	Warn("shown")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
}

func TestLogger_ScopedLoggers(t *testing.T) {
	buf := setupLoggerTest(t, "debug")

	Named("cache.products").WithContext(map[string]interface{}{"key": "p1"}).Debug("Fetched")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache.products", entries[0]["component"])
	assert.Equal(t, "p1", entries[0]["key"])
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" INFO ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"verbose": zerolog.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLogLevel(input), input)
	}
}
