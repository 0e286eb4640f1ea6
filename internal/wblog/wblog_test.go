package wblog

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigureSetsServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "wayback-test"})

	WithComponent("cdx").Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "wayback-test", entry["service"])
	require.Equal(t, "cdx", entry["component"])
	require.Equal(t, "hello", entry["message"])
}

func TestRequestIDFromContextGeneratesWhenAbsent(t *testing.T) {
	id := RequestIDFromContext(context.Background())
	require.NotEmpty(t, id)
}

func TestRequestIDFromContextReturnsAttached(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	require.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-abc")
	WithContext(ctx).Info().Msg("hi")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "req-abc", entry["request_id"])
}
