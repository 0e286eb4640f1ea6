package wbconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadWithMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
logLevel: debug
cacheBackend: redis
timeout: 10s
serve:
  addr: ":9090"
  inboundRPS: 5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "redis", cfg.CacheBackend)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, ":9090", cfg.Serve.Addr)
	require.Equal(t, 5, cfg.Serve.InboundRPS)
	// untouched fields keep their defaults
	require.Equal(t, Defaults().CacheDir, cfg.CacheDir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\n"), 0o644))

	t.Setenv("WAYBACK_LOG_LEVEL", "warn")
	t.Setenv("WAYBACK_CACHE_DIR", "/tmp/wayback-cache")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "/tmp/wayback-cache", cfg.CacheDir)
}

func TestLoadRejectsInvalidEnvTimeout(t *testing.T) {
	t.Setenv("WAYBACK_TIMEOUT", "not-a-duration")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsInvalidEnvRPS(t *testing.T) {
	t.Setenv("WAYBACK_SERVE_INBOUND_RPS", "not-a-number")
	_, err := Load("")
	require.Error(t, err)
}
