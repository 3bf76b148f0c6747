package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	require.Equal(t, "fs", cfg.Blob.Driver)
	require.Equal(t, 2*time.Second, cfg.Worker.SettleDelay)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
log_level: debug
storage:
  driver: postgres
  postgres_dsn: postgres://localhost/biograph
redis:
  address: localhost:6379
  queue_key: custom:tasks
worker:
  settle_delay: 500ms
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "postgres", cfg.Storage.Driver)
	require.Equal(t, "postgres://localhost/biograph", cfg.Storage.PostgresDSN)
	require.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.Equal(t, "custom:tasks", cfg.Redis.QueueKey)
	require.Equal(t, 500*time.Millisecond, cfg.Worker.SettleDelay)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\nstorage:\n  driver: sqlite\n"), 0o600))

	t.Setenv("BIOGRAPH_LISTEN", ":7070")
	t.Setenv("BIOGRAPH_STORAGE_DRIVER", "memory")
	t.Setenv("BIOGRAPH_WORKER_SETTLE_DELAY", "0s")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Listen)
	require.Equal(t, "memory", cfg.Storage.Driver)
	// A zero duration from the environment still falls back to the default.
	require.Equal(t, 2*time.Second, cfg.Worker.SettleDelay)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}
