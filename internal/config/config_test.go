package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/ws"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080", cfg.WSURL)
	assert.Equal(t, 30, cfg.PageSize)
	assert.Equal(t, "memory", cfg.Credentials.Store)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat-sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: https://chat.example.com
page_size: 50
reconnect:
  max_attempts: 0
limits:
  name_max: 10
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PAGE_SIZE", "15")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com", cfg.WSURL)
	assert.Equal(t, 15, cfg.PageSize)
	assert.Equal(t, 10, cfg.Limits.NameMax)
	assert.Equal(t, 4000, cfg.Limits.MessageMax)
	assert.IsType(t, ws.NoReconnect{}, cfg.ReconnectPolicy())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestRedisStoreNeedsURL(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("CREDENTIALS_STORE", "redis")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestReconnectPolicyAndWebSocket(t *testing.T) {
	cfg := Default()
	cfg.WSURL = "ws://h"

	policy, ok := cfg.ReconnectPolicy().(ws.ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, policy.Initial)
	assert.Equal(t, 5, policy.MaxAttempts)

	wsCfg := cfg.WebSocket(7)
	assert.Equal(t, 7, wsCfg.LocalUserID)
	assert.Equal(t, "ws://h", wsCfg.BaseURL)
	assert.Equal(t, 60*time.Second, wsCfg.PongWait)
}
