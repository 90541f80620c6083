package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigDefaults(t *testing.T) {
	var cfg ClientConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}))

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Second, cfg.SessionCheckInterval)
	assert.Equal(t, 5, cfg.HistoryPageSize)
	assert.Equal(t, StoreSQLite, cfg.SessionStore)
	assert.NoError(t, cfg.Validate())
}

func TestClientConfigFromEnvironment(t *testing.T) {
	var cfg ClientConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"CHATFLOW_BASE_URL": "https://flows.example.com",
		"CHATFLOW_ACCOUNT":  "school-42",
		"POLL_INTERVAL":     "500ms",
		"SESSION_STORE":     "pebble",
	}}))

	assert.Equal(t, "https://flows.example.com", cfg.BaseURL)
	assert.Equal(t, "school-42", cfg.Account)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.NoError(t, cfg.Validate())
}

func TestClientConfigValidate(t *testing.T) {
	cfg := ClientConfig{Account: "a", SessionStore: "redis", HistoryPageSize: 5}
	assert.Error(t, cfg.Validate())

	cfg = ClientConfig{Account: "", SessionStore: StoreMemory, HistoryPageSize: 5}
	assert.Error(t, cfg.Validate())

	cfg = ClientConfig{Account: "a", SessionStore: StoreMemory, HistoryPageSize: 0}
	assert.Error(t, cfg.Validate())
}

func TestMockServerConfigDefaults(t *testing.T) {
	var cfg MockServerConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{"REPLY_DELAY": "0s"}}))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, time.Duration(0), cfg.ReplyDelay)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(""))

	path := filepath.Join(t.TempDir(), "tutor.env")
	require.NoError(t, os.WriteFile(path, []byte("CHATFLOW_TEST_ACCOUNT=from-file\n"), 0644))
	t.Setenv("CHATFLOW_TEST_ACCOUNT", "")
	require.NoError(t, os.Unsetenv("CHATFLOW_TEST_ACCOUNT"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("CHATFLOW_TEST_ACCOUNT"))

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
