package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `browser:
  host: grid-chrome.local
  port: 9333
credentials:
  username: meter-reader
  password: hunter2
fetch:
  timeout_seconds: 60
  wait_timeout_seconds: 10
  follow_pagination: true
  max_pages: 4
poll:
  interval_hours: 6
  max_retries: 5
  retry_backoff_seconds: 15
mqtt:
  enabled: true
  broker: broker.local:1883
  topic_prefix: power
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	ep := cfg.Endpoint()
	assert.Equal(t, "grid-chrome.local", ep.Host)
	assert.Equal(t, 9333, ep.Port)

	creds := cfg.PortalCredentials()
	assert.Equal(t, "meter-reader", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)

	assert.Equal(t, time.Minute, cfg.GetFetchTimeout())
	assert.Equal(t, 10*time.Second, cfg.GetWaitTimeout())

	extract := cfg.ExtractOptions()
	assert.True(t, extract.FollowPagination)
	assert.Equal(t, 4, extract.MaxPages)

	assert.Equal(t, 6*time.Hour, cfg.GetPollInterval())
	assert.Equal(t, 5, cfg.GetMaxRetries())
	assert.Equal(t, 15*time.Second, cfg.GetRetryBackoff())

	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.local:1883", cfg.MQTT.Broker)
}

func TestDefaultsOnEmptyConfig(t *testing.T) {
	cfg := &Config{}

	ep := cfg.Endpoint()
	assert.Equal(t, "localhost", ep.Host)
	assert.Equal(t, 9222, ep.Port)

	assert.Equal(t, 3*time.Minute, cfg.GetFetchTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetWaitTimeout())
	assert.Equal(t, 12*time.Hour, cfg.GetPollInterval())
	assert.Equal(t, 2, cfg.GetMaxRetries())
	assert.Equal(t, 30*time.Second, cfg.GetRetryBackoff())

	extract := cfg.ExtractOptions()
	assert.False(t, extract.FollowPagination)
	assert.Equal(t, 1, extract.MaxPages)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		Browser:     BrowserConfig{Host: "automation.lan", Port: 9222},
		Credentials: CredentialsConfig{Username: "u", Password: "p"},
	}

	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser: [not a map"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
