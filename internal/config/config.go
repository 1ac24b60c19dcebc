package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rmpower/internal/browser"
	"rmpower/internal/portal"
	"rmpower/pkg/models"
)

// Config holds the application configuration
type Config struct {
	Browser       BrowserConfig     `yaml:"browser"`
	Credentials   CredentialsConfig `yaml:"credentials"`
	Fetch         FetchConfig       `yaml:"fetch,omitempty"`
	Poll          PollConfig        `yaml:"poll,omitempty"`
	HomeAssistant HAConfig          `yaml:"home_assistant,omitempty"`
	MQTT          MQTTConfig        `yaml:"mqtt,omitempty"`
}

// BrowserConfig identifies the remote browser automation server
type BrowserConfig struct {
	Host string `yaml:"host"` // e.g., "localhost"
	Port int    `yaml:"port,omitempty"` // DevTools port (default 9222)
}

// CredentialsConfig holds the portal login
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// FetchConfig tunes a single fetch
type FetchConfig struct {
	TimeoutSeconds     int  `yaml:"timeout_seconds,omitempty"`      // whole-fetch bound (default 180)
	WaitTimeoutSeconds int  `yaml:"wait_timeout_seconds,omitempty"` // per-landmark wait (default 30)
	FollowPagination   bool `yaml:"follow_pagination,omitempty"`
	MaxPages           int  `yaml:"max_pages,omitempty"` // pages read when paginating (default 1)
}

// PollConfig tunes the recurring poller
type PollConfig struct {
	IntervalHours       int `yaml:"interval_hours,omitempty"`        // default 12
	MaxRetries          int `yaml:"max_retries,omitempty"`           // retryable-failure retries per cycle (default 2)
	RetryBackoffSeconds int `yaml:"retry_backoff_seconds,omitempty"` // initial backoff (default 30)
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://yourdomain.local:5050"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.rmp_energy_usage"
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Endpoint returns the automation server endpoint with port defaulted
func (c *Config) Endpoint() browser.Endpoint {
	host := c.Browser.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Browser.Port
	if port <= 0 {
		port = 9222
	}
	return browser.Endpoint{Host: host, Port: port}
}

// PortalCredentials returns the configured login as the core's value type
func (c *Config) PortalCredentials() models.Credentials {
	return models.Credentials{
		Username: c.Credentials.Username,
		Password: c.Credentials.Password,
	}
}

// GetFetchTimeout returns the whole-fetch bound with a default of 3 minutes
func (c *Config) GetFetchTimeout() time.Duration {
	if c.Fetch.TimeoutSeconds <= 0 {
		return 3 * time.Minute
	}
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// GetWaitTimeout returns the landmark wait bound with a default of 30s
func (c *Config) GetWaitTimeout() time.Duration {
	if c.Fetch.WaitTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fetch.WaitTimeoutSeconds) * time.Second
}

// ExtractOptions returns the extraction options for a fetch
func (c *Config) ExtractOptions() portal.ExtractOptions {
	maxPages := c.Fetch.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	return portal.ExtractOptions{
		FollowPagination: c.Fetch.FollowPagination,
		MaxPages:         maxPages,
	}
}

// GetPollInterval returns the poll interval with a default of 12 hours.
// The portal's data lags by a day or two, so polling faster buys nothing.
func (c *Config) GetPollInterval() time.Duration {
	if c.Poll.IntervalHours <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.Poll.IntervalHours) * time.Hour
}

// GetMaxRetries returns per-cycle retries for retryable failures (default 2)
func (c *Config) GetMaxRetries() int {
	if c.Poll.MaxRetries <= 0 {
		return 2
	}
	return c.Poll.MaxRetries
}

// GetRetryBackoff returns the initial retry backoff (default 30s)
func (c *Config) GetRetryBackoff() time.Duration {
	if c.Poll.RetryBackoffSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Poll.RetryBackoffSeconds) * time.Second
}
