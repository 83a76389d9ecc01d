package caigo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL   = "https://plus.character.ai"
	defaultStreamURL = "wss://neo.character.ai/ws/"
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultRequestTimeout = 30 * time.Second
	defaultStreamTimeout  = 60 * time.Second
)

// Config holds client configuration. The identity token is not part of it;
// the token is supplied at Authenticate time and owned by the Session.
type Config struct {
	// BaseURL is the request/response endpoint root.
	BaseURL string `yaml:"base_url"`

	// StreamURL is the duplex stream endpoint.
	StreamURL string `yaml:"stream_url"`

	// RequestTimeout bounds each request/response call (e.g. "30s").
	RequestTimeout string `yaml:"request_timeout"`

	// StreamTimeout bounds a full stream exchange, from the client message to
	// the terminal frame (e.g. "60s").
	StreamTimeout string `yaml:"stream_timeout"`

	// UserAgent is sent on every request and stream handshake.
	UserAgent string `yaml:"user_agent"`

	// RateLimit contains optional client-side rate limiting.
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig holds client-side rate limiter settings.
type RateLimitConfig struct {
	// RequestsPerSecond enables the limiter when > 0.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the limiter burst size.
	Burst int `yaml:"burst"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		StreamURL:      defaultStreamURL,
		RequestTimeout: defaultRequestTimeout.String(),
		StreamTimeout:  defaultStreamTimeout.String(),
		UserAgent:      defaultUserAgent,
	}
}

// LoadConfig loads configuration from a YAML file, filling unset fields with
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	if _, err := parseTimeout(c.RequestTimeout, defaultRequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	if _, err := parseTimeout(c.StreamTimeout, defaultStreamTimeout); err != nil {
		return fmt.Errorf("invalid stream_timeout: %w", err)
	}
	return nil
}

func (c Config) requestTimeout() time.Duration {
	d, _ := parseTimeout(c.RequestTimeout, defaultRequestTimeout)
	return d
}

func (c Config) streamTimeout() time.Duration {
	d, _ := parseTimeout(c.StreamTimeout, defaultStreamTimeout)
	return d
}

func parseTimeout(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return fallback, nil
	}
	return d, nil
}
