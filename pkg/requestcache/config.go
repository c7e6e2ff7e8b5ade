package requestcache

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ClientConfig is the configuration surface of the caching client.
type ClientConfig struct {
	// BaseURL is prepended to every endpoint path.
	BaseURL string `env:"REQUEST_BASE_URL"`

	// CacheTTLSeconds is the uniform entry time-to-live. Zero (or absent)
	// disables caching entirely.
	CacheTTLSeconds int `env:"REQUEST_CACHE_TTL_SECONDS"`
	// CachePath is the location of the persisted cache snapshot. Required
	// when CacheTTLSeconds is set.
	CachePath string `env:"REQUEST_CACHE_PATH"`

	// RequestTimeout bounds a single transport attempt.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	MaxAttempts       int           `env:"REQUEST_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	InitialBackoff    time.Duration `env:"REQUEST_RETRY_INITIAL_BACKOFF" envDefault:"500ms"`
	MaxBackoff        time.Duration `env:"REQUEST_RETRY_MAX_BACKOFF" envDefault:"8s"`
	BackoffMultiplier float64       `env:"REQUEST_RETRY_MULTIPLIER" envDefault:"2"`
}

// LoadClientConfigFromEnv loads the client configuration from environment
// variables.
func LoadClientConfigFromEnv() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse client config from env: %w", err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("REQUEST_BASE_URL environment variable not set")
	}
	if cfg.CacheTTLSeconds > 0 && cfg.CachePath == "" {
		return nil, fmt.Errorf("REQUEST_CACHE_PATH environment variable not set but caching is enabled")
	}
	return cfg, nil
}

// RetryPolicy converts the config's retry knobs into a RetryPolicy.
func (c *ClientConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		Multiplier:     c.BackoffMultiplier,
	}
}
