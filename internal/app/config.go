package app

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8090"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// BackendBaseURL points at the ERP backend that owns clients, products
	// and sales.
	BackendBaseURL string        `envconfig:"BACKEND_BASE_URL" default:"http://127.0.0.1:8080"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`

	// RedisAddr enables the lookup result cache when non-empty.
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:""`
	LookupCacheTTL time.Duration `envconfig:"LOOKUP_CACHE_TTL" default:"30s"`

	LookupDebounce time.Duration `envconfig:"LOOKUP_DEBOUNCE" default:"500ms"`
	LookupMinChars int           `envconfig:"LOOKUP_MIN_CHARS" default:"2"`

	DraftTTL           time.Duration `envconfig:"DRAFT_TTL" default:"2h"`
	DraftSweepInterval time.Duration `envconfig:"DRAFT_SWEEP_INTERVAL" default:"5m"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(cfg.BackendBaseURL); err != nil {
		return nil, fmt.Errorf("invalid BACKEND_BASE_URL: %w", err)
	}
	if cfg.LookupMinChars < 1 {
		return nil, fmt.Errorf("LOOKUP_MIN_CHARS must be at least 1, got %d", cfg.LookupMinChars)
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
