package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required" validate:"required"`
	CampaignsFile string `env:"CAMPAIGNS_FILE" envDefault:"campaigns.yaml" validate:"required"`

	CacheProvider         string        `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string        `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`
	CacheKeyPrefix        string        `env:"CACHE_KEY_PREFIX" envDefault:"promoshop:"`
	IdempotencyTTL        time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h" validate:"gt=0"`

	StatusPolicy   string `env:"STATUS_POLICY" envDefault:"strict" validate:"oneof=strict permissive"`
	ExportTimezone string `env:"EXPORT_TIMEZONE" envDefault:"UTC" validate:"required"`
	OrderListLimit int    `env:"ORDER_LIST_LIMIT" envDefault:"500" validate:"gte=1,lte=10000"`

	BaseURL string `env:"BASE_URL" validate:"omitempty,url"`
	// AllowedOrigins lists extra origins (e.g. a separately hosted operator
	// dashboard) that may send state-changing requests.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," validate:"omitempty,dive,url"`

	SentryDSN         string  `env:"SENTRY_DSN"`
	SentryEnvironment string  `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
	SentrySampleRate  float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0.2" validate:"gte=0,lte=1"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" validate:"gt=0"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ExportLocation is the time zone export dates are rendered in.
func (c *Config) ExportLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.ExportTimezone))
	if err != nil {
		return nil, fmt.Errorf("EXPORT_TIMEZONE is not a valid time zone: %w", err)
	}
	return loc, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if _, err := c.ExportLocation(); err != nil {
		return err
	}

	baseURL := strings.TrimSpace(c.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Hostname() == "" {
			return fmt.Errorf("BASE_URL must be a valid absolute URL")
		}
		if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
			return fmt.Errorf("BASE_URL must use https outside local development")
		}
	}

	return nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
