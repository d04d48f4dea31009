package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type cliConfig struct {
	BaseURL      string        `env:"BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"15s" validate:"gt=0"`
	PageSize     int           `env:"PAGE_SIZE" envDefault:"500" validate:"gte=1,lte=10000"`
	Timezone     string        `env:"TIMEZONE" envDefault:"UTC" validate:"required"`
	StatusPolicy string        `env:"STATUS_POLICY" envDefault:"strict" validate:"oneof=strict permissive"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"WARN"`
}

var cliValidator = validator.New()

func loadConfig(environ map[string]string) (*cliConfig, error) {
	var cfg cliConfig
	opts := env.Options{Prefix: "ORDERCTL_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cliValidator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *cliConfig) location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return nil, fmt.Errorf("invalid ORDERCTL_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
